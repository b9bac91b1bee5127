package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dynaprizes/waitlist/internal/service"
	"github.com/dynaprizes/waitlist/pkg/config"
	mw "github.com/dynaprizes/waitlist/pkg/middleware"
)

func NewRouter(svc service.WaitlistService, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("waitlist"))
	r.Use(mw.Logging)
	r.Use(mw.Recover)
	r.Use(mw.CORS(cfg.Server.AllowedOrigins))

	sys := NewSystemHandler(svc)
	r.Get("/", sys.Index)
	r.Get("/health", sys.Health)

	r.Mount("/api/waitlist", NewWaitlistHandler(svc, cfg.Auth.JWTSecret).Routes())

	return r
}
