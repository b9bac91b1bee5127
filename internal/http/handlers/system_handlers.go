package handlers

import (
	"net/http"
	"time"

	"github.com/dynaprizes/waitlist/internal/http/response"
	"github.com/dynaprizes/waitlist/internal/service"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

type SystemHandler struct {
	svc service.WaitlistService
	now func() time.Time
}

func NewSystemHandler(svc service.WaitlistService) *SystemHandler {
	return &SystemHandler{svc: svc, now: time.Now}
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	total, err := h.svc.Total(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "Health check failed", "error", err)
		response.JSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "error",
			"error":  "store unavailable",
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"totalUsers": total,
		"timestamp":  h.now().UTC().Format(time.RFC3339),
	})
}

func (h *SystemHandler) Index(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"message": "Dynaprizes Waitlist API",
		"endpoints": []string{
			"/health",
			"/api/waitlist/join",
			"/api/waitlist/stats",
			"/api/waitlist/user/{referralCode}",
			"/api/waitlist/leaderboard",
			"/api/waitlist/admin/users",
		},
	})
}
