package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/http/middleware"
	"github.com/dynaprizes/waitlist/internal/http/response"
	"github.com/dynaprizes/waitlist/internal/service"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

const (
	maxBodyBytes      = 16 << 10
	maxUserAgentBytes = 512
)

const msgInvalidIdentity = "Please provide either a valid email or mobile number (10+ digits)"

type WaitlistHandler struct {
	svc         service.WaitlistService
	adminSecret string
	now         func() time.Time
}

func NewWaitlistHandler(svc service.WaitlistService, adminSecret string) *WaitlistHandler {
	return &WaitlistHandler{svc: svc, adminSecret: adminSecret, now: time.Now}
}

// Routes is mounted at /api/waitlist.
func (h *WaitlistHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/join", h.Join)
	r.Get("/stats", h.Stats)
	r.Get("/user/{referralCode}", h.Lookup)
	r.Get("/leaderboard", h.Leaderboard)
	r.With(middleware.RequireAdmin(h.adminSecret)).Get("/admin/users", h.AdminUsers)
	return r
}

type joinRequest struct {
	Email        string `json:"email"`
	Mobile       string `json:"mobile"`
	ReferralCode string `json:"referralCode"`
	Source       string `json:"source"`
}

type joinResponse struct {
	Success           bool   `json:"success"`
	AlreadyRegistered bool   `json:"alreadyRegistered,omitempty"`
	Message           string `json:"message"`
	Position          int64  `json:"position"`
	ReferralCode      string `json:"referralCode"`
	Total             int64  `json:"total"`
	ReferralLink      string `json:"referralLink,omitempty"`
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var in joinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	res, err := h.svc.Admit(r.Context(), &domain.AdmissionReq{
		Email:        in.Email,
		Mobile:       in.Mobile,
		ReferralCode: in.ReferralCode,
		Metadata: domain.Metadata{
			IP:        clientIP(r),
			UserAgent: truncate(r.UserAgent(), maxUserAgentBytes),
			Source:    strings.TrimSpace(in.Source),
		},
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if !res.Created() {
		response.JSON(w, http.StatusOK, joinResponse{
			Success:           true,
			AlreadyRegistered: true,
			Message:           "You are already on the waitlist!",
			Position:          res.Position,
			ReferralCode:      res.ReferralCode,
			Total:             res.Total,
		})
		return
	}

	msg := "Successfully joined with email!"
	if res.Participant.Email == "" {
		msg = "Successfully joined with mobile!"
	}
	response.JSON(w, http.StatusCreated, joinResponse{
		Success:      true,
		Message:      msg,
		Position:     res.Position,
		ReferralCode: res.ReferralCode,
		Total:        res.Total,
		ReferralLink: res.ReferralLink,
	})
}

func (h *WaitlistHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context(), h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, stats)
}

func (h *WaitlistHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.LookupByReferralCode(r.Context(), chi.URLParam(r, "referralCode"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, p)
}

func (h *WaitlistHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	leaders, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]interface{}{"leaders": leaders})
}

func (h *WaitlistHandler) AdminUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	if c := middleware.Claims(r); c != nil {
		logger.InfoContext(r.Context(), "Admin participant listing",
			"admin", c.Subject,
			"limit", limit,
			"offset", offset,
		)
	}

	users, err := h.svc.Participants(r.Context(), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	total, err := h.svc.Total(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
		"users":   users,
	})
}

func (h *WaitlistHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentity):
		response.BadRequest(w, msgInvalidIdentity)
	case errors.Is(err, domain.ErrNotFound):
		response.NotFound(w, "Referral code not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		logger.ErrorContext(r.Context(), "Store unavailable", "error", err, "path", r.URL.Path)
		response.StoreUnavailable(w, "Waitlist is temporarily unavailable, please retry")
	default:
		logger.ErrorContext(r.Context(), "Unhandled service error", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Server error")
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
