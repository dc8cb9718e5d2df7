// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
	"github.com/carterperez-dev/templates/vip-backend/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts the account routes on r, which the caller has
// already scoped under /auth.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminKey func(http.Handler) http.Handler,
) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/check-vip", h.CheckVIP)
	r.With(adminKey).Post("/add-vip/{username}", h.AddVIP)
	r.With(authenticator).Post("/logout", h.Logout)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) CheckVIP(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.CheckEntitlement(
		r.Context(),
		middleware.ExtractToken(r),
	)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, resp)
}

// AddVIP grants the entitlement. The optional duration query parameter
// takes a Go duration such as "240h".
func (h *Handler) AddVIP(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var duration time.Duration
	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			core.BadRequest(w, fmt.Sprintf("invalid duration %q", raw))
			return
		}
		duration = d
	}

	resp, err := h.service.GrantEntitlement(r.Context(), username, duration)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if err := h.service.Logout(r.Context(), claims); err != nil {
		core.JSONError(w, err)
		return
	}

	core.NoContent(w)
}
