// AngelaMos | 2026
// handler.go

package user

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/templates/vip-backend/internal/core"
	"github.com/carterperez-dev/templates/vip-backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts GET /users on r, which the caller has already
// scoped under /auth.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/users", h.ListUsers)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetUsername(r.Context())

	users, err := h.service.ListForRequester(r.Context(), requester)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	slog.InfoContext(r.Context(), "listed users",
		"requester", requester,
		"requester_id", middleware.GetUserID(r.Context()),
		"total", len(users),
	)

	core.OK(w, ToUserListResponse(users, h.service.Now()))
}
