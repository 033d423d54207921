package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ecoguard/ecoguard/internal/auth"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	auth      *auth.Middleware
	responder httpx.Responder
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw *auth.Middleware, responder httpx.Responder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, auth: mw, responder: responder, validator: httpx.NewValidator()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.auth.Authenticate)
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin, auth.RoleModerator))
		r.Get("/", h.listUsers)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireRole(auth.RoleAdmin))
		r.Patch("/{id}/status", h.setStatus)
		r.Patch("/{id}/role", h.setRole)
	})
}

type statusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=user moderator admin"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Query: q.Get("q"), Page: atoi(q.Get("page")), PerPage: atoi(q.Get("perPage"))}
	page, err := h.service.ListUsers(r.Context(), filter)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	profiles := make([]auth.PublicProfile, 0, len(page.Users))
	for _, u := range page.Users {
		profiles = append(profiles, auth.NewPublicProfile(u))
	}
	httpx.Success(w, http.StatusOK, "Users retrieved", map[string]any{
		"users":      profiles,
		"pagination": page.Pagination,
	})
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.bind(w, r, &req) {
		return
	}
	actor, _ := auth.UserFromContext(r.Context())
	user, err := h.service.SetActive(r.Context(), actor, chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.logger.Info("user status changed",
		slog.String("actor_id", actor.ID), slog.String("user_id", user.ID), slog.Bool("active", user.IsActive))
	httpx.Success(w, http.StatusOK, "User status updated", map[string]any{"user": auth.NewPublicProfile(user)})
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !h.bind(w, r, &req) {
		return
	}
	actor, _ := auth.UserFromContext(r.Context())
	user, err := h.service.SetRole(r.Context(), actor, chi.URLParam(r, "id"), auth.Role(req.Role))
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	h.logger.Info("user role changed",
		slog.String("actor_id", actor.ID), slog.String("user_id", user.ID), slog.String("role", string(user.Role)))
	httpx.Success(w, http.StatusOK, "User role updated", map[string]any{"user": auth.NewPublicProfile(user)})
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		h.responder.Error(w, r, err)
		return false
	}
	if err := httpx.Validate(h.validator, target); err != nil {
		h.responder.Error(w, r, err)
		return false
	}
	return true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
