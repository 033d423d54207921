package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// EventRecorder counts authentication outcomes.
type EventRecorder interface {
	AuthEvent(event, outcome string)
}

// HandlerConfig aggregates Handler dependencies. RateLimit wraps the
// unauthenticated credential endpoints when set.
type HandlerConfig struct {
	Logger        *slog.Logger
	Service       *Service
	Middleware    *Middleware
	Responder     httpx.Responder
	Events        EventRecorder
	RateLimit     func(http.Handler) http.Handler
	SecureCookies bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	middleware    *Middleware
	responder     httpx.Responder
	events        EventRecorder
	rateLimit     func(http.Handler) http.Handler
	secureCookies bool
	validator     *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	v := httpx.NewValidator()
	_ = v.RegisterValidation("username", validUsername)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:        logger,
		service:       cfg.Service,
		middleware:    cfg.Middleware,
		responder:     cfg.Responder,
		events:        cfg.Events,
		rateLimit:     cfg.RateLimit,
		secureCookies: cfg.SecureCookies,
		validator:     v,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		if h.rateLimit != nil {
			r.Use(h.rateLimit)
		}
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh-token", h.handleRefresh)
	})
	r.Get("/verify-email", h.handleVerifyEmail)
	r.Group(func(r chi.Router) {
		r.Use(h.middleware.Authenticate)
		r.Get("/me", h.handleMe)
		r.Put("/me", h.handleUpdateMe)
		r.Put("/change-password", h.handleChangePassword)
		r.Post("/logout", h.handleLogout)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.bind(w, r, &req) {
		return
	}
	session, err := h.service.Register(r.Context(), req.input())
	if err != nil {
		h.record("register", "failure")
		h.responder.Error(w, r, err)
		return
	}
	h.record("register", "success")
	h.logger.Info("user registered", slog.String("user_id", session.User.ID))
	httpx.Success(w, http.StatusCreated, "User registered successfully", sessionFields(session))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.bind(w, r, &req) {
		return
	}
	session, err := h.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.record("login", "failure")
		h.responder.Error(w, r, err)
		return
	}
	h.record("login", "success")
	httpx.Success(w, http.StatusOK, "Login successful", sessionFields(session))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	httpx.Success(w, http.StatusOK, "Profile retrieved", map[string]any{"user": NewPublicProfile(user)})
}

func (h *Handler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	current, _ := UserFromContext(r.Context())
	var req updateProfileRequest
	if !h.bind(w, r, &req) {
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), current.ID, req.update())
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Profile updated successfully", map[string]any{"user": NewPublicProfile(user)})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	current, _ := UserFromContext(r.Context())
	var req changePasswordRequest
	if !h.bind(w, r, &req) {
		return
	}
	token, err := h.service.ChangePassword(r.Context(), current.ID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.record("change_password", "failure")
		h.responder.Error(w, r, err)
		return
	}
	h.record("change_password", "success")
	httpx.Success(w, http.StatusOK, "Password changed successfully", map[string]any{"token": token})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.bind(w, r, &req) {
		return
	}
	token, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.record("refresh", "failure")
		h.responder.Error(w, r, err)
		return
	}
	h.record("refresh", "success")
	httpx.Success(w, http.StatusOK, "Token refreshed", map[string]any{"token": token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			h.responder.Error(w, r, err)
			return
		}
	}
	id, _ := IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), id.Claims, req.RefreshToken); err != nil {
		h.responder.Error(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.record("logout", "success")
	httpx.Success(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.responder.Error(w, r, httpx.ValidationFailed(map[string]string{"token": "token is required"}))
		return
	}
	user, err := h.service.VerifyEmail(r.Context(), token)
	if err != nil {
		h.responder.Error(w, r, err)
		return
	}
	httpx.Success(w, http.StatusOK, "Email verified", map[string]any{"user": NewPublicProfile(user)})
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

func (h *Handler) record(event, outcome string) {
	if h.events != nil {
		h.events.AuthEvent(event, outcome)
	}
}

func sessionFields(s Session) map[string]any {
	return map[string]any{
		"user":         NewPublicProfile(s.User),
		"token":        s.AccessToken,
		"refreshToken": s.RefreshToken,
	}
}
