package auth

import (
	"net/http"
	"strings"

	"github.com/ecoguard/ecoguard/internal/platform/httpx"
)

// TokenCookieName is the cookie consulted when no bearer header is present.
const TokenCookieName = "token"

// Middleware protects routes by binding the token's user to the request.
type Middleware struct {
	service   *Service
	responder httpx.Responder
}

// NewMiddleware builds auth middleware over service.
func NewMiddleware(service *Service, responder httpx.Responder) *Middleware {
	return &Middleware{service: service, responder: responder}
}

// Authenticate rejects requests without a valid access token for an active user.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			m.responder.Error(w, r, httpx.NewError(httpx.ErrUnauthorized, "Access denied. No token provided"))
			return
		}
		id, err := m.service.Authenticate(r.Context(), token)
		if err != nil {
			m.responder.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// Optional binds the user when a valid token is present and otherwise
// proceeds anonymously.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := m.service.Authenticate(r.Context(), token)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
	})
}

// RequireRole allows only bound users whose role is in roles. It must run
// after Authenticate.
func (m *Middleware) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				m.responder.Error(w, r, httpx.NewError(httpx.ErrUnauthorized, "Authentication required"))
				return
			}
			if _, ok := allowed[user.Role]; !ok {
				m.responder.Error(w, r, httpx.NewError(httpx.ErrForbidden, "Access denied. Insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractToken reads a bearer token from the Authorization header, falling
// back to the token cookie.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
