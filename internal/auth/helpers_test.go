package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoguard/ecoguard/internal/auth"
	"github.com/ecoguard/ecoguard/internal/auth/authtest"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
	_ "github.com/ecoguard/ecoguard/testing"
)

const (
	testAccessSecret  = "access-secret-for-tests-0123456789"
	testRefreshSecret = "refresh-secret-for-tests-0123456789"
)

// clock is a settable time source shared by the token issuer and revocation store.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Now()} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu    sync.Mutex
	links []string
	err   error
}

func (m *recordingMailer) SendVerification(_ context.Context, _, _, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return m.err
}

func (m *recordingMailer) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.links) == 0 {
		return ""
	}
	return m.links[len(m.links)-1]
}

type harness struct {
	repo    *authtest.MemoryRepository
	tokens  *auth.TokenIssuer
	service *auth.Service
	mw      *auth.Middleware
	mailer  *recordingMailer
	clock   *clock
	redis   *miniredis.Miniredis
	router  chi.Router
}

type harnessOption func(*auth.ServiceConfig, *harness)

func withRevocations() harnessOption {
	return func(cfg *auth.ServiceConfig, h *harness) {
		h.redis = miniredis.NewMiniRedis()
		if err := h.redis.Start(); err != nil {
			panic(err)
		}
		client := redis.NewClient(&redis.Options{Addr: h.redis.Addr()})
		cfg.Revocations = auth.NewRedisRevocationStore(client)
	}
}

// withRepo swaps the repository the service sees while keeping h.repo as the
// backing store.
func withRepo(wrap func(*authtest.MemoryRepository) auth.Repository) harnessOption {
	return func(cfg *auth.ServiceConfig, h *harness) {
		cfg.Repo = wrap(h.repo)
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		repo:   authtest.NewMemoryRepository(),
		mailer: &recordingMailer{},
		clock:  newClock(),
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		Issuer:        "ecoguard-test",
		Now:           h.clock.Now,
	})
	require.NoError(t, err)
	h.tokens = tokens

	cfg := auth.ServiceConfig{
		Repo:          h.repo,
		Hasher:        auth.NewBcryptHasher(bcrypt.MinCost),
		Tokens:        tokens,
		Mailer:        h.mailer,
		VerifyBaseURL: "http://eco.test/api/auth/verify-email",
		Now:           h.clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg, h)
	}
	if h.redis != nil {
		t.Cleanup(h.redis.Close)
	}

	svc, err := auth.NewService(cfg)
	require.NoError(t, err)
	h.service = svc

	responder := httpx.Responder{Debug: true}
	h.mw = auth.NewMiddleware(svc, responder)
	handler := auth.NewHandler(auth.HandlerConfig{
		Service:    svc,
		Middleware: h.mw,
		Responder:  responder,
	})
	h.router = newRouter(handler)
	return h
}

func newRouter(handler *auth.Handler) chi.Router {
	r := chi.NewRouter()
	r.Route("/api/auth", handler.MountRoutes)
	return r
}

func validRegistration() auth.RegisterInput {
	return auth.RegisterInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Username:  "ada_l",
		Email:     "Ada@Example.com",
		Password:  "longenough",
		Interests: []string{"birds", "marine"},
	}
}

func (h *harness) register(t *testing.T, in auth.RegisterInput) auth.Session {
	t.Helper()
	session, err := h.service.Register(context.Background(), in)
	require.NoError(t, err)
	return session
}

type envelope struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	Code         string            `json:"code"`
	Errors       map[string]string `json:"errors"`
	Token        string            `json:"token"`
	RefreshToken string            `json:"refreshToken"`
	User         map[string]any    `json:"user"`
}

func (h *harness) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func protected(mw func(http.Handler) http.Handler) http.Handler {
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": "anonymous"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "message": user.Username})
	}))
}
