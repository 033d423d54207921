package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ecoguard/ecoguard/internal/auth"
	"github.com/ecoguard/ecoguard/internal/observability"
	"github.com/ecoguard/ecoguard/internal/platform/httpx"
	"github.com/ecoguard/ecoguard/internal/users"
	"github.com/ecoguard/ecoguard/jobs"
)

const readinessTimeout = 3 * time.Second

// Probe reports whether a backing dependency is reachable.
type Probe func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	AuthHandler    *auth.Handler
	AuthMiddleware *auth.Middleware
	UsersHandler   *users.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
	Readiness      map[string]Probe
}

// NewRouter constructs the chi.Router with EcoGuard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondError(w, httpx.NewError(httpx.ErrNotFound, "Route not found"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readinessHandler(params.Logger, params.Readiness))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.JobHandler != nil && params.AuthMiddleware != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(params.AuthMiddleware.Authenticate)
				r.Use(params.AuthMiddleware.RequireRole(auth.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

func readinessHandler(logger *slog.Logger, probes map[string]Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for name, probe := range probes {
			g.Go(func() error {
				if err := probe(gctx); err != nil {
					return fmt.Errorf("%s: %w", name, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			if logger != nil {
				logger.Warn("readiness probe failed", slog.Any("error", err))
			}
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
