package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/movement"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/observability"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/platform/httpx"
	"github.com/DQHuy2112/BE-QLKH-sub001/internal/rbac"
	"github.com/DQHuy2112/BE-QLKH-sub001/jobs"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(r *http.Request) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	MovementHandler *movement.Handler
	RBACMiddleware  rbac.Middleware
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	Checks          map[string]HealthCheck
}

// NewRouter constructs the chi.Router with the warehouse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthz(params.Checks, params.Logger))

	r.Route("/api", func(r chi.Router) {
		if params.MovementHandler != nil {
			params.MovementHandler.MountRoutes(r)
		}
		if params.RBACMiddleware.Service != nil {
			params.RBACMiddleware.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func healthz(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(r); err != nil {
				if logger != nil {
					logger.Warn("health check failed", slog.String("dependency", name), slog.Any("error", err))
				}
				status[name] = "down"
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}
		httpx.JSON(w, code, status)
	}
}
