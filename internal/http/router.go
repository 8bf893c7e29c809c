// Package httpapi composes the module handlers into one chi router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	aggregatorHandler "nexushq/internal/aggregator/handler"
	disputeHandler "nexushq/internal/dispute/handler"
	gatewayHandler "nexushq/internal/gateway/handler"
	"nexushq/internal/platform/metrics"
	"nexushq/internal/platform/middleware"
	registryHandler "nexushq/internal/registry/handler"
	"nexushq/pkg/platform/httputil"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router mounts.
type Deps struct {
	Logger     *slog.Logger
	AdminToken string
	Gatherer   prometheus.Gatherer
	Checks     map[string]HealthCheck
	// RateLimit, when set, runs on phone-home routes after the API key check.
	RateLimit func(http.Handler) http.Handler

	Registry   registryHandler.Service
	Gateway    gatewayHandler.Service
	Aggregator aggregatorHandler.Service
	Disputes   disputeHandler.Service
}

// NewRouter wires public, client and operator routes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestContext)
	r.Use(middleware.AccessLog(d.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler(d.Checks))
	if d.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(d.Gatherer))
	}

	aggregator := aggregatorHandler.New(d.Aggregator, d.Logger)
	aggregator.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(d.Logger))
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}
		gatewayHandler.New(d.Gateway, d.Logger).Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdminToken(d.AdminToken, d.Logger))
		registryHandler.New(d.Registry, d.Logger).Register(r)
		aggregator.Register(r)
		disputeHandler.New(d.Disputes, d.Logger).Register(r)
	})

	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(names) > 0 {
			resp.Checks = make(map[string]string, len(names))
		}
		for _, name := range names {
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
