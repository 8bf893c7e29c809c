package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexushq/pkg/testutil"
)

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	return NewRouter(Deps{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		AdminToken: "admin-secret",
		Gatherer:   prometheus.NewRegistry(),
		Checks:     checks,
	})
}

func TestHealth(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		rec := testutil.DoRequest(newTestRouter(nil), testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		resp := testutil.UnmarshalResponse[healthResponse](t, rec)
		assert.Equal(t, "ok", resp.Status)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("failing dependency", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		resp := testutil.UnmarshalResponse[healthResponse](t, rec)
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, map[string]string{"postgres": "up", "redis": "down"}, resp.Checks)
	})
}

func TestRouteGroupsAreProtected(t *testing.T) {
	router := newTestRouter(nil)

	for _, path := range []string{"/api/clients", "/api/dashboard", "/api/disputes", "/api/subscriptions/tiers"} {
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, path, nil))
		testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthorized")
	}
	for _, path := range []string{"/api/phone-home/sale", "/api/phone-home/scan", "/api/phone-home/batch-scans", "/api/phone-home/disputes"} {
		rec := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, path, map[string]any{}))
		testutil.AssertStatusAndError(t, rec, http.StatusUnauthorized, "unauthenticated")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := testutil.DoRequest(newTestRouter(nil), testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
