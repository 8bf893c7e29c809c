// Package middleware throttles phone-home traffic per API key.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"nexushq/internal/platform/metrics"
	platformMiddleware "nexushq/internal/platform/middleware"
	"nexushq/internal/ratelimit/models"
	"nexushq/internal/registry/apikey"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type Middleware struct {
	limiter  Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	limit    int
	window   time.Duration
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns the middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func New(limiter Limiter, logger *slog.Logger, limit int, window time.Duration, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		limit:   limit,
		window:  window,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Handler allows at most limit requests per window for each API key. Requests
// whose key cannot be parsed are counted against the caller IP instead. Store
// failures let the request through.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := limitKey(r)
		result, err := m.limiter.Allow(ctx, key, m.limit, m.window)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.metrics.RecordRateLimited()
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"limit_key", key,
				"retry_after", result.RetryAfter,
				"request_id", requestcontext.RequestID(ctx),
			)
			writeRateLimitExceeded(w, result)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitKey(r *http.Request) string {
	key := platformMiddleware.APIKey(r.Context())
	if key == "" {
		key = platformMiddleware.APIKeyFromRequest(r)
	}
	if keyID, err := apikey.Parse(key); err == nil {
		return "key:" + keyID
	}
	return "ip:" + platformMiddleware.ClientIPFromRequest(r)
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:            string(dErrors.CodeRateLimited),
		ErrorDescription: "Too many requests for this API key. Please try again later.",
		RetryAfter:       result.RetryAfter,
	})
}
