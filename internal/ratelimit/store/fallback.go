package store

import (
	"context"
	"log/slog"
	"time"

	"nexushq/internal/ratelimit/models"
	"nexushq/pkg/platform/circuit"
)

type Allower interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Fallback fronts a shared store with a breaker. Errors below the failure
// threshold are returned to the caller; once the circuit opens, a local
// in-memory window answers until the primary recovers.
type Fallback struct {
	primary Allower
	local   *InMemory
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewFallback(primary Allower, breaker *circuit.Breaker, logger *slog.Logger) *Fallback {
	return &Fallback{
		primary: primary,
		local:   NewInMemory(),
		breaker: breaker,
		logger:  logger,
	}
}

func (f *Fallback) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	res, err := f.primary.Allow(ctx, key, limit, window)
	if err != nil {
		useFallback, change := f.breaker.RecordFailure()
		if change.Opened {
			f.logger.WarnContext(ctx, "rate limit store unavailable, using local window",
				"breaker", f.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, err
		}
		return f.allowLocal(ctx, key, limit, window)
	}

	usePrimary, change := f.breaker.RecordSuccess()
	if change.Closed {
		f.logger.InfoContext(ctx, "rate limit store recovered", "breaker", f.breaker.Name())
	}
	if !usePrimary {
		return f.allowLocal(ctx, key, limit, window)
	}
	return res, nil
}

func (f *Fallback) allowLocal(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	res, err := f.local.Allow(ctx, key, limit, window)
	if err != nil {
		return nil, err
	}
	res.Degraded = true
	return res, nil
}
