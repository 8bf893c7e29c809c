package store

import (
	"context"
	"sync"
	"time"

	"nexushq/internal/ratelimit/models"
)

// InMemory is a single-process sliding window limiter.
type InMemory struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow records one request for key if fewer than limit fall inside window.
func (s *InMemory) Allow(_ context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.cleanup(now.Add(-window))

	if len(sw.timestamps) >= limit {
		resetAt := sw.timestamps[0].Add(window)
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}

	sw.timestamps = append(sw.timestamps, now)
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Reset forgets every request recorded for key.
func (s *InMemory) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// cleanup drops timestamps at or before cutoff.
func (sw *slidingWindow) cleanup(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
