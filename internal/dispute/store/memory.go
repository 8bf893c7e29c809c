// Package store persists grading disputes.
package store

import (
	"context"
	"slices"
	"sync"

	"nexushq/internal/dispute/models"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/platform/sentinel"
)

type InMemory struct {
	mu       sync.RWMutex
	disputes map[id.DisputeID]*models.Dispute
	version  *dataversion.Counter
}

type MemoryOption func(*InMemory)

// WithVersionCounter bumps c whenever a dispute is filed or changes status.
func WithVersionCounter(c *dataversion.Counter) MemoryOption {
	return func(s *InMemory) {
		s.version = c
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{disputes: make(map[id.DisputeID]*models.Dispute)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemory) Create(_ context.Context, d *models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.disputes[d.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.disputes[d.ID] = d.Clone()
	s.version.Bump()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, disputeID id.DisputeID) (*models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[disputeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return d.Clone(), nil
}

// Execute atomically validates and mutates a dispute under the store lock.
// If validate returns an error, the dispute is not modified.
func (s *InMemory) Execute(_ context.Context, disputeID id.DisputeID, validate func(*models.Dispute) error, mutate func(*models.Dispute)) (*models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.disputes[disputeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := d.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.disputes[disputeID] = working
	s.version.Bump()
	return working.Clone(), nil
}

// List returns up to limit disputes matching filter that sort after cursor,
// in (created_at, id) order.
func (s *InMemory) List(_ context.Context, filter models.Filter, after models.Cursor, limit int) ([]*models.Dispute, error) {
	s.mu.RLock()
	matched := make([]*models.Dispute, 0)
	for _, d := range s.disputes {
		if filter.Matches(d) && after.Before(d) {
			matched = append(matched, d.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, models.Compare)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int64)
	for _, d := range s.disputes {
		counts[d.Status]++
	}
	return counts, nil
}
