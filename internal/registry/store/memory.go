package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/platform/sentinel"
)

// InMemory is a thread-safe client store used in development and tests.
type InMemory struct {
	mu      sync.RWMutex
	clients map[id.ClientID]*models.Client
	byKeyID map[string]id.ClientID
	version *dataversion.Counter
}

type MemoryOption func(*InMemory)

// WithVersionCounter bumps c on every registration and client update.
func WithVersionCounter(c *dataversion.Counter) MemoryOption {
	return func(s *InMemory) {
		s.version = c
	}
}

func NewInMemory(opts ...MemoryOption) *InMemory {
	s := &InMemory{
		clients: make(map[id.ClientID]*models.Client),
		byKeyID: make(map[string]id.ClientID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIfUnique stores c unless an existing client is equivalent under
// policy (sentinel.ErrAlreadyUsed) or already holds the key id (sentinel.ErrConflict).
func (s *InMemory) CreateIfUnique(_ context.Context, c *models.Client, policy models.DuplicatePolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byKeyID[c.APIKeyID]; taken {
		return sentinel.ErrConflict
	}
	if _, taken := s.clients[c.ID]; taken {
		return sentinel.ErrConflict
	}
	for _, existing := range s.clients {
		if policy.Conflicts(existing, c) {
			return sentinel.ErrAlreadyUsed
		}
	}
	s.clients[c.ID] = c.Clone()
	s.byKeyID[c.APIKeyID] = c.ID
	s.version.Bump()
	return nil
}

func (s *InMemory) FindByID(_ context.Context, clientID id.ClientID) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) FindByAPIKeyID(_ context.Context, keyID string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clientID, ok := s.byKeyID[keyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.clients[clientID].Clone(), nil
}

// List returns every client in registration order.
func (s *InMemory) List(_ context.Context) ([]*models.Client, error) {
	s.mu.RLock()
	out := make([]*models.Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *models.Client) int { return a.ID.Compare(b.ID) })
	return out, nil
}

// Execute atomically validates and mutates a client under the store lock.
// If validate returns an error, the client is not modified.
func (s *InMemory) Execute(_ context.Context, clientID id.ClientID, validate func(*models.Client) error, mutate func(*models.Client)) (*models.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := c.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.clients[clientID] = working
	s.version.Bump()
	return working.Clone(), nil
}

// TouchLastSeen advances last_seen_at; older timestamps are ignored.
func (s *InMemory) TouchLastSeen(_ context.Context, clientID id.ClientID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.LastSeenAt == nil || c.LastSeenAt.Before(at) {
		seen := at
		c.LastSeenAt = &seen
	}
	return nil
}
