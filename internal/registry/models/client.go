package models

import (
	"strings"
	"time"

	"nexushq/internal/commission"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

const maxNameLength = 128

// Client is the aggregate root for a registered shop installation.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Tier is a valid commission tier; the commission rate is always derived from it
//   - APIKeyID and APIKeyHash are set at registration and never change
//   - Status transitions: active ↔ suspended only
type Client struct {
	ID         id.ClientID     `json:"client_id"`
	Name       string          `json:"name"`
	Email      string          `json:"email,omitempty"`
	Location   string          `json:"location,omitempty"`
	Tier       commission.Tier `json:"subscription_tier"`
	APIKeyID   string          `json:"-"`
	APIKeyHash string          `json:"-"` // bcrypt hash of the full key
	Status     ClientStatus    `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	LastSeenAt *time.Time      `json:"last_seen,omitempty"`
}

// NewClient validates and constructs an active client.
func NewClient(clientID id.ClientID, name, email, location string, tier commission.Tier, keyID, keyHash string, now time.Time) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	if len(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name must be 128 characters or less")
	}
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client tier is not valid")
	}
	if keyID == "" || keyHash == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client api key material is required")
	}
	return &Client{
		ID:         clientID,
		Name:       name,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Location:   strings.TrimSpace(location),
		Tier:       tier,
		APIKeyID:   keyID,
		APIKeyHash: keyHash,
		Status:     ClientStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (c *Client) IsActive() bool {
	return c.Status == ClientStatusActive
}

// CanSuspend checks if the client can transition to suspended status.
func (c *Client) CanSuspend() error {
	if !c.Status.CanTransitionTo(ClientStatusSuspended) {
		return dErrors.New(dErrors.CodeInvariantViolation, "client is already suspended")
	}
	return nil
}

// ApplySuspension transitions the client to suspended status.
// Must only be called after CanSuspend returns nil.
func (c *Client) ApplySuspension(now time.Time) {
	c.Status = ClientStatusSuspended
	c.UpdatedAt = now
}

// CanReactivate checks if the client can transition to active status.
func (c *Client) CanReactivate() error {
	if !c.Status.CanTransitionTo(ClientStatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "client is already active")
	}
	return nil
}

// ApplyReactivation transitions the client to active status.
// Must only be called after CanReactivate returns nil.
func (c *Client) ApplyReactivation(now time.Time) {
	c.Status = ClientStatusActive
	c.UpdatedAt = now
}

// ApplyTier changes the subscription tier. Sales already priced keep their fee.
func (c *Client) ApplyTier(tier commission.Tier, now time.Time) {
	c.Tier = tier
	c.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of a store.
func (c *Client) Clone() *Client {
	cp := *c
	if c.LastSeenAt != nil {
		t := *c.LastSeenAt
		cp.LastSeenAt = &t
	}
	return &cp
}
