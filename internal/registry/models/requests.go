package models

import (
	"net/mail"
	"strings"

	"nexushq/internal/commission"
	dErrors "nexushq/pkg/domain-errors"
)

// RegisterRequest carries the operator-supplied fields for a new client.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Location string `json:"location,omitempty"`
	Tier     string `json:"tier"`

	tier commission.Tier
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Location = strings.TrimSpace(r.Location)
	r.Tier = strings.TrimSpace(r.Tier)
}

// Validate checks the request and resolves the tier. An empty tier means Starter.
func (r *RegisterRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(r.Name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is not a valid address")
		}
	}
	if r.Tier == "" {
		r.tier = commission.TierStarter
		return nil
	}
	tier, err := commission.ParseTier(r.Tier)
	if err != nil {
		return err
	}
	r.tier = tier
	return nil
}

// ResolvedTier returns the tier parsed by Validate.
func (r *RegisterRequest) ResolvedTier() commission.Tier {
	return r.tier
}

// Registration is the result of Register: the client and its API key, which
// is never retrievable again.
type Registration struct {
	Client *Client
	APIKey string
}
