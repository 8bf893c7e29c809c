package handler

import (
	"strings"

	"nexushq/internal/commission"
	"nexushq/internal/registry/models"
	dErrors "nexushq/pkg/domain-errors"
)

// RegisterRequest is the body of POST /api/clients/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Location string `json:"location"`
	Tier     string `json:"tier"`
}

func (r *RegisterRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return nil
}

func (r *RegisterRequest) toModel() *models.RegisterRequest {
	return &models.RegisterRequest{
		Name:     r.Name,
		Email:    r.Email,
		Location: r.Location,
		Tier:     r.Tier,
	}
}

// ChangeTierRequest is the body of PUT /api/clients/{id}/tier.
type ChangeTierRequest struct {
	Tier string `json:"tier"`

	tier commission.Tier
}

func (r *ChangeTierRequest) Validate() error {
	if strings.TrimSpace(r.Tier) == "" {
		return dErrors.New(dErrors.CodeValidation, "tier is required")
	}
	tier, err := commission.ParseTier(r.Tier)
	if err != nil {
		return err
	}
	r.tier = tier
	return nil
}
