package handler

import (
	"encoding/json"
	"time"

	"nexushq/internal/commission"
	"nexushq/internal/registry/models"
	"nexushq/pkg/platform/httputil"
)

// RegisterResponse is returned once per client; it is the only time the API key is shown.
type RegisterResponse struct {
	Success        bool        `json:"success"`
	ClientID       string      `json:"client_id"`
	APIKey         string      `json:"api_key"`
	Tier           string      `json:"tier"`
	CommissionRate json.Number `json:"commission_rate"`
	MonthlyFee     json.Number `json:"monthly_fee"`
	Message        string      `json:"message"`
}

// ClientResponse never carries key material.
type ClientResponse struct {
	ClientID       string      `json:"client_id"`
	Name           string      `json:"name"`
	Email          string      `json:"email,omitempty"`
	Location       string      `json:"location,omitempty"`
	Tier           string      `json:"subscription_tier"`
	CommissionRate json.Number `json:"commission_rate"`
	MonthlyFee     json.Number `json:"monthly_fee"`
	Status         string      `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LastSeen       *time.Time  `json:"last_seen,omitempty"`
}

type ClientListResponse struct {
	Clients []ClientResponse `json:"clients"`
	Total   int              `json:"total"`
}

type TiersResponse struct {
	Tiers []commission.TierInfo `json:"tiers"`
}

func toRegisterResponse(reg *models.Registration) RegisterResponse {
	info := reg.Client.Tier.Info()
	return RegisterResponse{
		Success:        true,
		ClientID:       reg.Client.ID.String(),
		APIKey:         reg.APIKey,
		Tier:           reg.Client.Tier.String(),
		CommissionRate: httputil.Rate(reg.Client.Tier.RatePercent()),
		MonthlyFee:     httputil.Money(info.MonthlyFee),
		Message:        "Client registered. Store the API key now; it cannot be shown again.",
	}
}

func toClientResponse(c *models.Client) ClientResponse {
	return ClientResponse{
		ClientID:       c.ID.String(),
		Name:           c.Name,
		Email:          c.Email,
		Location:       c.Location,
		Tier:           c.Tier.String(),
		CommissionRate: httputil.Rate(c.Tier.RatePercent()),
		MonthlyFee:     httputil.Money(c.Tier.Info().MonthlyFee),
		Status:         string(c.Status),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		LastSeen:       c.LastSeenAt,
	}
}
