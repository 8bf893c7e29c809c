package handler

import (
	"time"

	"nexushq/internal/dispute/models"
)

// DisputeResponse is the wire form of a dispute, shared with the client-facing
// filing endpoint.
type DisputeResponse struct {
	DisputeID     string     `json:"dispute_id"`
	ClientID      string     `json:"client_id"`
	RefType       string     `json:"ref_type"`
	RefID         int64      `json:"ref_id"`
	CardName      string     `json:"card_name"`
	SystemGrade   string     `json:"system_grade"`
	ReportedGrade string     `json:"reported_grade"`
	Status        string     `json:"status"`
	Resolution    string     `json:"resolution,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UnderReviewAt *time.Time `json:"under_review_at,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
}

type DisputeListResponse struct {
	Disputes []DisputeResponse `json:"disputes"`
	Total    int               `json:"total"`
}

func ToDisputeResponse(d *models.Dispute) DisputeResponse {
	return DisputeResponse{
		DisputeID:     d.ID.String(),
		ClientID:      d.ClientID.String(),
		RefType:       string(d.Ref.Type),
		RefID:         d.Ref.ID,
		CardName:      d.CardName,
		SystemGrade:   d.SystemGrade,
		ReportedGrade: d.ReportedGrade,
		Status:        string(d.Status),
		Resolution:    d.Resolution,
		CreatedAt:     d.CreatedAt,
		UnderReviewAt: d.UnderReviewAt,
		ResolvedAt:    d.ResolvedAt,
		RejectedAt:    d.RejectedAt,
	}
}
