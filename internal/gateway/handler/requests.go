package handler

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	disputeModels "nexushq/internal/dispute/models"
	ledgerModels "nexushq/internal/ledger/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

// SaleRequest is the body of POST /api/phone-home/sale. sale_value may be a
// JSON number or a numeric string; it is kept raw so a non-numeric value is
// reported as invalid_sale_value rather than as a malformed body.
type SaleRequest struct {
	DeckName       string                  `json:"deck_name"`
	Format         string                  `json:"format"`
	CardCount      int                     `json:"card_count"`
	SaleValue      json.RawMessage         `json:"sale_value"`
	Cards          []ledgerModels.CardLine `json:"cards"`
	IdempotencyKey string                  `json:"idempotency_key"`

	saleValue decimal.Decimal
}

func (r *SaleRequest) Validate() error {
	raw := bytes.TrimSpace(r.SaleValue)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return dErrors.New(dErrors.CodeInvalidSaleValue, "sale_value is required")
	}
	if err := r.saleValue.UnmarshalJSON(raw); err != nil {
		return dErrors.New(dErrors.CodeInvalidSaleValue, "sale_value must be numeric")
	}
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	return nil
}

func (r *SaleRequest) toPayload() ledgerModels.SalePayload {
	return ledgerModels.SalePayload{
		DeckName:  r.DeckName,
		Format:    r.Format,
		CardCount: r.CardCount,
		SaleValue: r.saleValue,
		Cards:     r.Cards,
	}
}

// ScanRequest is one card scan, alone or inside a batch.
type ScanRequest struct {
	CardName   string          `json:"card_name"`
	SetCode    string          `json:"set_code"`
	Rarity     string          `json:"rarity"`
	Price      decimal.Decimal `json:"price"`
	Confidence float64         `json:"confidence"`
	SaleID     *int64          `json:"sale_id,omitempty"`
}

func (r *ScanRequest) Validate() error {
	if r.SaleID != nil && *r.SaleID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "sale_id must be positive")
	}
	return nil
}

func (r *ScanRequest) toPayload() ledgerModels.ScanPayload {
	p := ledgerModels.ScanPayload{
		CardName:   r.CardName,
		SetCode:    r.SetCode,
		Rarity:     r.Rarity,
		Price:      r.Price,
		Confidence: r.Confidence,
	}
	if r.SaleID != nil {
		saleID := id.SaleID(*r.SaleID)
		p.SaleID = &saleID
	}
	return p
}

// BatchScansRequest is the body of POST /api/phone-home/batch-scans.
type BatchScansRequest struct {
	Scans []ScanRequest `json:"scans"`
}

func (r *BatchScansRequest) Validate() error {
	if len(r.Scans) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one scan is required")
	}
	for i := range r.Scans {
		if err := r.Scans[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *BatchScansRequest) toPayloads() []ledgerModels.ScanPayload {
	out := make([]ledgerModels.ScanPayload, len(r.Scans))
	for i := range r.Scans {
		out[i] = r.Scans[i].toPayload()
	}
	return out
}

// DisputeRequest is the body of POST /api/phone-home/disputes.
type DisputeRequest struct {
	RefType       string `json:"ref_type"`
	RefID         int64  `json:"ref_id"`
	CardName      string `json:"card_name"`
	SystemGrade   string `json:"system_grade"`
	ReportedGrade string `json:"reported_grade"`

	refType disputeModels.RefType
}

func (r *DisputeRequest) Validate() error {
	t, err := disputeModels.ParseRefType(r.RefType)
	if err != nil {
		return err
	}
	r.refType = t
	return nil
}

func (r *DisputeRequest) toModel() disputeModels.FileRequest {
	return disputeModels.FileRequest{
		Ref:           disputeModels.Ref{Type: r.refType, ID: r.RefID},
		CardName:      r.CardName,
		SystemGrade:   r.SystemGrade,
		ReportedGrade: r.ReportedGrade,
	}
}
