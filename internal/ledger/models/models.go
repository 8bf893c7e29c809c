package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nexushq/internal/commission"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

const (
	maxTextLength     = 256
	maxCardLines      = 500
	MaxIdempotencyKey = 128
	defaultListBatch  = 100
	maxListBatch      = 1000
)

// CardLine is one entry of a sold deck.
type CardLine struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

// SalePayload is what a client reports for a sale.
type SalePayload struct {
	DeckName  string
	Format    string
	CardCount int
	SaleValue decimal.Decimal
	Cards     []CardLine
}

// Validate checks the payload. An invalid sale value fails with CodeInvalidSaleValue.
func (p *SalePayload) Validate() error {
	p.DeckName = strings.TrimSpace(p.DeckName)
	p.Format = strings.TrimSpace(p.Format)
	if err := commission.ValidateSaleValue(p.SaleValue); err != nil {
		return err
	}
	if len(p.DeckName) > maxTextLength || len(p.Format) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "deck name and format must be 256 characters or less")
	}
	if p.CardCount < 0 {
		return dErrors.New(dErrors.CodeValidation, "card_count cannot be negative")
	}
	if len(p.Cards) > maxCardLines {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("a sale may list at most %d card lines", maxCardLines))
	}
	for i, c := range p.Cards {
		if strings.TrimSpace(c.Name) == "" || c.Qty <= 0 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("card line %d needs a name and a positive qty", i))
		}
	}
	return nil
}

// Sale is a committed, immutable sale record.
type Sale struct {
	ID               id.SaleID
	ClientID         id.ClientID
	DeckName         string
	Format           string
	CardCount        int
	Cards            []CardLine
	SaleValue        decimal.Decimal
	Tier             commission.Tier
	NexusFee         decimal.Decimal
	ClientKeeps      decimal.Decimal
	SubmittedAt      time.Time
	IdempotencyToken string
}

// NewSale prices a validated payload under tier.
func NewSale(clientID id.ClientID, p SalePayload, tier commission.Tier, token string, now time.Time) (*Sale, error) {
	split, err := commission.Price(tier, p.SaleValue)
	if err != nil {
		return nil, err
	}
	cards := make([]CardLine, len(p.Cards))
	copy(cards, p.Cards)
	return &Sale{
		ClientID:         clientID,
		DeckName:         p.DeckName,
		Format:           p.Format,
		CardCount:        p.CardCount,
		Cards:            cards,
		SaleValue:        p.SaleValue,
		Tier:             tier,
		NexusFee:         split.Fee,
		ClientKeeps:      split.ClientKeeps,
		SubmittedAt:      now,
		IdempotencyToken: token,
	}, nil
}

// ScanPayload is what a client reports for one card scan.
type ScanPayload struct {
	CardName   string
	SetCode    string
	Rarity     string
	Price      decimal.Decimal
	Confidence float64
	SaleID     *id.SaleID
}

func (p *ScanPayload) Validate() error {
	p.CardName = strings.TrimSpace(p.CardName)
	p.SetCode = strings.TrimSpace(p.SetCode)
	p.Rarity = strings.TrimSpace(p.Rarity)
	if p.CardName == "" {
		return dErrors.New(dErrors.CodeValidation, "card_name is required")
	}
	if len(p.CardName) > maxTextLength || len(p.SetCode) > maxTextLength || len(p.Rarity) > maxTextLength {
		return dErrors.New(dErrors.CodeValidation, "scan text fields must be 256 characters or less")
	}
	if p.Price.IsNegative() {
		return dErrors.New(dErrors.CodeValidation, "price cannot be negative")
	}
	// Half-up to cents; prices are never negative here.
	p.Price = p.Price.Round(2)
	if p.Confidence < 0 || p.Confidence > 1 {
		return dErrors.New(dErrors.CodeValidation, "confidence must be between 0 and 1")
	}
	return nil
}

// Scan is a committed card scan. Scans are volume signals, not revenue.
type Scan struct {
	ID         id.ScanID
	ClientID   id.ClientID
	CardName   string
	SetCode    string
	Rarity     string
	Price      decimal.Decimal
	Confidence float64
	ScannedAt  time.Time
	SaleID     *id.SaleID
}

func NewScan(clientID id.ClientID, p ScanPayload, now time.Time) *Scan {
	return &Scan{
		ClientID:   clientID,
		CardName:   p.CardName,
		SetCode:    p.SetCode,
		Rarity:     p.Rarity,
		Price:      p.Price,
		Confidence: p.Confidence,
		ScannedAt:  now,
		SaleID:     p.SaleID,
	}
}

// Filter narrows a listing by client and by a half-open time window [Since, Until).
type Filter struct {
	ClientID *id.ClientID
	Since    time.Time
	Until    time.Time
}

// Matches reports whether an entry for clientID at t passes the filter.
func (f Filter) Matches(clientID id.ClientID, t time.Time) bool {
	if f.ClientID != nil && *f.ClientID != clientID {
		return false
	}
	if !f.Since.IsZero() && t.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !t.Before(f.Until) {
		return false
	}
	return true
}

// Page is a cursor over ledger ids. Entries with id > AfterID are yielded in
// ascending id order, at most Limit of them (0 means no limit), fetched from
// storage BatchSize at a time.
type Page struct {
	AfterID   int64
	Limit     int
	BatchSize int
}

// Batch returns the effective fetch size.
func (p Page) Batch() int {
	switch {
	case p.BatchSize <= 0:
		return defaultListBatch
	case p.BatchSize > maxListBatch:
		return maxListBatch
	default:
		return p.BatchSize
	}
}

// Watermark is the highest committed id of each ledger stream.
type Watermark struct {
	LastSaleID id.SaleID `json:"last_sale_id"`
	LastScanID id.ScanID `json:"last_scan_id"`
}

// ClientTotals is the running rollup for one client, maintained in the same
// commit as the ledger entries it summarizes.
type ClientTotals struct {
	ClientID    id.ClientID
	SaleCount   int64
	SaleValue   decimal.Decimal
	NexusFees   decimal.Decimal
	ClientKeeps decimal.Decimal
	ScanCount   int64
	LastSaleAt  *time.Time
}

// ApplySale folds a committed sale into the totals.
func (t *ClientTotals) ApplySale(s *Sale) {
	t.SaleCount++
	t.SaleValue = t.SaleValue.Add(s.SaleValue)
	t.NexusFees = t.NexusFees.Add(s.NexusFee)
	t.ClientKeeps = t.ClientKeeps.Add(s.ClientKeeps)
	if t.LastSaleAt == nil || t.LastSaleAt.Before(s.SubmittedAt) {
		at := s.SubmittedAt
		t.LastSaleAt = &at
	}
}

// WindowTotals sums sales inside a time window.
type WindowTotals struct {
	SaleCount int64
	SaleValue decimal.Decimal
	NexusFees decimal.Decimal
}
