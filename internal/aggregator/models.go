package aggregator

import (
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"nexushq/internal/commission"
	"nexushq/internal/ledger/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultRecentLimit      = 20
	MaxRecentLimit          = 200
)

// Metric selects the leaderboard ranking.
type Metric string

const (
	MetricSaleValue Metric = "total_sale_value"
	MetricSaleCount Metric = "sale_count"
	MetricFees      Metric = "total_fees"
	MetricScanCount Metric = "scan_count"
)

// ParseMetric maps a query value to a Metric; empty selects MetricSaleValue.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return MetricSaleValue, nil
	case MetricSaleValue, MetricSaleCount, MetricFees, MetricScanCount:
		return m, nil
	default:
		return "", dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown leaderboard metric %q", s))
	}
}

// Windowed is one figure over all time, the current UTC day and the current UTC month.
type Windowed[T any] struct {
	Total T `json:"total"`
	Today T `json:"today"`
	Month T `json:"month"`
}

// NetworkStats is the network-wide headline view.
type NetworkStats struct {
	ActiveClients int                       `json:"active_clients"`
	TotalClients  int                       `json:"total_clients"`
	Sales         Windowed[int64]           `json:"sales"`
	Volume        Windowed[decimal.Decimal] `json:"volume"`
	Fees          Windowed[decimal.Decimal] `json:"fees"`
	MRR           decimal.Decimal           `json:"mrr"`
	TotalScans    int64                     `json:"total_scans"`
	OpenDisputes  int64                     `json:"open_disputes"`
	Watermark     models.Watermark          `json:"watermark"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}

// ClientSummary is one client's identity and running totals.
type ClientSummary struct {
	ClientID    id.ClientID     `json:"client_id"`
	Name        string          `json:"name"`
	Tier        commission.Tier `json:"tier"`
	Active      bool            `json:"active"`
	SaleCount   int64           `json:"sale_count"`
	SaleValue   decimal.Decimal `json:"sale_value"`
	NexusFees   decimal.Decimal `json:"nexus_fees"`
	ClientKeeps decimal.Decimal `json:"client_keeps"`
	ScanCount   int64           `json:"scan_count"`
	LastSaleAt  *time.Time      `json:"last_sale_at,omitempty"`
}

// LeaderboardEntry is a ranked ClientSummary. Rank starts at 1.
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	ClientSummary
}

type Leaderboard struct {
	Metric    Metric             `json:"metric"`
	Entries   []LeaderboardEntry `json:"entries"`
	Watermark models.Watermark   `json:"watermark"`
}

// RecentSale is a sale joined with its client's display name.
type RecentSale struct {
	SaleID      id.SaleID       `json:"sale_id"`
	ClientID    id.ClientID     `json:"client_id"`
	ClientName  string          `json:"client_name"`
	DeckName    string          `json:"deck_name"`
	Format      string          `json:"format"`
	SaleValue   decimal.Decimal `json:"sale_value"`
	NexusFee    decimal.Decimal `json:"nexus_fee"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

type Dashboard struct {
	Stats       *NetworkStats `json:"stats"`
	Leaderboard *Leaderboard  `json:"leaderboard"`
	RecentSales []RecentSale  `json:"recent_sales"`
}

func newSummary(t models.ClientTotals) ClientSummary {
	return ClientSummary{
		ClientID:    t.ClientID,
		SaleCount:   t.SaleCount,
		SaleValue:   t.SaleValue,
		NexusFees:   t.NexusFees,
		ClientKeeps: t.ClientKeeps,
		ScanCount:   t.ScanCount,
		LastSaleAt:  t.LastSaleAt,
	}
}

// compare orders a before b when a ranks higher under m; ties go to the
// earlier client id.
func (m Metric) compare(a, b ClientSummary) int {
	var c int
	switch m {
	case MetricSaleCount:
		c = cmp.Compare(b.SaleCount, a.SaleCount)
	case MetricFees:
		c = b.NexusFees.Cmp(a.NexusFees)
	case MetricScanCount:
		c = cmp.Compare(b.ScanCount, a.ScanCount)
	default:
		c = b.SaleValue.Cmp(a.SaleValue)
	}
	if c != 0 {
		return c
	}
	return a.ClientID.Compare(b.ClientID)
}

func clampLimit(limit, def, maxLimit int) int {
	switch {
	case limit <= 0:
		return def
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
