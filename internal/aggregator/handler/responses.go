package handler

import (
	"encoding/json"
	"time"

	"nexushq/internal/aggregator"
	"nexushq/internal/ledger/models"
	"nexushq/pkg/platform/httputil"
)

type WindowedMoney struct {
	Total json.Number `json:"total"`
	Today json.Number `json:"today"`
	Month json.Number `json:"month"`
}

type StatsResponse struct {
	ActiveClients int                        `json:"active_clients"`
	TotalClients  int                        `json:"total_clients"`
	Sales         aggregator.Windowed[int64] `json:"sales"`
	Volume        WindowedMoney              `json:"volume"`
	Fees          WindowedMoney              `json:"fees"`
	MRR           json.Number                `json:"mrr"`
	TotalScans    int64                      `json:"total_scans"`
	OpenDisputes  int64                      `json:"open_disputes"`
	Watermark     models.Watermark           `json:"watermark"`
	GeneratedAt   time.Time                  `json:"generated_at"`
}

type ClientSummaryResponse struct {
	ClientID    string      `json:"client_id"`
	Name        string      `json:"name"`
	Tier        string      `json:"tier"`
	Active      bool        `json:"active"`
	SaleCount   int64       `json:"sale_count"`
	SaleValue   json.Number `json:"total_sale_value"`
	NexusFees   json.Number `json:"total_fees"`
	ClientKeeps json.Number `json:"client_keeps"`
	ScanCount   int64       `json:"scan_count"`
	LastSaleAt  *time.Time  `json:"last_sale_at,omitempty"`
}

type LeaderboardEntryResponse struct {
	Rank int `json:"rank"`
	ClientSummaryResponse
}

type LeaderboardResponse struct {
	Metric  string                     `json:"metric"`
	Entries []LeaderboardEntryResponse `json:"entries"`
}

type RecentSaleResponse struct {
	SaleID      int64       `json:"sale_id"`
	ClientID    string      `json:"client_id"`
	ClientName  string      `json:"client_name"`
	DeckName    string      `json:"deck_name"`
	Format      string      `json:"format"`
	SaleValue   json.Number `json:"sale_value"`
	NexusFee    json.Number `json:"nexus_fee"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

type RecentSalesResponse struct {
	Sales []RecentSaleResponse `json:"sales"`
}

type DashboardResponse struct {
	Stats       StatsResponse        `json:"stats"`
	Leaderboard LeaderboardResponse  `json:"leaderboard"`
	RecentSales []RecentSaleResponse `json:"recent_sales"`
}

type StatusResponse struct {
	Status        string      `json:"status"`
	ActiveClients int         `json:"active_clients"`
	TotalSales    int64       `json:"total_sales"`
	TotalVolume   json.Number `json:"total_volume"`
	TotalScans    int64       `json:"total_scans"`
}

func toStatsResponse(s *aggregator.NetworkStats) StatsResponse {
	return StatsResponse{
		ActiveClients: s.ActiveClients,
		TotalClients:  s.TotalClients,
		Sales:         s.Sales,
		Volume: WindowedMoney{
			Total: httputil.Money(s.Volume.Total),
			Today: httputil.Money(s.Volume.Today),
			Month: httputil.Money(s.Volume.Month),
		},
		Fees: WindowedMoney{
			Total: httputil.Money(s.Fees.Total),
			Today: httputil.Money(s.Fees.Today),
			Month: httputil.Money(s.Fees.Month),
		},
		MRR:          httputil.Money(s.MRR),
		TotalScans:   s.TotalScans,
		OpenDisputes: s.OpenDisputes,
		Watermark:    s.Watermark,
		GeneratedAt:  s.GeneratedAt,
	}
}

func toSummaryResponse(c aggregator.ClientSummary) ClientSummaryResponse {
	return ClientSummaryResponse{
		ClientID:    c.ClientID.String(),
		Name:        c.Name,
		Tier:        c.Tier.String(),
		Active:      c.Active,
		SaleCount:   c.SaleCount,
		SaleValue:   httputil.Money(c.SaleValue),
		NexusFees:   httputil.Money(c.NexusFees),
		ClientKeeps: httputil.Money(c.ClientKeeps),
		ScanCount:   c.ScanCount,
		LastSaleAt:  c.LastSaleAt,
	}
}

func toLeaderboardResponse(b *aggregator.Leaderboard) LeaderboardResponse {
	resp := LeaderboardResponse{
		Metric:  string(b.Metric),
		Entries: make([]LeaderboardEntryResponse, 0, len(b.Entries)),
	}
	for _, e := range b.Entries {
		resp.Entries = append(resp.Entries, LeaderboardEntryResponse{
			Rank:                  e.Rank,
			ClientSummaryResponse: toSummaryResponse(e.ClientSummary),
		})
	}
	return resp
}

func toRecentSalesResponse(sales []aggregator.RecentSale) []RecentSaleResponse {
	out := make([]RecentSaleResponse, 0, len(sales))
	for _, s := range sales {
		out = append(out, RecentSaleResponse{
			SaleID:      int64(s.SaleID),
			ClientID:    s.ClientID.String(),
			ClientName:  s.ClientName,
			DeckName:    s.DeckName,
			Format:      s.Format,
			SaleValue:   httputil.Money(s.SaleValue),
			NexusFee:    httputil.Money(s.NexusFee),
			SubmittedAt: s.SubmittedAt,
		})
	}
	return out
}
