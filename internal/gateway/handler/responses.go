package handler

import (
	"encoding/json"

	"nexushq/internal/gateway"
	ledgerModels "nexushq/internal/ledger/models"
	"nexushq/pkg/platform/httputil"
)

type SaleResponse struct {
	Success        bool        `json:"success"`
	SaleID         int64       `json:"sale_id"`
	SaleValue      json.Number `json:"sale_value"`
	NexusFee       json.Number `json:"nexus_fee"`
	ClientKeeps    json.Number `json:"client_keeps"`
	CommissionRate json.Number `json:"commission_rate"`
	Replayed       bool        `json:"replayed"`
	Message        string      `json:"message"`
}

type ScanResponse struct {
	Success bool  `json:"success"`
	ScanID  int64 `json:"scan_id"`
}

type BatchScansResponse struct {
	Success  bool    `json:"success"`
	Recorded int     `json:"recorded"`
	ScanIDs  []int64 `json:"scan_ids"`
}

func toSaleResponse(r *gateway.SaleReceipt) SaleResponse {
	msg := "Sale recorded"
	if r.Replayed {
		msg = "Sale already recorded"
	}
	return SaleResponse{
		Success:        true,
		SaleID:         int64(r.SaleID),
		SaleValue:      httputil.Money(r.SaleValue),
		NexusFee:       httputil.Money(r.NexusFee),
		ClientKeeps:    httputil.Money(r.ClientKeeps),
		CommissionRate: httputil.Rate(r.CommissionRate),
		Replayed:       r.Replayed,
		Message:        msg,
	}
}

func toBatchScansResponse(scans []*ledgerModels.Scan) BatchScansResponse {
	ids := make([]int64, len(scans))
	for i, scan := range scans {
		ids[i] = int64(scan.ID)
	}
	return BatchScansResponse{Success: true, Recorded: len(scans), ScanIDs: ids}
}
