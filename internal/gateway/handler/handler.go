package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	disputeHandler "nexushq/internal/dispute/handler"
	disputeModels "nexushq/internal/dispute/models"
	"nexushq/internal/gateway"
	ledgerModels "nexushq/internal/ledger/models"
	"nexushq/internal/platform/middleware"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

// HeaderIdempotencyKey takes precedence over the body's idempotency_key.
const HeaderIdempotencyKey = "Idempotency-Key"

// Service defines the ingestion operations exposed to clients.
type Service interface {
	Authenticate(ctx context.Context, kind, apiKey string) (context.Context, error)
	IngestSale(ctx context.Context, apiKey string, payload ledgerModels.SalePayload, token string) (*gateway.SaleReceipt, error)
	IngestScan(ctx context.Context, apiKey string, payload ledgerModels.ScanPayload) (*ledgerModels.Scan, error)
	IngestBatchScans(ctx context.Context, apiKey string, payloads []ledgerModels.ScanPayload) ([]*ledgerModels.Scan, error)
	FileDispute(ctx context.Context, apiKey string, req disputeModels.FileRequest) (*disputeModels.Dispute, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// authenticate resolves the presented key before the body is read, so an
// unknown or suspended key is reported ahead of any body error.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request, kind string) (context.Context, bool) {
	ctx, err := h.service.Authenticate(r.Context(), kind, middleware.APIKey(r.Context()))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	return ctx, true
}

// Register mounts the phone-home endpoints. The caller applies
// middleware.RequireAPIKey so the presented key is in context.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/phone-home/sale", h.HandleSale)
	r.Post("/api/phone-home/scan", h.HandleScan)
	r.Post("/api/phone-home/batch-scans", h.HandleBatchScans)
	r.Post("/api/phone-home/disputes", h.HandleDispute)
}

// HandleSale handles POST /api/phone-home/sale. A replay answers 200 with the
// original receipt, same as a first commit.
func (h *Handler) HandleSale(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authenticate(w, r, gateway.KindSale)
	if !ok {
		return
	}
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SaleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	if token == "" {
		token = req.IdempotencyKey
	}

	receipt, err := h.service.IngestSale(ctx, middleware.APIKey(ctx), req.toPayload(), token)
	if err != nil {
		h.logger.WarnContext(ctx, "sale ingestion failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSaleResponse(receipt))
}

// HandleScan handles POST /api/phone-home/scan.
func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authenticate(w, r, gateway.KindScan)
	if !ok {
		return
	}
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ScanRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	scan, err := h.service.IngestScan(ctx, middleware.APIKey(ctx), req.toPayload())
	if err != nil {
		h.logger.WarnContext(ctx, "scan ingestion failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ScanResponse{Success: true, ScanID: int64(scan.ID)})
}

// HandleBatchScans handles POST /api/phone-home/batch-scans.
func (h *Handler) HandleBatchScans(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authenticate(w, r, gateway.KindBatch)
	if !ok {
		return
	}
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[BatchScansRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	scans, err := h.service.IngestBatchScans(ctx, middleware.APIKey(ctx), req.toPayloads())
	if err != nil {
		h.logger.WarnContext(ctx, "batch scan ingestion failed",
			"request_id", requestID,
			"batch_size", len(req.Scans),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toBatchScansResponse(scans))
}

// HandleDispute handles POST /api/phone-home/disputes.
func (h *Handler) HandleDispute(w http.ResponseWriter, r *http.Request) {
	ctx, ok := h.authenticate(w, r, gateway.KindDispute)
	if !ok {
		return
	}
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[DisputeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	d, err := h.service.FileDispute(ctx, middleware.APIKey(ctx), req.toModel())
	if err != nil {
		h.logger.WarnContext(ctx, "dispute filing failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, disputeHandler.ToDisputeResponse(d))
}
