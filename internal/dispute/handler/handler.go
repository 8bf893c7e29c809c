package handler

import (
	"context"
	"iter"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nexushq/internal/dispute/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Service defines the operator dispute operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, disputeID id.DisputeID) (*models.Dispute, error)
	List(ctx context.Context, filter models.Filter) iter.Seq2[*models.Dispute, error]
	Transition(ctx context.Context, disputeID id.DisputeID, target models.Status, resolution string) (*models.Dispute, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts operator dispute endpoints. The caller applies admin authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/disputes", h.HandleList)
	r.Get("/api/disputes/{id}", h.HandleGet)
	r.Post("/api/disputes/{id}/transition", h.HandleTransition)
}

// HandleList handles GET /api/disputes?status=&client_id=&limit=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var filter models.Filter
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = &status
	}
	if raw := q.Get("client_id"); raw != "" {
		clientID, err := id.ParseClientID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.ClientID = &clientID
	}
	limit := defaultListLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxListLimit)
	}

	resp := DisputeListResponse{Disputes: []DisputeResponse{}}
	for d, err := range h.service.List(ctx, filter) {
		if err != nil {
			h.logger.ErrorContext(ctx, "failed to list disputes",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			httputil.WriteError(w, err)
			return
		}
		resp.Disputes = append(resp.Disputes, ToDisputeResponse(d))
		if len(resp.Disputes) == limit {
			break
		}
	}
	resp.Total = len(resp.Disputes)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /api/disputes/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	disputeID, err := id.ParseDisputeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), disputeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ToDisputeResponse(d))
}

// HandleTransition handles POST /api/disputes/{id}/transition.
func (h *Handler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	disputeID, err := id.ParseDisputeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransitionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Transition(ctx, disputeID, req.status, req.Resolution)
	if err != nil {
		h.logger.WarnContext(ctx, "dispute transition failed",
			"request_id", requestID,
			"dispute_id", disputeID.String(),
			"status", req.Status,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "dispute transitioned",
		"request_id", requestID,
		"dispute_id", disputeID.String(),
		"status", string(d.Status),
	)
	httputil.WriteJSON(w, http.StatusOK, ToDisputeResponse(d))
}
