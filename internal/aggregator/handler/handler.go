package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"nexushq/internal/aggregator"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

// Service defines the read views exposed over HTTP.
type Service interface {
	ClientTotals(ctx context.Context, clientID id.ClientID) (*aggregator.ClientSummary, error)
	NetworkStats(ctx context.Context) (*aggregator.NetworkStats, error)
	Leaderboard(ctx context.Context, metric aggregator.Metric, limit int) (*aggregator.Leaderboard, error)
	RecentSales(ctx context.Context, limit int) ([]aggregator.RecentSale, error)
	Dashboard(ctx context.Context) (*aggregator.Dashboard, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the operator dashboard. The caller applies admin authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/dashboard", h.HandleDashboard)
	r.Get("/api/dashboard/stats", h.HandleStats)
	r.Get("/api/dashboard/leaderboard", h.HandleLeaderboard)
	r.Get("/api/dashboard/sales", h.HandleRecentSales)
	r.Get("/api/dashboard/clients/{id}", h.HandleClientTotals)
}

// RegisterPublic mounts the unauthenticated status endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/api/status", h.HandleStatus)
}

// HandleDashboard handles GET /api/dashboard.
func (h *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.service.Dashboard(ctx)
	if err != nil {
		h.fail(ctx, w, "dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DashboardResponse{
		Stats:       toStatsResponse(d.Stats),
		Leaderboard: toLeaderboardResponse(d.Leaderboard),
		RecentSales: toRecentSalesResponse(d.RecentSales),
	})
}

// HandleStats handles GET /api/dashboard/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.NetworkStats(ctx)
	if err != nil {
		h.fail(ctx, w, "stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toStatsResponse(stats))
}

// HandleLeaderboard handles GET /api/dashboard/leaderboard?metric=&limit=.
func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	metric, err := aggregator.ParseMetric(r.URL.Query().Get("metric"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	board, err := h.service.Leaderboard(ctx, metric, limit)
	if err != nil {
		h.fail(ctx, w, "leaderboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toLeaderboardResponse(board))
}

// HandleRecentSales handles GET /api/dashboard/sales?limit=.
func (h *Handler) HandleRecentSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}
	sales, err := h.service.RecentSales(ctx, limit)
	if err != nil {
		h.fail(ctx, w, "recent sales", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RecentSalesResponse{Sales: toRecentSalesResponse(sales)})
}

// HandleClientTotals handles GET /api/dashboard/clients/{id}.
func (h *Handler) HandleClientTotals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	summary, err := h.service.ClientTotals(ctx, clientID)
	if err != nil {
		h.fail(ctx, w, "client totals", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSummaryResponse(*summary))
}

// HandleStatus handles GET /api/status.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.service.NetworkStats(ctx)
	if err != nil {
		h.fail(ctx, w, "status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:        "online",
		ActiveClients: stats.ActiveClients,
		TotalSales:    stats.Sales.Total,
		TotalVolume:   httputil.Money(stats.Volume.Total),
		TotalScans:    stats.TotalScans,
	})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, view string, err error) {
	h.logger.ErrorContext(ctx, "failed to compute view",
		"request_id", requestcontext.RequestID(ctx),
		"view", view,
		"error", err,
	)
	httputil.WriteError(w, err)
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
		return 0, false
	}
	return limit, true
}
