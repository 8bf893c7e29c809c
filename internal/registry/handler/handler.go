package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexushq/internal/commission"
	"nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/httputil"
	"nexushq/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.Registration, error)
	Get(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	ChangeTier(ctx context.Context, clientID id.ClientID, tier commission.Tier) (*models.Client, error)
	Suspend(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	Reactivate(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	Tiers() []commission.TierInfo
}

// Handler wires operator client-management endpoints to the registry.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registry endpoints. The caller applies admin authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/clients/register", h.HandleRegister)
	r.Get("/api/clients", h.HandleList)
	r.Get("/api/clients/{id}", h.HandleGet)
	r.Put("/api/clients/{id}/tier", h.HandleChangeTier)
	r.Post("/api/clients/{id}/suspend", h.HandleSuspend)
	r.Post("/api/clients/{id}/reactivate", h.HandleReactivate)
	r.Get("/api/subscriptions/tiers", h.HandleTiers)
}

// HandleRegister handles POST /api/clients/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := h.service.Register(ctx, req.toModel())
	if err != nil {
		h.logger.WarnContext(ctx, "client registration failed",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "client registered",
		"request_id", requestID,
		"client_id", reg.Client.ID.String(),
		"tier", reg.Client.Tier.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, toRegisterResponse(reg))
}

// HandleList handles GET /api/clients.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clients, err := h.service.List(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list clients",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := ClientListResponse{Clients: make([]ClientResponse, 0, len(clients)), Total: len(clients)}
	for _, c := range clients {
		resp.Clients = append(resp.Clients, toClientResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /api/clients/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	h.withClientID(w, r, func(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
		return h.service.Get(ctx, clientID)
	})
}

// HandleChangeTier handles PUT /api/clients/{id}/tier.
func (h *Handler) HandleChangeTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[ChangeTierRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	h.withClientID(w, r, func(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
		return h.service.ChangeTier(ctx, clientID, req.tier)
	})
}

// HandleSuspend handles POST /api/clients/{id}/suspend.
func (h *Handler) HandleSuspend(w http.ResponseWriter, r *http.Request) {
	h.withClientID(w, r, h.service.Suspend)
}

// HandleReactivate handles POST /api/clients/{id}/reactivate.
func (h *Handler) HandleReactivate(w http.ResponseWriter, r *http.Request) {
	h.withClientID(w, r, h.service.Reactivate)
}

// HandleTiers handles GET /api/subscriptions/tiers.
func (h *Handler) HandleTiers(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, TiersResponse{Tiers: h.service.Tiers()})
}

func (h *Handler) withClientID(w http.ResponseWriter, r *http.Request, fn func(context.Context, id.ClientID) (*models.Client, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	clientID, err := id.ParseClientID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	client, err := fn(ctx, clientID)
	if err != nil {
		h.logger.WarnContext(ctx, "client operation failed",
			"request_id", requestID,
			"client_id", clientID.String(),
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toClientResponse(client))
}
