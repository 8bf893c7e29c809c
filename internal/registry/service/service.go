package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"nexushq/internal/audit"
	"nexushq/internal/commission"
	"nexushq/internal/registry/apikey"
	"nexushq/internal/registry/metrics"
	"nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/sentinel"
	"nexushq/pkg/requestcontext"
)

// maxKeyAttempts bounds retries when a generated key id collides.
const maxKeyAttempts = 3

// Store is the persistence port for clients.
type Store interface {
	CreateIfUnique(ctx context.Context, c *models.Client, policy models.DuplicatePolicy) error
	FindByID(ctx context.Context, clientID id.ClientID) (*models.Client, error)
	FindByAPIKeyID(ctx context.Context, keyID string) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	Execute(ctx context.Context, clientID id.ClientID, validate func(*models.Client) error, mutate func(*models.Client)) (*models.Client, error)
	TouchLastSeen(ctx context.Context, clientID id.ClientID, at time.Time) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service owns client identity, tier and API key resolution. It is the only
// path that changes a client's tier or active flag.
type Service struct {
	clients        Store
	policy         models.DuplicatePolicy
	keyCost        int
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithDuplicatePolicy sets which registrations count as the same client.
func WithDuplicatePolicy(policy models.DuplicatePolicy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithKeyCost sets the bcrypt cost for new API keys. Tests lower it.
func WithKeyCost(cost int) Option {
	return func(s *Service) {
		s.keyCost = cost
	}
}

func New(clients Store, opts ...Option) *Service {
	s := &Service{
		clients: clients,
		policy:  models.DuplicateByName,
		keyCost: apikey.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active client with a freshly issued API key.
// The cleartext key is only available in the returned Registration.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.Registration, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	for attempt := 1; ; attempt++ {
		issued, err := apikey.Generate(s.keyCost)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue api key")
		}

		client, err := models.NewClient(id.NewClientID(), req.Name, req.Email, req.Location,
			req.ResolvedTier(), issued.KeyID, issued.Hash, now)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
				return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
			}
			return nil, err
		}

		err = s.clients.CreateIfUnique(ctx, client, s.policy)
		switch {
		case err == nil:
			s.logAudit(ctx, audit.ActionClientRegistered, client.ID,
				"tier", client.Tier.String(),
				"name", client.Name,
			)
			if s.metrics != nil {
				s.metrics.IncrementRegistered(client.Tier.String())
			}
			return &models.Registration{Client: client, APIKey: issued.Key}, nil
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, dErrors.New(dErrors.CodeDuplicateRegistration, "an equivalent client is already registered")
		case errors.Is(err, sentinel.ErrConflict) && attempt < maxKeyAttempts:
			continue
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register client")
		}
	}
}

// Resolve maps a presented API key to its active client and records last_seen_at.
func (s *Service) Resolve(ctx context.Context, key string) (*models.Client, error) {
	if s.metrics != nil {
		defer s.metrics.ObserveResolve(time.Now())
	}

	if key == "" {
		s.resolveFailed("missing")
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "API key required")
	}
	keyID, err := apikey.Parse(key)
	if err != nil {
		s.resolveFailed("malformed")
		return nil, err
	}

	client, err := s.clients.FindByAPIKeyID(ctx, keyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.resolveFailed("unknown")
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid API key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve api key")
	}
	if err := apikey.Verify(key, client.APIKeyHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
			s.resolveFailed("mismatch")
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify api key")
	}
	if !client.IsActive() {
		s.resolveFailed("suspended")
		return nil, dErrors.New(dErrors.CodeSuspended, "client is suspended")
	}

	now := requestcontext.Now(ctx)
	if err := s.clients.TouchLastSeen(ctx, client.ID, now); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to record client last seen",
				"client_id", client.ID.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	} else {
		client.LastSeenAt = &now
	}
	return client, nil
}

// Get returns a client by id.
func (s *Service) Get(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, wrapClientErr(err, "failed to load client")
	}
	return client, nil
}

// List returns every client in registration order.
func (s *Service) List(ctx context.Context) ([]*models.Client, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list clients")
	}
	return clients, nil
}

// ChangeTier moves a client to another tier. Sales already priced keep their fee.
func (s *Service) ChangeTier(ctx context.Context, clientID id.ClientID, tier commission.Tier) (*models.Client, error) {
	if !tier.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown tier")
	}
	var previous commission.Tier
	client, err := s.clients.Execute(ctx, clientID,
		func(c *models.Client) error {
			previous = c.Tier
			return nil
		},
		func(c *models.Client) { c.ApplyTier(tier, requestcontext.Now(ctx)) },
	)
	if err != nil {
		return nil, wrapClientErr(err, "failed to change tier")
	}
	s.logAudit(ctx, audit.ActionClientTierChanged, clientID,
		"from_tier", previous.String(),
		"to_tier", tier.String(),
	)
	return client, nil
}

// Suspend deactivates a client. Suspended clients cannot phone home.
func (s *Service) Suspend(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	client, err := s.clients.Execute(ctx, clientID,
		func(c *models.Client) error { return c.CanSuspend() },
		func(c *models.Client) { c.ApplySuspension(requestcontext.Now(ctx)) },
	)
	if err != nil {
		return nil, wrapClientErr(err, "failed to suspend client")
	}
	s.logAudit(ctx, audit.ActionClientSuspended, clientID)
	if s.metrics != nil {
		s.metrics.IncrementStatusChange("suspend")
	}
	return client, nil
}

// Reactivate restores a suspended client.
func (s *Service) Reactivate(ctx context.Context, clientID id.ClientID) (*models.Client, error) {
	client, err := s.clients.Execute(ctx, clientID,
		func(c *models.Client) error { return c.CanReactivate() },
		func(c *models.Client) { c.ApplyReactivation(requestcontext.Now(ctx)) },
	)
	if err != nil {
		return nil, wrapClientErr(err, "failed to reactivate client")
	}
	s.logAudit(ctx, audit.ActionClientReactivated, clientID)
	if s.metrics != nil {
		s.metrics.IncrementStatusChange("reactivate")
	}
	return client, nil
}

// Tiers lists the subscription catalogue.
func (s *Service) Tiers() []commission.TierInfo {
	return commission.Tiers()
}

func (s *Service) resolveFailed(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementResolveFailure(reason)
	}
}

func wrapClientErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "client not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return dErrors.New(dErrors.CodeConflict, dErrors.MessageOf(err))
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, clientID id.ClientID, attributes ...string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     action,
		ClientID:   clientID.String(),
		Subject:    clientID.String(),
		Attributes: audit.Attrs(attributes...),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(action),
			"error", err,
		)
	}
}
