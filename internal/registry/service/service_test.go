package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"nexushq/internal/audit"
	"nexushq/internal/commission"
	"nexushq/internal/registry/metrics"
	"nexushq/internal/registry/models"
	"nexushq/internal/registry/store"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	audit   *audit.MemoryStore
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.audit = audit.NewMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store,
		WithKeyCost(bcrypt.MinCost),
		WithAuditPublisher(audit.NewPublisher(s.audit)),
		WithMetrics(s.metrics),
	)
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) register(name, tier string) *models.Registration {
	reg, err := s.service.Register(s.ctx, &models.RegisterRequest{Name: name, Tier: tier})
	s.Require().NoError(err)
	return reg
}

func (s *ServiceSuite) TestRegister() {
	s.Run("issues a key and stores only its hash", func() {
		reg := s.register("Card Kingdom Express", "professional")
		s.NotEmpty(reg.APIKey)
		s.Equal(commission.TierProfessional, reg.Client.Tier)
		s.True(reg.Client.IsActive())
		s.Equal(s.now, reg.Client.CreatedAt)
		s.NotContains(reg.Client.APIKeyHash, reg.APIKey)

		events := s.audit.ListByClient(s.ctx, reg.Client.ID.String())
		s.Require().Len(events, 1)
		s.Equal(audit.ActionClientRegistered, events[0].Action)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.ClientsRegistered.WithLabelValues("professional")))
	})

	s.Run("defaults to starter", func() {
		reg := s.register("Default Tier Shop", "")
		s.Equal(commission.TierStarter, reg.Client.Tier)
	})

	s.Run("rejects duplicate name case-insensitively", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Name: "card kingdom EXPRESS"})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRegistration))
	})

	s.Run("rejects unknown tier", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Name: "Tierless", Tier: "platinum"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects empty name", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Name: "  "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects malformed email", func() {
		_, err := s.service.Register(s.ctx, &models.RegisterRequest{Name: "Mailer", Email: "not-an-email"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestRegister_EmailPolicy() {
	svc := New(store.NewInMemory(), WithKeyCost(bcrypt.MinCost), WithDuplicatePolicy(models.DuplicateByEmail))

	_, err := svc.Register(s.ctx, &models.RegisterRequest{Name: "Shop", Email: "owner@example.com"})
	s.Require().NoError(err)

	_, err = svc.Register(s.ctx, &models.RegisterRequest{Name: "Shop", Email: "other@example.com"})
	s.NoError(err, "same name is allowed under the email policy")

	_, err = svc.Register(s.ctx, &models.RegisterRequest{Name: "Renamed", Email: "OWNER@example.com"})
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicateRegistration))
}

func (s *ServiceSuite) TestResolve() {
	reg := s.register("Resolver Shop", "enterprise")

	s.Run("valid key resolves and records last seen", func() {
		client, err := s.service.Resolve(s.ctx, reg.APIKey)
		s.Require().NoError(err)
		s.Equal(reg.Client.ID, client.ID)
		s.Require().NotNil(client.LastSeenAt)
		s.Equal(s.now, *client.LastSeenAt)

		stored, err := s.service.Get(s.ctx, client.ID)
		s.Require().NoError(err)
		s.Require().NotNil(stored.LastSeenAt)
	})

	s.Run("missing, malformed and unknown keys are unauthenticated", func() {
		for _, key := range []string{"", "garbage", "nxs_0123456789ab_notreal"} {
			_, err := s.service.Resolve(s.ctx, key)
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated), "key %q", key)
		}
	})

	s.Run("wrong secret for a known key id is unauthenticated", func() {
		forged := reg.APIKey[:len(reg.APIKey)-4] + "AAAA"
		if forged == reg.APIKey {
			forged = reg.APIKey[:len(reg.APIKey)-4] + "BBBB"
		}
		_, err := s.service.Resolve(s.ctx, forged)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
	})

	s.Run("suspended client is rejected", func() {
		_, err := s.service.Suspend(s.ctx, reg.Client.ID)
		s.Require().NoError(err)

		_, err = s.service.Resolve(s.ctx, reg.APIKey)
		s.True(dErrors.HasCode(err, dErrors.CodeSuspended))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.ResolveFailures.WithLabelValues("suspended")))
	})
}

func (s *ServiceSuite) TestLifecycle() {
	reg := s.register("Lifecycle Shop", "starter")

	s.Run("suspend twice conflicts", func() {
		_, err := s.service.Suspend(s.ctx, reg.Client.ID)
		s.Require().NoError(err)
		_, err = s.service.Suspend(s.ctx, reg.Client.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reactivate restores access", func() {
		client, err := s.service.Reactivate(s.ctx, reg.Client.ID)
		s.Require().NoError(err)
		s.True(client.IsActive())
		_, err = s.service.Resolve(s.ctx, reg.APIKey)
		s.NoError(err)
	})

	s.Run("change tier", func() {
		client, err := s.service.ChangeTier(s.ctx, reg.Client.ID, commission.TierFounder)
		s.Require().NoError(err)
		s.Equal(commission.TierFounder, client.Tier)

		events := s.audit.ListByClient(s.ctx, reg.Client.ID.String())
		last := events[len(events)-1]
		s.Equal(audit.ActionClientTierChanged, last.Action)
		s.Equal("starter", last.Attributes["from_tier"])
		s.Equal("founders", last.Attributes["to_tier"])
	})

	s.Run("unknown client is not found", func() {
		_, err := s.service.Suspend(s.ctx, id.NewClientID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.ChangeTier(s.ctx, id.NewClientID(), commission.TierStarter)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.Get(s.ctx, id.NewClientID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListOrderAndTiers() {
	a := s.register("First", "")
	b := s.register("Second", "")

	clients, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(clients, 2)
	s.Equal(a.Client.ID, clients[0].ID)
	s.Equal(b.Client.ID, clients[1].ID)

	s.Len(s.service.Tiers(), 4)
}
