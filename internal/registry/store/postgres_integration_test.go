//go:build integration

package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"nexushq/internal/commission"
	"nexushq/internal/platform/postgres"
	"nexushq/internal/registry/models"
	"nexushq/internal/registry/store"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/sentinel"
	"nexushq/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	seq      atomic.Int64
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresStoreSuite) newClient(name, email string) *models.Client {
	c, err := models.NewClient(id.NewClientID(), name, email, "Austin, TX", commission.TierEnterprise,
		fmt.Sprintf("%012x", s.seq.Add(1)), "hash", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return c
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := s.newClient("Round Trip", "rt@example.com")
	s.Require().NoError(s.store.CreateIfUnique(ctx, c, models.DuplicateByName))

	found, err := s.store.FindByAPIKeyID(ctx, c.APIKeyID)
	s.Require().NoError(err)
	s.Equal(c.ID, found.ID)
	s.Equal(commission.TierEnterprise, found.Tier)
	s.Equal(models.ClientStatusActive, found.Status)
	s.Nil(found.LastSeenAt)

	_, err = s.store.FindByID(ctx, id.NewClientID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentDuplicateRegistration verifies the advisory lock makes the
// duplicate check and insert atomic across connections.
func (s *PostgresStoreSuite) TestConcurrentDuplicateRegistration() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successes, duplicates atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CreateIfUnique(ctx, s.newClient("Racing Shop", ""), models.DuplicateByName)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), duplicates.Load())
}

func (s *PostgresStoreSuite) TestDuplicatePolicies() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateIfUnique(ctx, s.newClient("Policy Shop", "p@example.com"), models.DuplicateByName))

	s.ErrorIs(s.store.CreateIfUnique(ctx, s.newClient("POLICY SHOP", ""), models.DuplicateByName), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.store.CreateIfUnique(ctx, s.newClient("Other", "P@example.com"), models.DuplicateByEmail), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.store.CreateIfUnique(ctx, s.newClient("Other", "P@example.com"), models.DuplicateByNameOrEmail), sentinel.ErrAlreadyUsed)
	s.NoError(s.store.CreateIfUnique(ctx, s.newClient("Policy Shop", ""), models.DuplicateNone))
}

func (s *PostgresStoreSuite) TestExecuteAndTouch() {
	ctx := context.Background()
	c := s.newClient("Exec Shop", "")
	s.Require().NoError(s.store.CreateIfUnique(ctx, c, models.DuplicateByName))

	updated, err := s.store.Execute(ctx, c.ID,
		func(c *models.Client) error { return c.CanSuspend() },
		func(c *models.Client) {
			c.ApplySuspension(time.Now())
			c.ApplyTier(commission.TierFounder, time.Now())
		},
	)
	s.Require().NoError(err)
	s.False(updated.IsActive())

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.ClientStatusSuspended, found.Status)
	s.Equal(commission.TierFounder, found.Tier)

	seen := time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.TouchLastSeen(ctx, c.ID, seen))
	s.Require().NoError(s.store.TouchLastSeen(ctx, c.ID, seen.Add(-time.Hour)))
	found, err = s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.LastSeenAt)
	s.True(seen.Equal(*found.LastSeenAt))

	s.ErrorIs(s.store.TouchLastSeen(ctx, id.NewClientID(), seen), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListOrdered() {
	ctx := context.Background()
	var ids []id.ClientID
	for i := range 4 {
		c := s.newClient(fmt.Sprintf("List %d", i), "")
		ids = append(ids, c.ID)
		s.Require().NoError(s.store.CreateIfUnique(ctx, c, models.DuplicateByName))
	}
	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 4)
	for i := range ids {
		s.Equal(ids[i], list[i].ID)
	}
}

func (s *PostgresStoreSuite) TestCommittedWritesBumpTheVersion() {
	ctx := context.Background()
	start, err := postgres.ReadVersion(ctx, s.postgres.DB)
	s.Require().NoError(err)

	c := s.newClient("Versioned", "")
	s.Require().NoError(s.store.CreateIfUnique(ctx, c, models.DuplicateByName))
	s.ErrorIs(s.store.CreateIfUnique(ctx, s.newClient("versioned", ""), models.DuplicateByName), sentinel.ErrAlreadyUsed)

	_, err = s.store.Execute(ctx, c.ID,
		func(c *models.Client) error { return c.CanSuspend() },
		func(c *models.Client) { c.ApplySuspension(time.Now()) },
	)
	s.Require().NoError(err)
	_, err = s.store.Execute(ctx, c.ID,
		func(c *models.Client) error { return c.CanSuspend() },
		func(c *models.Client) { c.ApplySuspension(time.Now()) },
	)
	s.Error(err)

	latest, err := postgres.ReadVersion(ctx, s.postgres.DB)
	s.Require().NoError(err)
	s.Equal(start.Epoch, latest.Epoch)
	s.Equal(start.N+2, latest.N)
}
