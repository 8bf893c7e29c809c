//go:build integration

package store_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"nexushq/internal/commission"
	"nexushq/internal/ledger/models"
	"nexushq/internal/ledger/store"
	"nexushq/internal/platform/postgres"
	registryModels "nexushq/internal/registry/models"
	registryStore "nexushq/internal/registry/store"
	id "nexushq/pkg/domain"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/platform/sentinel"
	"nexushq/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	clients  *registryStore.PostgresStore
	store    *store.PostgresStore
	seq      atomic.Int64
	now      time.Time
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.clients = registryStore.NewPostgres(s.postgres.DB)
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
}

func (s *PostgresLedgerSuite) newClient() id.ClientID {
	n := s.seq.Add(1)
	c, err := registryModels.NewClient(id.NewClientID(), fmt.Sprintf("Shop %d", n), "", "", commission.TierStarter,
		fmt.Sprintf("%012x", n), "hash", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.clients.CreateIfUnique(context.Background(), c, registryModels.DuplicateNone))
	return c.ID
}

func (s *PostgresLedgerSuite) sale(clientID id.ClientID, value, token string) *models.Sale {
	sale, err := models.NewSale(clientID, models.SalePayload{
		DeckName:  "Burn",
		Format:    "legacy",
		CardCount: 60,
		SaleValue: decimal.RequireFromString(value),
		Cards:     []models.CardLine{{Name: "Lightning Bolt", Qty: 4}},
	}, commission.TierStarter, token, s.now)
	s.Require().NoError(err)
	return sale
}

func (s *PostgresLedgerSuite) TestAppendSaleRoundTrip() {
	ctx := context.Background()
	client := s.newClient()

	committed, created, err := s.store.AppendSale(ctx, s.sale(client, "100.00", "a1"))
	s.Require().NoError(err)
	s.True(created)

	found, err := s.store.FindSale(ctx, committed.ID)
	s.Require().NoError(err)
	s.Equal(client, found.ClientID)
	s.Equal("8.00", found.NexusFee.StringFixed(2))
	s.Equal("92.00", found.ClientKeeps.StringFixed(2))
	s.Equal([]models.CardLine{{Name: "Lightning Bolt", Qty: 4}}, found.Cards)
	s.Equal("a1", found.IdempotencyToken)
	s.True(s.now.Equal(found.SubmittedAt))

	again, created, err := s.store.AppendSale(ctx, s.sale(client, "1.00", "a1"))
	s.Require().NoError(err)
	s.False(created)
	s.Equal(committed.ID, again.ID)

	_, _, err = s.store.AppendSale(ctx, s.sale(id.NewClientID(), "1.00", ""))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresLedgerSuite) TestConcurrentSameToken() {
	ctx := context.Background()
	client := s.newClient()

	const writers = 16
	var wg sync.WaitGroup
	ids := make([]id.SaleID, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sale, _, err := s.store.AppendSale(ctx, s.sale(client, "40.00", "same"))
			if s.NoError(err) {
				ids[i] = sale.ID
			}
		}()
	}
	wg.Wait()

	for _, saleID := range ids {
		s.Equal(ids[0], saleID)
	}
	err := s.store.Read(ctx, func(ctx context.Context, r store.Reader) error {
		t, err := r.Totals(ctx, client)
		s.Require().NoError(err)
		s.Equal(int64(1), t.SaleCount)
		s.Equal("40.00", t.SaleValue.StringFixed(2))
		return nil
	})
	s.NoError(err)
}

func (s *PostgresLedgerSuite) TestAppendScansIsAtomic() {
	ctx := context.Background()
	client := s.newClient()
	missing := id.SaleID(12345)

	_, err := s.store.AppendScans(ctx, []*models.Scan{
		models.NewScan(client, models.ScanPayload{CardName: "Ponder"}, s.now),
		models.NewScan(client, models.ScanPayload{CardName: "Preordain", SaleID: &missing}, s.now),
	})
	s.ErrorIs(err, sentinel.ErrNotFound)

	scans, err := s.store.ListScans(ctx, models.Filter{ClientID: &client}, 0, 10)
	s.Require().NoError(err)
	s.Empty(scans)

	out, err := s.store.AppendScans(ctx, []*models.Scan{
		models.NewScan(client, models.ScanPayload{CardName: "Ponder", Price: decimal.RequireFromString("1.25"), Confidence: 0.75}, s.now),
		models.NewScan(client, models.ScanPayload{CardName: "Preordain"}, s.now),
	})
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.Less(out[0].ID, out[1].ID)

	found, err := s.store.FindScan(ctx, out[0].ID)
	s.Require().NoError(err)
	s.Equal("1.25", found.Price.StringFixed(2))
	s.InDelta(0.75, found.Confidence, 1e-9)
	s.Nil(found.SaleID)
}

func (s *PostgresLedgerSuite) TestReadSnapshot() {
	ctx := context.Background()
	a, b := s.newClient(), s.newClient()
	for _, c := range []id.ClientID{a, a, b} {
		_, _, err := s.store.AppendSale(ctx, s.sale(c, "10.00", ""))
		s.Require().NoError(err)
	}

	err := s.store.Read(ctx, func(ctx context.Context, r store.Reader) error {
		w, err := r.Watermark(ctx)
		s.Require().NoError(err)
		s.NotZero(w.LastSaleID)

		totals, err := r.AllTotals(ctx)
		s.Require().NoError(err)
		s.Len(totals, 2)

		win, err := r.SalesWindow(ctx, s.now, s.now.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(int64(3), win.SaleCount)
		s.Equal("30.00", win.SaleValue.StringFixed(2))
		s.Equal("2.40", win.NexusFees.StringFixed(2))

		empty, err := r.SalesWindow(ctx, s.now.Add(time.Hour), time.Time{})
		s.Require().NoError(err)
		s.Zero(empty.SaleCount)

		recent, err := r.RecentSales(ctx, 2)
		s.Require().NoError(err)
		s.Require().Len(recent, 2)
		s.Greater(recent[0].ID, recent[1].ID)
		return nil
	})
	s.NoError(err)
}

func (s *PostgresLedgerSuite) TestVersionAdvancesOncePerCommit() {
	ctx := context.Background()
	client := s.newClient()

	start, err := s.store.Version(ctx)
	s.Require().NoError(err)
	s.NotEmpty(start.Epoch)

	_, _, err = s.store.AppendSale(ctx, s.sale(client, "10.00", "v1"))
	s.Require().NoError(err)
	afterSale, err := s.store.Version(ctx)
	s.Require().NoError(err)
	s.Equal(start.N+1, afterSale.N)
	s.Equal(start.Epoch, afterSale.Epoch)

	_, created, err := s.store.AppendSale(ctx, s.sale(client, "10.00", "v1"))
	s.Require().NoError(err)
	s.False(created)
	replayed, err := s.store.Version(ctx)
	s.Require().NoError(err)
	s.Equal(afterSale, replayed)

	_, err = s.store.AppendScans(ctx, []*models.Scan{models.NewScan(client, models.ScanPayload{CardName: "Opt"}, s.now)})
	s.Require().NoError(err)
	s.newClient()
	latest, err := s.store.Version(ctx)
	s.Require().NoError(err)
	s.Equal(afterSale.N+2, latest.N)

	_, _, err = s.store.AppendSale(ctx, s.sale(id.NewClientID(), "1.00", ""))
	s.ErrorIs(err, sentinel.ErrNotFound)
	failed, err := s.store.Version(ctx)
	s.Require().NoError(err)
	s.Equal(latest, failed)
}

func (s *PostgresLedgerSuite) TestSnapshotVersionMatchesSnapshotData() {
	ctx := context.Background()
	client := s.newClient()
	_, _, err := s.store.AppendSale(ctx, s.sale(client, "10.00", ""))
	s.Require().NoError(err)

	var seen dataversion.Version
	err = s.store.Read(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		seen, err = r.Version(ctx)
		s.Require().NoError(err)

		_, _, err = s.store.AppendSale(context.Background(), s.sale(client, "20.00", ""))
		s.Require().NoError(err)

		again, err := r.Version(ctx)
		s.Require().NoError(err)
		s.Equal(seen, again)
		t, err := r.Totals(ctx, client)
		s.Require().NoError(err)
		s.Equal(int64(1), t.SaleCount)
		return nil
	})
	s.Require().NoError(err)

	latest, err := s.store.Version(ctx)
	s.Require().NoError(err)
	s.Equal(seen.N+1, latest.N)
}

// A writer that has drawn an id but not committed holds back every later
// writer, so a cursor never moves past an id that is still in flight.
func (s *PostgresLedgerSuite) TestCursorNeverSkipsAnInFlightSale() {
	ctx := context.Background()
	client := s.newClient()

	slow, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	defer func() { _ = slow.Rollback() }()
	s.Require().NoError(postgres.BumpVersion(ctx, slow))
	var slowID int64
	err = slow.QueryRowContext(ctx, `
		INSERT INTO sales (client_id, sale_value, tier, nexus_fee, client_keeps, submitted_at)
		VALUES ($1, 10.00, 1, 0.80, 9.20, $2)
		RETURNING id
	`, uuid.UUID(client), s.now).Scan(&slowID)
	s.Require().NoError(err)

	var (
		done atomic.Bool
		fast *models.Sale
	)
	finished := make(chan error, 1)
	go func() {
		sale, _, err := s.store.AppendSale(ctx, s.sale(client, "20.00", ""))
		fast = sale
		done.Store(true)
		finished <- err
	}()

	s.Never(done.Load, 500*time.Millisecond, 20*time.Millisecond)
	visible, err := s.store.ListSales(ctx, models.Filter{}, 0, 10)
	s.Require().NoError(err)
	s.Empty(visible)

	s.Require().NoError(slow.Commit())
	s.Require().NoError(<-finished)
	s.Greater(int64(fast.ID), slowID)

	var cursor int64
	var delivered []int64
	for {
		page, err := s.store.ListSales(ctx, models.Filter{}, cursor, 1)
		s.Require().NoError(err)
		if len(page) == 0 {
			break
		}
		cursor = int64(page[0].ID)
		delivered = append(delivered, cursor)
	}
	s.Equal([]int64{slowID, int64(fast.ID)}, delivered)
}
