package dispute

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"nexushq/internal/audit"
	"nexushq/internal/commission"
	"nexushq/internal/dispute/models"
	"nexushq/internal/dispute/store"
	"nexushq/internal/ledger"
	ledgerModels "nexushq/internal/ledger/models"
	ledgerStore "nexushq/internal/ledger/store"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/requestcontext"
)

type tiers map[id.ClientID]commission.Tier

func (t tiers) ClientTier(_ context.Context, clientID id.ClientID) (commission.Tier, error) {
	tier, ok := t[clientID]
	if !ok {
		return 0, dErrors.New(dErrors.CodeUnknownClient, "unknown client")
	}
	return tier, nil
}

type ServiceSuite struct {
	suite.Suite
	ledger  *ledger.Service
	audit   *audit.MemoryStore
	service *Service
	shop    id.ClientID
	rival   id.ClientID
	sale    *ledgerModels.Sale
	scan    *ledgerModels.Scan
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.shop, s.rival = id.NewClientID(), id.NewClientID()
	s.ledger = ledger.New(ledgerStore.NewInMemory(nil), tiers{
		s.shop:  commission.TierStarter,
		s.rival: commission.TierStarter,
	})
	s.audit = audit.NewMemoryStore()
	s.service = New(store.NewInMemory(), s.ledger, WithAuditPublisher(audit.NewPublisher(s.audit)))
	s.now = time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.sale, _, err = s.ledger.RecordSale(s.ctx, s.shop, ledgerModels.SalePayload{
		DeckName:  "Elves",
		SaleValue: decimal.RequireFromString("80.00"),
	}, "")
	s.Require().NoError(err)
	s.scan, err = s.ledger.RecordScan(s.ctx, s.shop, ledgerModels.ScanPayload{CardName: "Llanowar Elves"})
	s.Require().NoError(err)
}

func (s *ServiceSuite) file(clientID id.ClientID, ref models.Ref) (*models.Dispute, error) {
	return s.service.File(s.ctx, models.FileRequest{
		ClientID:      clientID,
		Ref:           ref,
		CardName:      "Llanowar Elves",
		SystemGrade:   "MP",
		ReportedGrade: "NM",
	})
}

func (s *ServiceSuite) TestFile() {
	s.Run("against own sale and scan", func() {
		d, err := s.file(s.shop, models.Ref{Type: models.RefSale, ID: int64(s.sale.ID)})
		s.Require().NoError(err)
		s.Equal(models.StatusOpen, d.Status)
		s.Equal(s.now, d.CreatedAt)

		_, err = s.file(s.shop, models.Ref{Type: models.RefScan, ID: int64(s.scan.ID)})
		s.Require().NoError(err)

		events := s.audit.ListByClient(s.ctx, s.shop.String())
		s.Equal(audit.ActionDisputeFiled, events[len(events)-1].Action)
	})

	s.Run("missing reference", func() {
		_, err := s.file(s.shop, models.Ref{Type: models.RefSale, ID: 999})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another client's reference looks missing", func() {
		_, err := s.file(s.rival, models.Ref{Type: models.RefScan, ID: int64(s.scan.ID)})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid request", func() {
		_, err := s.file(s.shop, models.Ref{Type: "deck", ID: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestTransition() {
	d, err := s.file(s.shop, models.Ref{Type: models.RefSale, ID: int64(s.sale.ID)})
	s.Require().NoError(err)

	_, err = s.service.Transition(s.ctx, d.ID, models.StatusResolved, "")
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	reviewed, err := s.service.Transition(s.ctx, d.ID, models.StatusUnderReview, "")
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, reviewed.Status)
	s.Require().NotNil(reviewed.UnderReviewAt)

	resolved, err := s.service.Transition(s.ctx, d.ID, models.StatusResolved, "regraded to NM")
	s.Require().NoError(err)
	s.Equal("regraded to NM", resolved.Resolution)
	s.Require().NotNil(resolved.ResolvedAt)

	_, err = s.service.Transition(s.ctx, d.ID, models.StatusRejected, "")
	s.True(dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	_, err = s.service.Transition(s.ctx, id.NewDisputeID(), models.StatusUnderReview, "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	stored, err := s.service.Get(s.ctx, d.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusResolved, stored.Status)
}

func (s *ServiceSuite) TestListingAndCounts() {
	var filed []id.DisputeID
	for i := range models.PageSize + 5 {
		ctx := requestcontext.WithTime(context.Background(), s.now.Add(time.Duration(i)*time.Second))
		d, err := s.service.File(ctx, models.FileRequest{
			ClientID:      s.shop,
			Ref:           models.Ref{Type: models.RefSale, ID: int64(s.sale.ID)},
			CardName:      "Elvish Mystic",
			ReportedGrade: "NM",
		})
		s.Require().NoError(err)
		filed = append(filed, d.ID)
	}
	_, err := s.service.Transition(s.ctx, filed[0], models.StatusUnderReview, "")
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, filed[1], models.StatusUnderReview, "")
	s.Require().NoError(err)
	_, err = s.service.Transition(s.ctx, filed[1], models.StatusRejected, "")
	s.Require().NoError(err)

	s.Run("by client walks past one page in filing order", func() {
		var got []id.DisputeID
		for d, err := range s.service.ListByClient(s.ctx, s.shop) {
			s.Require().NoError(err)
			got = append(got, d.ID)
		}
		s.Equal(filed, got)

		count := 0
		for range s.service.ListByClient(s.ctx, s.rival) {
			count++
		}
		s.Zero(count)
	})

	s.Run("by status", func() {
		var review []id.DisputeID
		for d, err := range s.service.ListByStatus(s.ctx, models.StatusUnderReview) {
			s.Require().NoError(err)
			review = append(review, d.ID)
		}
		s.Equal([]id.DisputeID{filed[0]}, review)
	})

	s.Run("counts", func() {
		counts, err := s.service.CountByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(len(filed)-2), counts[models.StatusOpen])
		s.Equal(int64(1), counts[models.StatusUnderReview])
		s.Equal(int64(1), counts[models.StatusRejected])
		s.Equal(int64(0), counts[models.StatusResolved])

		open, err := s.service.CountOpen(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(len(filed)-1), open)
	})
}
