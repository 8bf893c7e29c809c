// Package dispute tracks grading disputes clients raise against recorded
// sales and scans. Disputes are recorded and moved through review by
// operators; nothing here adjudicates them.
package dispute

import (
	"context"
	"errors"
	"iter"
	"log/slog"

	"nexushq/internal/audit"
	"nexushq/internal/dispute/models"
	ledgerModels "nexushq/internal/ledger/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/sentinel"
	"nexushq/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, d *models.Dispute) error
	FindByID(ctx context.Context, disputeID id.DisputeID) (*models.Dispute, error)
	Execute(ctx context.Context, disputeID id.DisputeID, validate func(*models.Dispute) error, mutate func(*models.Dispute)) (*models.Dispute, error)
	List(ctx context.Context, filter models.Filter, after models.Cursor, limit int) ([]*models.Dispute, error)
	CountByStatus(ctx context.Context) (map[models.Status]int64, error)
}

// LedgerLookup resolves the ledger entries a dispute may reference.
type LedgerLookup interface {
	FindSale(ctx context.Context, saleID id.SaleID) (*ledgerModels.Sale, error)
	FindScan(ctx context.Context, scanID id.ScanID) (*ledgerModels.Scan, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

type Service struct {
	store          Store
	ledger         LedgerLookup
	logger         *slog.Logger
	auditPublisher AuditPublisher
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

func New(store Store, ledger LedgerLookup, opts ...Option) *Service {
	s := &Service{store: store, ledger: ledger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// File opens a dispute. The referenced entry must exist and belong to the
// filing client; otherwise the result is CodeNotFound.
func (s *Service) File(ctx context.Context, req models.FileRequest) (*models.Dispute, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkRef(ctx, req.ClientID, req.Ref); err != nil {
		return nil, err
	}

	d := models.NewDispute(id.NewDisputeID(), req, requestcontext.Now(ctx))
	if err := s.store.Create(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownClient, "unknown client")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to file dispute")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "dispute filed",
			"dispute_id", d.ID.String(),
			"client_id", d.ClientID.String(),
			"ref", d.Ref.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.logAudit(ctx, audit.ActionDisputeFiled, d,
		"ref", d.Ref.String(),
		"system_grade", d.SystemGrade,
		"reported_grade", d.ReportedGrade,
	)
	return d, nil
}

func (s *Service) checkRef(ctx context.Context, clientID id.ClientID, ref models.Ref) error {
	var (
		owner id.ClientID
		err   error
	)
	switch ref.Type {
	case models.RefSale:
		var sale *ledgerModels.Sale
		if sale, err = s.ledger.FindSale(ctx, id.SaleID(ref.ID)); err == nil {
			owner = sale.ClientID
		}
	case models.RefScan:
		var scan *ledgerModels.Scan
		if scan, err = s.ledger.FindScan(ctx, id.ScanID(ref.ID)); err == nil {
			owner = scan.ClientID
		}
	}
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeNotFound, ref.Type.Noun()+" not found")
		}
		return err
	}
	if owner != clientID {
		return dErrors.New(dErrors.CodeNotFound, ref.Type.Noun()+" not found")
	}
	return nil
}

// Transition moves a dispute along open → under_review → resolved|rejected.
func (s *Service) Transition(ctx context.Context, disputeID id.DisputeID, target models.Status, resolution string) (*models.Dispute, error) {
	var from models.Status
	d, err := s.store.Execute(ctx, disputeID,
		func(d *models.Dispute) error {
			from = d.Status
			return d.CanTransition(target, resolution)
		},
		func(d *models.Dispute) { d.ApplyTransition(target, resolution, requestcontext.Now(ctx)) },
	)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "dispute not found")
		case dErrors.HasCode(err, dErrors.CodeIllegalTransition), dErrors.HasCode(err, dErrors.CodeValidation):
			return nil, err
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to transition dispute")
		}
	}
	s.logAudit(ctx, audit.ActionDisputeTransitioned, d,
		"from", string(from),
		"to", string(target),
	)
	return d, nil
}

func (s *Service) Get(ctx context.Context, disputeID id.DisputeID) (*models.Dispute, error) {
	d, err := s.store.FindByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "dispute not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dispute")
	}
	return d, nil
}

// ListByClient lazily yields a client's disputes, oldest first.
func (s *Service) ListByClient(ctx context.Context, clientID id.ClientID) iter.Seq2[*models.Dispute, error] {
	return s.List(ctx, models.Filter{ClientID: &clientID})
}

// ListByStatus lazily yields disputes in one status, oldest first.
func (s *Service) ListByStatus(ctx context.Context, status models.Status) iter.Seq2[*models.Dispute, error] {
	return s.List(ctx, models.Filter{Status: &status})
}

// List lazily yields disputes matching filter, fetching models.PageSize at a time.
func (s *Service) List(ctx context.Context, filter models.Filter) iter.Seq2[*models.Dispute, error] {
	return func(yield func(*models.Dispute, error) bool) {
		var after models.Cursor
		for {
			page, err := s.store.List(ctx, filter, after, models.PageSize)
			if err != nil {
				yield(nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list disputes"))
				return
			}
			for _, d := range page {
				if !yield(d, nil) {
					return
				}
				after = models.CursorOf(d)
			}
			if len(page) < models.PageSize {
				return
			}
		}
	}
}

// CountByStatus returns the number of disputes in each status. Statuses with
// no disputes are present with a zero count.
func (s *Service) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count disputes")
	}
	for _, st := range []models.Status{models.StatusOpen, models.StatusUnderReview, models.StatusResolved, models.StatusRejected} {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// CountOpen returns the number of disputes not yet resolved or rejected.
func (s *Service) CountOpen(ctx context.Context) (int64, error) {
	counts, err := s.CountByStatus(ctx)
	if err != nil {
		return 0, err
	}
	return counts[models.StatusOpen] + counts[models.StatusUnderReview], nil
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, d *models.Dispute, attributes ...string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     action,
		ClientID:   d.ClientID.String(),
		Subject:    d.ID.String(),
		Attributes: audit.Attrs(attributes...),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(action),
			"error", err,
		)
	}
}
