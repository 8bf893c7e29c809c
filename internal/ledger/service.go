// Package ledger records sales and scans reported by clients. It is the only
// writer of ledger entries and of the running per-client totals derived from
// them; every other module reads.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"nexushq/internal/audit"
	"nexushq/internal/ledger/models"
	"nexushq/internal/ledger/ports"
	"nexushq/internal/ledger/store"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/platform/sentinel"
	"nexushq/pkg/requestcontext"
)

// DefaultMaxBatch caps the number of scans accepted in one batch.
const DefaultMaxBatch = 500

// Store is the persistence port for the ledger.
type Store interface {
	AppendSale(ctx context.Context, sale *models.Sale) (*models.Sale, bool, error)
	AppendScans(ctx context.Context, scans []*models.Scan) ([]*models.Scan, error)
	FindSale(ctx context.Context, saleID id.SaleID) (*models.Sale, error)
	FindScan(ctx context.Context, scanID id.ScanID) (*models.Scan, error)
	FindSaleByToken(ctx context.Context, clientID id.ClientID, token string) (*models.Sale, error)
	ListSales(ctx context.Context, filter models.Filter, afterID int64, limit int) ([]*models.Sale, error)
	ListScans(ctx context.Context, filter models.Filter, afterID int64, limit int) ([]*models.Scan, error)
	Version(ctx context.Context) (dataversion.Version, error)
	Read(ctx context.Context, fn func(ctx context.Context, r store.Reader) error) error
}

type Service struct {
	store    Store
	clients  ports.ClientLookup
	maxBatch int
	logger   *slog.Logger
	auditor  ports.AuditPort
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPort) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

// WithMaxBatch overrides DefaultMaxBatch. Non-positive values are ignored.
func WithMaxBatch(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatch = n
		}
	}
}

func New(st Store, clients ports.ClientLookup, opts ...Option) *Service {
	s := &Service{
		store:    st,
		clients:  clients,
		maxBatch: DefaultMaxBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordSale prices and commits a sale. When token is non-empty the write is
// idempotent per client: a repeated token returns the sale committed first,
// with replayed=true, and writes nothing.
func (s *Service) RecordSale(ctx context.Context, clientID id.ClientID, payload models.SalePayload, token string) (*models.Sale, bool, error) {
	if len(token) > models.MaxIdempotencyKey {
		return nil, false, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("idempotency key must be %d characters or less", models.MaxIdempotencyKey))
	}
	if err := payload.Validate(); err != nil {
		return nil, false, err
	}

	tier, err := s.clients.ClientTier(ctx, clientID)
	if err != nil {
		return nil, false, err
	}

	if token != "" {
		existing, err := s.store.FindSaleByToken(ctx, clientID, token)
		switch {
		case err == nil:
			s.saleReplayed(ctx, existing)
			return existing, true, nil
		case !errors.Is(err, sentinel.ErrNotFound):
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check idempotency key")
		}
	}

	sale, err := models.NewSale(clientID, payload, tier, token, requestcontext.Now(ctx))
	if err != nil {
		return nil, false, err
	}

	committed, created, err := s.store.AppendSale(ctx, sale)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, dErrors.New(dErrors.CodeUnknownClient, "unknown client")
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sale")
	}
	if !created {
		// Lost a race to a concurrent submission with the same token.
		s.saleReplayed(ctx, committed)
		return committed, true, nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "sale recorded",
			"client_id", clientID.String(),
			"sale_id", committed.ID.String(),
			"sale_value", committed.SaleValue.StringFixed(2),
			"nexus_fee", committed.NexusFee.StringFixed(2),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.logAudit(ctx, audit.ActionSaleRecorded, clientID, committed.ID.String(),
		"sale_value", committed.SaleValue.StringFixed(2),
		"nexus_fee", committed.NexusFee.StringFixed(2),
		"tier", committed.Tier.String(),
	)
	return committed, false, nil
}

// RecordScan commits one scan.
func (s *Service) RecordScan(ctx context.Context, clientID id.ClientID, payload models.ScanPayload) (*models.Scan, error) {
	scans, err := s.RecordBatchScans(ctx, clientID, []models.ScanPayload{payload})
	if err != nil {
		return nil, err
	}
	return scans[0], nil
}

// RecordBatchScans commits all scans or none. Every entry is validated before
// anything is written.
func (s *Service) RecordBatchScans(ctx context.Context, clientID id.ClientID, payloads []models.ScanPayload) ([]*models.Scan, error) {
	if len(payloads) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one scan is required")
	}
	if len(payloads) > s.maxBatch {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("a batch may contain at most %d scans", s.maxBatch))
	}

	if _, err := s.clients.ClientTier(ctx, clientID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	scans := make([]*models.Scan, 0, len(payloads))
	for i := range payloads {
		p := payloads[i]
		if err := p.Validate(); err != nil {
			return nil, prefixValidation(err, len(payloads), i)
		}
		if p.SaleID != nil {
			if err := s.checkSaleLink(ctx, clientID, *p.SaleID); err != nil {
				return nil, prefixValidation(err, len(payloads), i)
			}
		}
		scans = append(scans, models.NewScan(clientID, p, now))
	}

	committed, err := s.store.AppendScans(ctx, scans)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownClient, "unknown client")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record scans")
	}

	s.logAudit(ctx, audit.ActionScansRecorded, clientID, committed[0].ID.String(),
		"count", fmt.Sprint(len(committed)),
		"last_scan_id", committed[len(committed)-1].ID.String(),
	)
	return committed, nil
}

func (s *Service) checkSaleLink(ctx context.Context, clientID id.ClientID, saleID id.SaleID) error {
	sale, err := s.store.FindSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "linked sale does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load linked sale")
	}
	if sale.ClientID != clientID {
		return dErrors.New(dErrors.CodeValidation, "linked sale does not exist")
	}
	return nil
}

// FindSale returns a committed sale by id.
func (s *Service) FindSale(ctx context.Context, saleID id.SaleID) (*models.Sale, error) {
	sale, err := s.store.FindSale(ctx, saleID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "sale not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sale")
	}
	return sale, nil
}

// FindScan returns a committed scan by id.
func (s *Service) FindScan(ctx context.Context, scanID id.ScanID) (*models.Scan, error) {
	scan, err := s.store.FindScan(ctx, scanID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "scan not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load scan")
	}
	return scan, nil
}

// ListSales lazily yields sales matching filter in ascending id order,
// fetching page.Batch() rows at a time. Iteration stops at the first error.
func (s *Service) ListSales(ctx context.Context, filter models.Filter, page models.Page) iter.Seq2[*models.Sale, error] {
	return paginate(page,
		func(afterID int64, n int) ([]*models.Sale, error) {
			return s.store.ListSales(ctx, filter, afterID, n)
		},
		func(sale *models.Sale) int64 { return int64(sale.ID) },
	)
}

// ListScans lazily yields scans matching filter in ascending id order.
func (s *Service) ListScans(ctx context.Context, filter models.Filter, page models.Page) iter.Seq2[*models.Scan, error] {
	return paginate(page,
		func(afterID int64, n int) ([]*models.Scan, error) {
			return s.store.ListScans(ctx, filter, afterID, n)
		},
		func(scan *models.Scan) int64 { return int64(scan.ID) },
	)
}

func paginate[T any](page models.Page, fetch func(afterID int64, n int) ([]T, error), idOf func(T) int64) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		after := page.AfterID
		remaining := page.Limit
		for {
			n := page.Batch()
			if page.Limit > 0 {
				n = min(n, remaining)
			}
			if n == 0 {
				return
			}
			items, err := fetch(after, n)
			if err != nil {
				yield(zero, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ledger entries"))
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
				after = idOf(item)
				remaining--
			}
			if len(items) < n {
				return
			}
		}
	}
}

// Watermark returns the highest committed sale and scan ids.
func (s *Service) Watermark(ctx context.Context) (models.Watermark, error) {
	var w models.Watermark
	err := s.Read(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		w, err = r.Watermark(ctx)
		return err
	})
	return w, err
}

// Version returns the latest committed data version.
func (s *Service) Version(ctx context.Context) (dataversion.Version, error) {
	v, err := s.store.Version(ctx)
	if err != nil {
		return dataversion.Version{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read data version")
	}
	return v, nil
}

// Read runs fn against one consistent snapshot of the ledger.
func (s *Service) Read(ctx context.Context, fn func(ctx context.Context, r store.Reader) error) error {
	if err := s.store.Read(ctx, fn); err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger")
	}
	return nil
}

func (s *Service) saleReplayed(ctx context.Context, sale *models.Sale) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "sale replayed",
			"client_id", sale.ClientID.String(),
			"sale_id", sale.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	s.logAudit(ctx, audit.ActionSaleReplayed, sale.ClientID, sale.ID.String())
}

func prefixValidation(err error, total, index int) error {
	if total == 1 || !dErrors.HasCode(err, dErrors.CodeValidation) {
		return err
	}
	return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("scan %d: %s", index, dErrors.MessageOf(err)))
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, clientID id.ClientID, subject string, attributes ...string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:     action,
		ClientID:   clientID.String(),
		Subject:    subject,
		Attributes: audit.Attrs(attributes...),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(action),
			"error", err,
		)
	}
}
