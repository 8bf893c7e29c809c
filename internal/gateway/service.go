// Package gateway is the client-facing ingestion path. Every phone-home call
// is authenticated against the registry before anything reaches the ledger.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"nexushq/internal/audit"
	disputeModels "nexushq/internal/dispute/models"
	ledgerModels "nexushq/internal/ledger/models"
	"nexushq/internal/platform/metrics"
	"nexushq/internal/platform/tracing"
	registryModels "nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/requestcontext"
)

// Ingestion kinds, used as metric labels and span names.
const (
	KindSale    = "sale"
	KindScan    = "scan"
	KindBatch   = "batch_scans"
	KindDispute = "dispute"
)

// Registry authenticates API keys.
type Registry interface {
	Resolve(ctx context.Context, key string) (*registryModels.Client, error)
}

// Ledger commits sales and scans.
type Ledger interface {
	RecordSale(ctx context.Context, clientID id.ClientID, payload ledgerModels.SalePayload, token string) (*ledgerModels.Sale, bool, error)
	RecordScan(ctx context.Context, clientID id.ClientID, payload ledgerModels.ScanPayload) (*ledgerModels.Scan, error)
	RecordBatchScans(ctx context.Context, clientID id.ClientID, payloads []ledgerModels.ScanPayload) ([]*ledgerModels.Scan, error)
}

// Disputes files grading disputes.
type Disputes interface {
	File(ctx context.Context, req disputeModels.FileRequest) (*disputeModels.Dispute, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// SaleReceipt is what a client gets back for a sale, first commit or replay.
type SaleReceipt struct {
	SaleID         id.SaleID
	SaleValue      decimal.Decimal
	NexusFee       decimal.Decimal
	ClientKeeps    decimal.Decimal
	CommissionRate decimal.Decimal
	Replayed       bool
}

func receiptFor(sale *ledgerModels.Sale, replayed bool) *SaleReceipt {
	return &SaleReceipt{
		SaleID:         sale.ID,
		SaleValue:      sale.SaleValue,
		NexusFee:       sale.NexusFee,
		ClientKeeps:    sale.ClientKeeps,
		CommissionRate: sale.Tier.RatePercent(),
		Replayed:       replayed,
	}
}

type Service struct {
	registry       Registry
	ledger         Ledger
	disputes       Disputes
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func New(registry Registry, ledger Ledger, disputes Disputes, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		ledger:   ledger,
		disputes: disputes,
		tracer:   tracing.Tracer("nexushq/gateway"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestSale authenticates apiKey and commits the sale. A replayed token
// returns the original receipt with Replayed set.
func (s *Service) IngestSale(ctx context.Context, apiKey string, payload ledgerModels.SalePayload, token string) (receipt *SaleReceipt, err error) {
	ctx, span := s.tracer.Start(ctx, "gateway.IngestSale")
	defer tracing.EndSpanErr(span, &err)
	start := time.Now()

	client, err := s.authenticate(ctx, span, KindSale, apiKey)
	if err != nil {
		return nil, err
	}

	sale, replayed, err := s.ledger.RecordSale(ctx, client.ID, payload, token)
	if err != nil {
		s.finish(ctx, KindSale, start, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("sale_id", sale.ID.String()),
		attribute.Bool("replayed", replayed),
	)

	if replayed {
		s.metrics.ObserveIngest(KindSale, metrics.OutcomeReplayed, time.Since(start))
		return receiptFor(sale, true), nil
	}
	s.metrics.ObserveIngest(KindSale, metrics.OutcomeCommitted, time.Since(start))
	s.metrics.RecordSale(sale.SaleValue.InexactFloat64(), sale.NexusFee.InexactFloat64())
	return receiptFor(sale, false), nil
}

// IngestScan authenticates apiKey and commits one scan.
func (s *Service) IngestScan(ctx context.Context, apiKey string, payload ledgerModels.ScanPayload) (scan *ledgerModels.Scan, err error) {
	ctx, span := s.tracer.Start(ctx, "gateway.IngestScan")
	defer tracing.EndSpanErr(span, &err)
	start := time.Now()

	client, err := s.authenticate(ctx, span, KindScan, apiKey)
	if err != nil {
		return nil, err
	}

	scan, err = s.ledger.RecordScan(ctx, client.ID, payload)
	if err != nil {
		s.finish(ctx, KindScan, start, err)
		return nil, err
	}
	s.metrics.ObserveIngest(KindScan, metrics.OutcomeCommitted, time.Since(start))
	s.metrics.RecordScans(1)
	return scan, nil
}

// IngestBatchScans authenticates apiKey and commits every scan or none.
func (s *Service) IngestBatchScans(ctx context.Context, apiKey string, payloads []ledgerModels.ScanPayload) (scans []*ledgerModels.Scan, err error) {
	ctx, span := s.tracer.Start(ctx, "gateway.IngestBatchScans",
		trace.WithAttributes(attribute.Int("batch_size", len(payloads))),
	)
	defer tracing.EndSpanErr(span, &err)
	start := time.Now()

	client, err := s.authenticate(ctx, span, KindBatch, apiKey)
	if err != nil {
		return nil, err
	}

	scans, err = s.ledger.RecordBatchScans(ctx, client.ID, payloads)
	if err != nil {
		s.finish(ctx, KindBatch, start, err)
		return nil, err
	}
	s.metrics.ObserveIngest(KindBatch, metrics.OutcomeCommitted, time.Since(start))
	s.metrics.RecordScans(len(scans))
	return scans, nil
}

// FileDispute authenticates apiKey and files a dispute on behalf of that client.
// The client id in req is always replaced by the authenticated one.
func (s *Service) FileDispute(ctx context.Context, apiKey string, req disputeModels.FileRequest) (d *disputeModels.Dispute, err error) {
	ctx, span := s.tracer.Start(ctx, "gateway.FileDispute")
	defer tracing.EndSpanErr(span, &err)
	start := time.Now()

	client, err := s.authenticate(ctx, span, KindDispute, apiKey)
	if err != nil {
		return nil, err
	}

	req.ClientID = client.ID
	d, err = s.disputes.File(ctx, req)
	if err != nil {
		s.finish(ctx, KindDispute, start, err)
		return nil, err
	}
	s.metrics.ObserveIngest(KindDispute, metrics.OutcomeCommitted, time.Since(start))
	return d, nil
}

type authenticatedKey struct{}

type authenticated struct {
	apiKey string
	client *registryModels.Client
}

// Authenticate resolves apiKey and returns ctx carrying the client. Callers
// that must reject a bad key before reading anything else call it first; an
// Ingest call made with the returned ctx and the same key does not resolve
// the key again.
func (s *Service) Authenticate(ctx context.Context, kind, apiKey string) (context.Context, error) {
	client, err := s.authenticate(ctx, trace.SpanFromContext(ctx), kind, apiKey)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, authenticatedKey{}, authenticated{apiKey: apiKey, client: client}), nil
}

func (s *Service) authenticate(ctx context.Context, span trace.Span, kind, apiKey string) (*registryModels.Client, error) {
	if a, ok := ctx.Value(authenticatedKey{}).(authenticated); ok && a.apiKey == apiKey {
		span.SetAttributes(attribute.String("client_id", a.client.ID.String()))
		return a.client, nil
	}
	client, err := s.registry.Resolve(ctx, apiKey)
	if err != nil {
		s.metrics.ObserveIngest(kind, metrics.OutcomeRejected, 0)
		if s.logger != nil {
			s.logger.WarnContext(ctx, "phone-home rejected",
				"kind", kind,
				"reason", string(dErrors.CodeOf(err)),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.logAudit(ctx, audit.ActionIngestRejected, "", kind,
			"reason", string(dErrors.CodeOf(err)),
		)
		return nil, err
	}
	span.SetAttributes(attribute.String("client_id", client.ID.String()))
	return client, nil
}

// finish records a failed ledger call. Domain rejections count as rejected,
// anything else as an error.
func (s *Service) finish(ctx context.Context, kind string, start time.Time, err error) {
	outcome := metrics.OutcomeRejected
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		outcome = metrics.OutcomeError
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "phone-home failed",
				"kind", kind,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	s.metrics.ObserveIngest(kind, outcome, time.Since(start))
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, clientID, subject string, attributes ...string) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:     action,
		ClientID:   clientID,
		Subject:    subject,
		Attributes: audit.Attrs(attributes...),
	}); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"event", string(action),
			"error", err,
		)
	}
}
