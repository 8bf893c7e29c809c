// Package aggregator derives dashboards and leaderboards from the ledger.
// Every view is computed from one consistent ledger snapshot and may be cached
// under the data version of that snapshot.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"nexushq/internal/ledger/models"
	"nexushq/internal/ledger/store"
	"nexushq/internal/platform/metrics"
	"nexushq/internal/platform/tracing"
	registryModels "nexushq/internal/registry/models"
	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
	"nexushq/pkg/platform/dataversion"
	"nexushq/pkg/requestcontext"
)

const (
	viewStats       = "stats"
	viewLeaderboard = "leaderboard"
	viewRecent      = "recent_sales"
)

// LedgerReader gives read access to consistent ledger snapshots and to the
// data version that keys cached views.
type LedgerReader interface {
	Version(ctx context.Context) (dataversion.Version, error)
	Read(ctx context.Context, fn func(ctx context.Context, r store.Reader) error) error
}

// ClientDirectory supplies client identity for joining onto ledger totals.
type ClientDirectory interface {
	Get(ctx context.Context, clientID id.ClientID) (*registryModels.Client, error)
	List(ctx context.Context) ([]*registryModels.Client, error)
}

// DisputeCounter reports how many disputes are still unresolved.
type DisputeCounter interface {
	CountOpen(ctx context.Context) (int64, error)
}

type Service struct {
	ledger   LedgerReader
	clients  ClientDirectory
	disputes DisputeCounter
	cache    Cache
	ttl      time.Duration
	group    singleflight.Group
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

// WithCache enables view caching. A non-positive ttl disables it.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.cache = cache
			s.ttl = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(ledger LedgerReader, clients ClientDirectory, disputes DisputeCounter, opts ...Option) *Service {
	s := &Service{
		ledger:   ledger,
		clients:  clients,
		disputes: disputes,
		tracer:   tracing.Tracer("nexushq/aggregator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientTotals returns one client's running totals.
func (s *Service) ClientTotals(ctx context.Context, clientID id.ClientID) (_ *ClientSummary, err error) {
	ctx, span := s.tracer.Start(ctx, "aggregator.ClientTotals",
		trace.WithAttributes(attribute.String("client_id", clientID.String())))
	defer tracing.EndSpanErr(span, &err)

	client, err := s.clients.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	var summary ClientSummary
	err = s.ledger.Read(ctx, func(ctx context.Context, r store.Reader) error {
		t, err := r.Totals(ctx, clientID)
		if err != nil {
			return err
		}
		summary = newSummary(t)
		return nil
	})
	if err != nil {
		return nil, wrapReadErr(err)
	}
	summary.Name = client.Name
	summary.Tier = client.Tier
	summary.Active = client.IsActive()
	return &summary, nil
}

// NetworkStats returns network-wide counts, volumes and fees.
func (s *Service) NetworkStats(ctx context.Context) (_ *NetworkStats, err error) {
	ctx, span := s.tracer.Start(ctx, "aggregator.NetworkStats")
	defer tracing.EndSpanErr(span, &err)

	now := requestcontext.Now(ctx).UTC()
	// The day is part of the key so today/month windows roll over at midnight.
	return cached(ctx, s, viewStats, now.Format(time.DateOnly), func(ctx context.Context, r store.Reader) (*NetworkStats, error) {
		return s.computeStats(ctx, r, now)
	})
}

func (s *Service) computeStats(ctx context.Context, r store.Reader, now time.Time) (*NetworkStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	all, err := r.SalesWindow(ctx, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	today, err := r.SalesWindow(ctx, dayStart, time.Time{})
	if err != nil {
		return nil, err
	}
	month, err := r.SalesWindow(ctx, monthStart, time.Time{})
	if err != nil {
		return nil, err
	}
	totals, err := r.AllTotals(ctx)
	if err != nil {
		return nil, err
	}
	w, err := r.Watermark(ctx)
	if err != nil {
		return nil, err
	}

	stats := &NetworkStats{
		Sales:       Windowed[int64]{Total: all.SaleCount, Today: today.SaleCount, Month: month.SaleCount},
		Volume:      Windowed[decimal.Decimal]{Total: all.SaleValue, Today: today.SaleValue, Month: month.SaleValue},
		Fees:        Windowed[decimal.Decimal]{Total: all.NexusFees, Today: today.NexusFees, Month: month.NexusFees},
		MRR:         decimal.Zero,
		Watermark:   w,
		GeneratedAt: now,
	}
	for _, t := range totals {
		stats.TotalScans += t.ScanCount
	}

	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalClients = len(clients)
	for _, c := range clients {
		if c.IsActive() {
			stats.ActiveClients++
			stats.MRR = stats.MRR.Add(c.Tier.Info().MonthlyFee)
		}
	}

	if s.disputes != nil {
		open, err := s.disputes.CountOpen(ctx)
		if err != nil {
			return nil, err
		}
		stats.OpenDisputes = open
	}
	return stats, nil
}

// Leaderboard ranks active clients by metric, descending. Ties go to the
// client registered first.
func (s *Service) Leaderboard(ctx context.Context, metric Metric, limit int) (_ *Leaderboard, err error) {
	ctx, span := s.tracer.Start(ctx, "aggregator.Leaderboard",
		trace.WithAttributes(attribute.String("metric", string(metric))))
	defer tracing.EndSpanErr(span, &err)

	if metric == "" {
		metric = MetricSaleValue
	}
	limit = clampLimit(limit, DefaultLeaderboardLimit, MaxLeaderboardLimit)
	return cached(ctx, s, viewLeaderboard, string(metric)+":"+strconv.Itoa(limit), func(ctx context.Context, r store.Reader) (*Leaderboard, error) {
		return s.computeLeaderboard(ctx, r, metric, limit)
	})
}

func (s *Service) computeLeaderboard(ctx context.Context, r store.Reader, metric Metric, limit int) (*Leaderboard, error) {
	totals, err := r.AllTotals(ctx)
	if err != nil {
		return nil, err
	}
	w, err := r.Watermark(ctx)
	if err != nil {
		return nil, err
	}
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, err
	}

	byClient := make(map[id.ClientID]models.ClientTotals, len(totals))
	for _, t := range totals {
		byClient[t.ClientID] = t
	}
	summaries := make([]ClientSummary, 0, len(clients))
	for _, c := range clients {
		if !c.IsActive() {
			continue
		}
		t, ok := byClient[c.ID]
		if !ok {
			t = models.ClientTotals{ClientID: c.ID}
		}
		sum := newSummary(t)
		sum.Name, sum.Tier, sum.Active = c.Name, c.Tier, true
		summaries = append(summaries, sum)
	}
	slices.SortFunc(summaries, metric.compare)

	board := &Leaderboard{Metric: metric, Watermark: w, Entries: make([]LeaderboardEntry, 0, min(limit, len(summaries)))}
	for i, sum := range summaries[:min(limit, len(summaries))] {
		board.Entries = append(board.Entries, LeaderboardEntry{Rank: i + 1, ClientSummary: sum})
	}
	return board, nil
}

// RecentSales returns the newest sales first, joined with client names.
func (s *Service) RecentSales(ctx context.Context, limit int) (_ []RecentSale, err error) {
	ctx, span := s.tracer.Start(ctx, "aggregator.RecentSales")
	defer tracing.EndSpanErr(span, &err)

	limit = clampLimit(limit, DefaultRecentLimit, MaxRecentLimit)
	return cached(ctx, s, viewRecent, strconv.Itoa(limit), func(ctx context.Context, r store.Reader) ([]RecentSale, error) {
		sales, err := r.RecentSales(ctx, limit)
		if err != nil {
			return nil, err
		}
		clients, err := s.clients.List(ctx)
		if err != nil {
			return nil, err
		}
		names := make(map[id.ClientID]string, len(clients))
		for _, c := range clients {
			names[c.ID] = c.Name
		}
		out := make([]RecentSale, 0, len(sales))
		for _, sale := range sales {
			out = append(out, RecentSale{
				SaleID:      sale.ID,
				ClientID:    sale.ClientID,
				ClientName:  names[sale.ClientID],
				DeckName:    sale.DeckName,
				Format:      sale.Format,
				SaleValue:   sale.SaleValue,
				NexusFee:    sale.NexusFee,
				SubmittedAt: sale.SubmittedAt,
			})
		}
		return out, nil
	})
}

// Dashboard computes stats, the default leaderboard and recent sales concurrently.
func (s *Service) Dashboard(ctx context.Context) (_ *Dashboard, err error) {
	ctx, span := s.tracer.Start(ctx, "aggregator.Dashboard")
	defer tracing.EndSpanErr(span, &err)

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stats, err := s.NetworkStats(gctx)
		d.Stats = stats
		return err
	})
	g.Go(func() error {
		board, err := s.Leaderboard(gctx, MetricSaleValue, DefaultLeaderboardLimit)
		d.Leaderboard = board
		return err
	})
	g.Go(func() error {
		recent, err := s.RecentSales(gctx, DefaultRecentLimit)
		d.RecentSales = recent
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

// cached serves view from the cache when an entry exists for the current data
// version, and otherwise computes it from one snapshot. Concurrent misses for
// the same key share one computation. A result is only stored when the
// snapshot it was computed from is at the version in its key.
func cached[T any](ctx context.Context, s *Service, view, variant string, compute func(context.Context, store.Reader) (T, error)) (T, error) {
	var zero T
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveView(view, time.Since(start))
		}
	}()

	if s.cache == nil {
		var out T
		err := s.ledger.Read(ctx, func(ctx context.Context, r store.Reader) error {
			var err error
			out, err = compute(ctx, r)
			return err
		})
		if err != nil {
			return zero, wrapReadErr(err)
		}
		return out, nil
	}

	current, err := s.ledger.Version(ctx)
	if err != nil {
		return zero, wrapReadErr(err)
	}
	key := cacheKey(view+":"+variant, current)

	var hit T
	ok, err := s.cache.Get(ctx, key, &hit)
	switch {
	case err != nil:
		s.cacheLookup(view, "error")
		s.logCacheErr(ctx, "aggregator cache read failed", key, err)
	case ok:
		s.cacheLookup(view, "hit")
		trace.SpanFromContext(ctx).AddEvent("cache_hit")
		return hit, nil
	default:
		s.cacheLookup(view, "miss")
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter, so not tied to the first caller's cancellation.
		fillCtx := context.WithoutCancel(ctx)
		var (
			out T
			at  dataversion.Version
		)
		err := s.ledger.Read(fillCtx, func(ctx context.Context, r store.Reader) error {
			var err error
			if at, err = r.Version(ctx); err != nil {
				return err
			}
			out, err = compute(ctx, r)
			return err
		})
		if err != nil {
			return nil, err
		}
		if at == current {
			if err := s.cache.Set(fillCtx, key, out, s.ttl); err != nil {
				s.logCacheErr(fillCtx, "aggregator cache write failed", key, err)
			}
		}
		return out, nil
	})
	if err != nil {
		return zero, wrapReadErr(err)
	}
	return v.(T), nil
}

func (s *Service) cacheLookup(view, result string) {
	if s.metrics != nil {
		s.metrics.CacheLookup(view, result)
	}
}

func (s *Service) logCacheErr(ctx context.Context, msg, key string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, "key", key, "error", err)
	}
}

func wrapReadErr(err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read ledger")
}
