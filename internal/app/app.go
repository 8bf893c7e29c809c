// Package app assembles the services, stores and background workers for one
// process from a config.Server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"nexushq/internal/aggregator"
	"nexushq/internal/audit"
	"nexushq/internal/dispute"
	disputeStore "nexushq/internal/dispute/store"
	"nexushq/internal/gateway"
	httpapi "nexushq/internal/http"
	"nexushq/internal/ledger"
	"nexushq/internal/ledger/adapters"
	ledgerStore "nexushq/internal/ledger/store"
	"nexushq/internal/platform/config"
	"nexushq/internal/platform/kafka"
	"nexushq/internal/platform/metrics"
	"nexushq/internal/platform/postgres"
	"nexushq/internal/platform/redis"
	rateLimitMiddleware "nexushq/internal/ratelimit/middleware"
	rateLimitStore "nexushq/internal/ratelimit/store"
	registryMetrics "nexushq/internal/registry/metrics"
	registryModels "nexushq/internal/registry/models"
	registryService "nexushq/internal/registry/service"
	registryStore "nexushq/internal/registry/store"
	"nexushq/pkg/platform/circuit"
	"nexushq/pkg/platform/dataversion"
)

// App holds the wired services. Close releases every connection it opened.
type App struct {
	Registry   *registryService.Service
	Ledger     *ledger.Service
	Disputes   *dispute.Service
	Aggregator *aggregator.Service
	Gateway    *gateway.Service
	Handler    http.Handler

	logger  *slog.Logger
	checks  map[string]httpapi.HealthCheck
	workers []func(ctx context.Context) error
	closers []func() error
}

// New builds an App. With no database URL every store is in memory; Redis and
// Kafka are optional and skipped when unconfigured.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, reg *prometheus.Registry) (_ *App, err error) {
	a := &App{logger: logger, checks: map[string]httpapi.HealthCheck{}}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	policy, err := registryModels.ParseDuplicatePolicy(cfg.Registry.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}

	auditStore, err := a.auditStore(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	publisher := a.auditPublisher(auditStore, cfg.Kafka)

	platformMetrics := metrics.New(reg)

	// Shared by the in-memory stores; Postgres keeps its version in data_version.
	versions := dataversion.NewCounter()

	var clients registryService.Store = registryStore.NewInMemory(registryStore.WithVersionCounter(versions))
	if db != nil {
		clients = registryStore.NewPostgres(db)
	}
	a.Registry = registryService.New(clients,
		registryService.WithLogger(logger),
		registryService.WithAuditPublisher(publisher),
		registryService.WithMetrics(registryMetrics.New(reg)),
		registryService.WithDuplicatePolicy(policy),
	)

	lookup := adapters.NewRegistryAdapter(a.Registry)
	a.Ledger = ledger.New(ledgerEntries(db, lookup, versions), lookup,
		ledger.WithLogger(logger),
		ledger.WithAuditPublisher(publisher),
		ledger.WithMaxBatch(cfg.Ledger.MaxBatchScans),
	)

	var disputes dispute.Store = disputeStore.NewInMemory(disputeStore.WithVersionCounter(versions))
	if db != nil {
		disputes = disputeStore.NewPostgres(db)
	}
	a.Disputes = dispute.New(disputes, a.Ledger,
		dispute.WithLogger(logger),
		dispute.WithAuditPublisher(publisher),
	)

	aggOpts := []aggregator.Option{
		aggregator.WithLogger(logger),
		aggregator.WithMetrics(platformMetrics),
	}
	cache, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		a.closers = append(a.closers, cache.Close)
		aggOpts = append(aggOpts, aggregator.WithCache(aggregator.NewRedisCache(cache.Client), cfg.Aggregator.CacheTTL))
	}
	a.Aggregator = aggregator.New(a.Ledger, a.Registry, a.Disputes, aggOpts...)

	a.Gateway = gateway.New(a.Registry, a.Ledger, a.Disputes,
		gateway.WithLogger(logger),
		gateway.WithAuditPublisher(publisher),
		gateway.WithMetrics(platformMetrics),
	)

	if db != nil {
		a.checks["postgres"] = db.PingContext
	}
	if cache != nil {
		a.checks["redis"] = cache.Health
	}
	var limiter rateLimitMiddleware.Limiter = rateLimitStore.NewInMemory()
	if cache != nil {
		limiter = rateLimitStore.NewFallback(rateLimitStore.NewRedis(cache.Client), circuit.New("ratelimit-redis"), logger)
	}
	rateLimit := rateLimitMiddleware.New(limiter, logger, cfg.RateLimit.Requests, cfg.RateLimit.Window,
		rateLimitMiddleware.WithMetrics(platformMetrics),
		rateLimitMiddleware.WithDisabled(!cfg.RateLimit.Enabled),
	)

	a.Handler = httpapi.NewRouter(httpapi.Deps{
		Logger:     logger,
		AdminToken: cfg.AdminToken,
		Gatherer:   reg,
		Checks:     a.checks,
		RateLimit:  rateLimit.Handler,
		Registry:   a.Registry,
		Gateway:    a.Gateway,
		Aggregator: a.Aggregator,
		Disputes:   a.Disputes,
	})
	return a, nil
}

func ledgerEntries(db *sql.DB, lookup *adapters.RegistryAdapter, versions *dataversion.Counter) ledger.Store {
	if db != nil {
		return ledgerStore.NewPostgres(db)
	}
	return ledgerStore.NewInMemory(lookup.Exists, ledgerStore.WithVersionCounter(versions))
}

// auditStore returns the Kafka sink when brokers are configured, otherwise nil
// (events are only logged).
func (a *App) auditStore(ctx context.Context, cfg config.KafkaConfig) (audit.Store, error) {
	producer, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	if producer == nil {
		return nil, nil
	}
	a.closers = append(a.closers, func() error {
		producer.Close()
		return nil
	})
	if err := kafka.EnsureTopic(ctx, producer, cfg); err != nil {
		return nil, err
	}
	a.checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, producer) }
	return audit.NewKafkaStore(producer, cfg.AuditTopic), nil
}

func (a *App) auditPublisher(store audit.Store, cfg config.KafkaConfig) *audit.Publisher {
	opts := []audit.Option{audit.WithLogger(a.logger)}
	if store != nil {
		queue := make(chan audit.Event, max(cfg.QueueSize, 1))
		opts = append(opts, audit.WithQueue(queue))
		a.workers = append(a.workers, audit.NewWorker(store, queue, a.logger).Run)
		return audit.NewPublisher(store, opts...)
	}
	return audit.NewPublisher(nil, opts...)
}

// RunWorkers runs background workers until ctx is cancelled.
func (a *App) RunWorkers(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, run := range a.workers {
		g.Go(func() error {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
