package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"nexushq/internal/app"
	"nexushq/internal/platform/config"
	"nexushq/internal/platform/httpserver"
	"nexushq/internal/platform/logger"
)

// main loads configuration, assembles the app and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := app.New(ctx, cfg, log, reg)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to close resources", "error", err)
		}
	}()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info("starting nexushq", "addr", cfg.Addr, "environment", cfg.Environment)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Serve(gctx, httpserver.New(cfg.Addr, a.Handler), ln, cfg.ShutdownTimeout, log)
	})
	g.Go(func() error {
		return a.RunWorkers(gctx)
	})
	return g.Wait()
}
