// Package commands implements hqctl, the operator CLI. Commands that touch
// data read the same configuration as the server and need DATABASE_URL.
package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"nexushq/internal/app"
	"nexushq/internal/platform/config"
	"nexushq/internal/platform/logger"
)

var (
	configFile string
	verbose    bool
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hqctl",
		Short:        "Operator tooling for the nexus HQ service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				return os.Setenv("HQ_CONFIG_FILE", configFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides HQ_CONFIG_FILE)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")

	root.AddCommand(migrateCmd(), registerCmd(), seedCmd(), tiersCmd())
	return root
}

// openApp assembles the app against Postgres. In-memory mode is refused since
// anything written would vanish when the command exits.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return app.New(cmd.Context(), cfg, cliLogger(cmd, cfg.LogLevel), prometheus.NewRegistry())
}

func cliLogger(cmd *cobra.Command, level string) *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), level)
}
