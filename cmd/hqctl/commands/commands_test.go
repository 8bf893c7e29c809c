package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexushq/internal/app"
	"nexushq/internal/platform/config"
)

func TestTiersCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"tiers"})
	require.NoError(t, root.Execute())

	text := out.String()
	assert.Contains(t, text, "starter")
	assert.Contains(t, text, "8%")
	assert.Contains(t, text, "199.00")
	assert.Contains(t, text, "Founder's Edition")
}

func TestMigratePrint(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "--print"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "CREATE TABLE IF NOT EXISTS sales")
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, config.Defaults(), slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	require.NoError(t, seed(ctx, a, &out))
	assert.Contains(t, out.String(), "[OK] CardVault NYC")

	stats, err := a.Aggregator.NetworkStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.ActiveClients)
	assert.Equal(t, int64(5), stats.Sales.Total)
	assert.Equal(t, "390.50", stats.Volume.Total.StringFixed(2))
	assert.Equal(t, "307.00", stats.MRR.StringFixed(2))

	out.Reset()
	require.NoError(t, seed(ctx, a, &out))
	assert.Contains(t, out.String(), "already registered")

	stats, err = a.Aggregator.NetworkStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Sales.Total)
}
