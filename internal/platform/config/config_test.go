package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 500, cfg.Ledger.MaxBatchScans)
	assert.Equal(t, "name", cfg.Registry.DuplicatePolicy)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HQ_ADDR", ":9090")
	t.Setenv("HQ_MAX_BATCH_SCANS", "50")
	t.Setenv("HQ_CACHE_TTL", "1m")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("HQ_DUPLICATE_POLICY", "email")
	t.Setenv("HQ_RATE_LIMIT_ENABLED", "false")
	t.Setenv("HQ_RATE_LIMIT_REQUESTS", "10")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 50, cfg.Ledger.MaxBatchScans)
	assert.Equal(t, time.Minute, cfg.Aggregator.CacheTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "email", cfg.Registry.DuplicatePolicy)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hq.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":7070"
admin_token: from-file
ledger:
  max_batch_scans: 100
aggregator:
  cache_ttl: 10s
`), 0o600))
	t.Setenv("HQ_CONFIG_FILE", path)
	t.Setenv("HQ_ADDR", ":6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":6060", cfg.Addr, "env wins over file")
	assert.Equal(t, "from-file", cfg.AdminToken)
	assert.Equal(t, 100, cfg.Ledger.MaxBatchScans)
	assert.Equal(t, 10*time.Second, cfg.Aggregator.CacheTTL)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns, "unset keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("HQ_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("production requires a real admin token", func(t *testing.T) {
		cfg := Defaults()
		cfg.Environment = "production"
		assert.ErrorContains(t, cfg.Validate(), "HQ_ADMIN_TOKEN")
	})

	t.Run("batch limit must be positive", func(t *testing.T) {
		cfg := Defaults()
		cfg.Ledger.MaxBatchScans = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("enabled rate limit needs a window", func(t *testing.T) {
		cfg := Defaults()
		cfg.RateLimit.Window = 0
		assert.Error(t, cfg.Validate())

		cfg.RateLimit.Enabled = false
		assert.NoError(t, cfg.Validate())
	})
}
