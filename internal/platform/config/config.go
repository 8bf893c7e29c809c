package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const devAdminToken = "dev-admin-token-change-in-production"

// Server captures process level configuration.
type Server struct {
	Addr            string           `yaml:"addr"`
	Environment     string           `yaml:"environment"`
	AdminToken      string           `yaml:"admin_token"`
	LogLevel        string           `yaml:"log_level"`
	ShutdownTimeout time.Duration    `yaml:"shutdown_timeout"`
	Database        DatabaseConfig   `yaml:"database"`
	Redis           RedisConfig      `yaml:"redis"`
	Kafka           KafkaConfig      `yaml:"kafka"`
	Registry        RegistryConfig   `yaml:"registry"`
	Ledger          LedgerConfig     `yaml:"ledger"`
	Aggregator      AggregatorConfig `yaml:"aggregator"`
	RateLimit       RateLimitConfig  `yaml:"rate_limit"`
}

// DatabaseConfig selects Postgres. An empty URL runs the in-memory stores.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig configures the aggregator view cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig configures the audit event stream. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"`
	AuditTopic        string   `yaml:"audit_topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
	QueueSize         int      `yaml:"queue_size"`
}

type RegistryConfig struct {
	DuplicatePolicy string `yaml:"duplicate_policy"`
}

type LedgerConfig struct {
	MaxBatchScans int `yaml:"max_batch_scans"`
}

type AggregatorConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// RateLimitConfig caps phone-home requests per API key over a sliding window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Defaults returns the development configuration.
func Defaults() Server {
	return Server{
		Addr:            ":8080",
		Environment:     "development",
		AdminToken:      devAdminToken,
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,
		Database: DatabaseConfig{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			AuditTopic:        "nexushq.audit",
			Partitions:        3,
			ReplicationFactor: 1,
			QueueSize:         1024,
		},
		Registry:   RegistryConfig{DuplicatePolicy: "name"},
		Ledger:     LedgerConfig{MaxBatchScans: 500},
		Aggregator: AggregatorConfig{CacheTTL: 30 * time.Second},
		RateLimit:  RateLimitConfig{Enabled: true, Requests: 600, Window: time.Minute},
	}
}

// FromEnv builds a Server config from defaults and environment variables so main stays lean.
func FromEnv() Server {
	cfg := Defaults()
	applyEnv(&cfg, os.LookupEnv)
	return cfg
}

// Load reads defaults, then the YAML file named by HQ_CONFIG_FILE (if set),
// then environment overrides, and validates the result.
func Load() (Server, error) {
	cfg := Defaults()
	if path := os.Getenv("HQ_CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return Server{}, err
		}
	}
	applyEnv(&cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func overlayFile(cfg *Server, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Server, lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("HQ_ADDR", &cfg.Addr)
	str("HQ_ENV", &cfg.Environment)
	str("HQ_ADMIN_TOKEN", &cfg.AdminToken)
	str("HQ_LOG_LEVEL", &cfg.LogLevel)
	dur("HQ_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	str("DATABASE_URL", &cfg.Database.URL)
	num("DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)
	num("DATABASE_MAX_IDLE_CONNS", &cfg.Database.MaxIdleConns)

	str("REDIS_URL", &cfg.Redis.URL)
	num("REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	num("REDIS_MIN_IDLE_CONNS", &cfg.Redis.MinIdleConns)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	str("HQ_AUDIT_TOPIC", &cfg.Kafka.AuditTopic)
	num("HQ_AUDIT_QUEUE_SIZE", &cfg.Kafka.QueueSize)

	str("HQ_DUPLICATE_POLICY", &cfg.Registry.DuplicatePolicy)
	num("HQ_MAX_BATCH_SCANS", &cfg.Ledger.MaxBatchScans)
	dur("HQ_CACHE_TTL", &cfg.Aggregator.CacheTTL)

	if v, ok := lookup("HQ_RATE_LIMIT_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RateLimit.Enabled = b
		}
	}
	num("HQ_RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	dur("HQ_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsProduction reports whether the service runs with production hardening.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// Validate rejects configurations the service cannot start with.
func (s Server) Validate() error {
	var errs []error
	if s.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if s.AdminToken == "" {
		errs = append(errs, errors.New("admin token is required"))
	}
	if s.IsProduction() && s.AdminToken == devAdminToken {
		errs = append(errs, errors.New("HQ_ADMIN_TOKEN must be set in production"))
	}
	if s.Ledger.MaxBatchScans <= 0 {
		errs = append(errs, errors.New("max batch scans must be positive"))
	}
	if s.Aggregator.CacheTTL < 0 {
		errs = append(errs, errors.New("cache ttl cannot be negative"))
	}
	if s.RateLimit.Enabled && (s.RateLimit.Requests <= 0 || s.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("rate limit requests and window must be positive when enabled"))
	}
	if len(s.Kafka.Brokers) > 0 && s.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("audit topic is required when kafka brokers are set"))
	}
	return errors.Join(errs...)
}
