//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const redisImage = "redis:7-alpine"

// RedisContainer is the shared Redis backing the aggregator cache and rate
// limit suites.
type RedisContainer struct {
	container *tcredis.RedisContainer
	url       string
	admin     *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("parse redis url %q: %v", url, err)
	}
	admin := redis.NewClient(opts)
	if err := admin.Ping(ctx).Err(); err != nil {
		_ = admin.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("ping redis: %v", err)
	}
	return &RedisContainer{container: container, url: url, admin: admin}
}

// URL returns the redis:// address, as REDIS_URL would carry it.
func (r *RedisContainer) URL() string {
	return r.url
}

// NewClient opens a client closed when t finishes.
func (r *RedisContainer) NewClient(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL(r.url)
	if err != nil {
		t.Fatalf("parse redis url %q: %v", r.url, err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// FlushAll empties the database between tests.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.admin.FlushAll(ctx).Err()
}
