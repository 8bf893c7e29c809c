package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nexushq/pkg/platform/dataversion"
)

const cacheKeyPrefix = "hq:agg:"

// Cache stores computed views. Keys embed the data version the view was
// computed at, so an entry is never served once a ledger, registry or dispute
// write has committed after it.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
}

func cacheKey(view string, v dataversion.Version) string {
	return fmt.Sprintf("%s%s:%d:%s", cacheKeyPrefix, v.Epoch, v.N, view)
}

// RedisCache is a Cache backed by Redis string keys holding JSON.
type RedisCache struct {
	client redis.UniversalClient
}

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached view: %w", err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	return c.client.Set(ctx, key, raw, ttl).Err()
}
