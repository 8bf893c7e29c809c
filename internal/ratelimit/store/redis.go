package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"nexushq/internal/ratelimit/models"
)

const redisKeyPrefix = "hq:ratelimit:"

// Redis is a sliding window limiter shared by every server instance. Each
// request is a sorted-set member scored by its arrival time in microseconds.
type Redis struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client, now: time.Now}
}

// Allow records the request, then withdraws it again if the window was
// already full. Concurrent callers can be denied together but never admitted
// past limit.
func (s *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := s.now()
	k := redisKeyPrefix + key
	member := strconv.FormatInt(now.UnixMicro(), 10) + "-" + uuid.NewString()
	cutoff := strconv.FormatInt(now.Add(-window).UnixMicro(), 10)

	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", cutoff)
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(now.UnixMicro()), Member: member})
		card = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		pipe.PExpire(ctx, k, window)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rate limit check: %w", err)
	}

	resetAt := now.Add(window)
	if zs := oldest.Val(); len(zs) > 0 {
		resetAt = time.UnixMicro(int64(zs[0].Score)).Add(window)
	}

	count := int(card.Val())
	if count > limit {
		if err := s.client.ZRem(ctx, k, member).Err(); err != nil {
			return nil, fmt.Errorf("rate limit rollback: %w", err)
		}
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: models.RetryAfterSeconds(now, resetAt),
		}, nil
	}
	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}

func (s *Redis) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset rate limit: %w", err)
	}
	return nil
}
