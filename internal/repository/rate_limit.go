package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"room_coordinator/pkg/logger"
)

type RateLimitRepository interface {
	// Increment увеличивает счетчик окна и возвращает новое значение
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

type rateLimitRepository struct {
	redis  *redis.Client
	prefix string
	log    logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, prefix string, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, prefix: prefix, log: log}
}

func (r *rateLimitRepository) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = r.prefix + "ratelimit:" + key

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err)
		return 0, err
	}

	if count == 1 {
		r.redis.Expire(ctx, key, window)
	}

	return count, nil
}
