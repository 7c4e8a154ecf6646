package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"room_coordinator/pkg/logger"
)

// SweepLease - межпроцессная аренда прохода восстановления.
// Внутри процесса исключение обеспечивает атомарный флаг менеджера.
type SweepLease interface {
	// Acquire возвращает токен аренды; пустой токен - аренда занята другим экземпляром
	Acquire(ctx context.Context, ttl time.Duration) (string, error)
	Release(ctx context.Context, token string) error
}

// удаляем ключ только если он все еще наш
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSweepLease struct {
	redis *redis.Client
	key   string
	log   logger.Logger
}

func NewSweepLease(redis *redis.Client, prefix string, log logger.Logger) SweepLease {
	return &redisSweepLease{redis: redis, key: prefix + "recovery:sweep-lease", log: log}
}

func (l *redisSweepLease) Acquire(ctx context.Context, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.redis.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		l.log.Error("Failed to acquire sweep lease", "error", err)
		return "", err
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

func (l *redisSweepLease) Release(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.redis, []string{l.key}, token).Err(); err != nil {
		l.log.Warn("Failed to release sweep lease", "error", err)
		return err
	}
	return nil
}
