package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"room_coordinator/internal/config"
	"room_coordinator/pkg/logger"
)

type Repositories struct {
	Store        Store
	Audit        AuditRepository
	Subscription SubscriptionRepository
	RateLimit    RateLimitRepository
	SweepLease   SweepLease
}

// NewRepositories собирает адаптеры хранилища. db == nil означает драйвер memory,
// redis == nil отключает кэш, ограничение частоты и распределенную аренду.
func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config, log logger.Logger) *Repositories {
	repos := &Repositories{}

	if db != nil {
		repos.Store = NewPostgresStore(db, log)
		repos.Audit = NewAuditRepository(db, log)
		repos.Subscription = NewSubscriptionRepository(db, log)
	} else {
		repos.Store = NewMemoryStore()
		repos.Audit = NewMemoryAuditRepository()
		repos.Subscription = NewStaticSubscriptions()
		log.Warn("Using in-memory storage, data will not survive a restart")
	}

	if rdb != nil {
		prefix := cfg.Redis.KeyPrefix
		repos.Subscription = NewCachedSubscriptionRepository(repos.Subscription, rdb, prefix, cfg.Rooms.PremiumCacheTTL, log)
		repos.RateLimit = NewRateLimitRepository(rdb, prefix, log)
		repos.SweepLease = NewSweepLease(rdb, prefix, log)
	}

	log.Info("Repositories initialized", "durable", db != nil, "redis", rdb != nil)
	return repos
}
