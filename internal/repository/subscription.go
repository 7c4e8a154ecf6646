package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"room_coordinator/pkg/logger"
)

// SubscriptionRepository отвечает на вопрос, есть ли у пользователя активная премиум-подписка
type SubscriptionRepository interface {
	IsPremium(ctx context.Context, userID uuid.UUID) (bool, error)
}

type subscriptionRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewSubscriptionRepository(db *pgxpool.Pool, log logger.Logger) SubscriptionRepository {
	return &subscriptionRepository{db: db, log: log}
}

func (r *subscriptionRepository) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT plan = 'premium' AND (expires_at IS NULL OR expires_at > now())
		FROM user_subscriptions
		WHERE user_id = $1
	`

	var premium bool
	err := r.db.QueryRow(ctx, query, userID).Scan(&premium)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		r.log.Error("Failed to get subscription", "error", err, "user_id", userID)
		return false, err
	}
	return premium, nil
}

type cachedSubscriptionRepository struct {
	next   SubscriptionRepository
	redis  *redis.Client
	prefix string
	ttl    time.Duration
	log    logger.Logger
}

// NewCachedSubscriptionRepository кэширует ответ в Redis на ttl.
// Ошибки кэша не мешают запросу к источнику.
func NewCachedSubscriptionRepository(next SubscriptionRepository, redis *redis.Client, prefix string, ttl time.Duration, log logger.Logger) SubscriptionRepository {
	return &cachedSubscriptionRepository{next: next, redis: redis, prefix: prefix, ttl: ttl, log: log}
}

func (r *cachedSubscriptionRepository) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := r.prefix + "premium:" + userID.String()

	cached, err := r.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		return cached == "1", nil
	case !errors.Is(err, redis.Nil):
		r.log.Warn("Premium cache read failed", "error", err, "user_id", userID)
	}

	premium, err := r.next.IsPremium(ctx, userID)
	if err != nil {
		return false, err
	}

	value := "0"
	if premium {
		value = "1"
	}
	if err := r.redis.Set(ctx, key, value, r.ttl).Err(); err != nil {
		r.log.Warn("Premium cache write failed", "error", err, "user_id", userID)
	}
	return premium, nil
}

// StaticSubscriptions - набор премиум-пользователей в памяти (DATABASE_DRIVER=memory, тесты)
type StaticSubscriptions struct {
	mu      sync.RWMutex
	premium map[uuid.UUID]bool
}

func NewStaticSubscriptions(premium ...uuid.UUID) *StaticSubscriptions {
	s := &StaticSubscriptions{premium: make(map[uuid.UUID]bool)}
	for _, id := range premium {
		s.premium[id] = true
	}
	return s
}

func (s *StaticSubscriptions) Set(userID uuid.UUID, premium bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.premium[userID] = premium
}

func (s *StaticSubscriptions) IsPremium(ctx context.Context, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.premium[userID], nil
}
