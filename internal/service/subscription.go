package service

import (
	"context"

	"github.com/google/uuid"
	"room_coordinator/internal/repository"
	"room_coordinator/pkg/logger"
)

// SubscriptionLookup - источник статуса премиум-подписки для контекста прав
type SubscriptionLookup interface {
	IsPremium(ctx context.Context, userID uuid.UUID) bool
}

type subscriptionLookup struct {
	repo repository.SubscriptionRepository
	log  logger.Logger
}

func NewSubscriptionLookup(repo repository.SubscriptionRepository, log logger.Logger) SubscriptionLookup {
	return &subscriptionLookup{repo: repo, log: log}
}

// IsPremium при ошибке источника считает пользователя обычным
func (s *subscriptionLookup) IsPremium(ctx context.Context, userID uuid.UUID) bool {
	premium, err := s.repo.IsPremium(ctx, userID)
	if err != nil {
		s.log.Warn("Subscription lookup failed, treating user as non-premium", "error", err, "user_id", userID)
		return false
	}
	return premium
}
