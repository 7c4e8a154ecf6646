package service

import (
	"room_coordinator/internal/config"
	"room_coordinator/internal/repository"
	"room_coordinator/pkg/logger"
)

type Services struct {
	Lifecycle LifecycleManager
	Recovery  RecoveryManager
	RateLimit RateLimitService
	Sweeper   *Sweeper
	Events    *EventDispatcher
}

// NewServices собирает ядро. notifications - приемник уведомлений (очередь или хаб).
func NewServices(repos *repository.Repositories, notifications NotificationSink, cfg *config.Config, log logger.Logger) *Services {
	events := NewEventDispatcher(NewAuditSink(repos.Audit, log), notifications, cfg.Rooms.EventBuffer, log)
	subs := NewSubscriptionLookup(repos.Subscription, log)
	lifecycle := NewLifecycleManager(repos.Store, subs, events, cfg.Rooms, cfg.Recovery.StaleThreshold, log)
	recovery := NewRecoveryManager(repos.Store, lifecycle, repos.SweepLease, cfg.Recovery, log)

	services := &Services{
		Lifecycle: lifecycle,
		Recovery:  recovery,
		Sweeper:   NewSweeper(recovery, cfg.Recovery, log),
		Events:    events,
	}
	if repos.RateLimit != nil {
		services.RateLimit = NewRateLimitService(repos.RateLimit, log)
	}

	return services
}
