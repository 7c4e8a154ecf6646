package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"room_coordinator/internal/config"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

// Sweeper периодически запускает проход восстановления и очистку старых записей.
// Ручной запуск через RecoveryManager делит с ним тот же флаг единственного прохода.
type Sweeper struct {
	recovery        RecoveryManager
	interval        time.Duration
	cleanupInterval time.Duration
	log             logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(recovery RecoveryManager, cfg config.RecoveryConfig, log logger.Logger) *Sweeper {
	return &Sweeper{
		recovery:        recovery,
		interval:        cfg.SweepInterval,
		cleanupInterval: cfg.CleanupInterval,
		log:             log.With("component", "sweeper"),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Info("Recovery sweeper started", "interval", s.interval, "cleanup_interval", s.cleanupInterval)
}

// Stop отменяет текущий проход и ждет его завершения. Комната, которую
// проход уже начал, обрабатывается до конца.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info("Recovery sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	sweep := time.NewTicker(s.interval)
	defer sweep.Stop()

	var cleanup <-chan time.Time
	if s.cleanupInterval > 0 {
		t := time.NewTicker(s.cleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			s.sweepOnce(ctx)
		case <-cleanup:
			if _, err := s.recovery.CleanupOldRecoveryData(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("Scheduled recovery cleanup failed", "error", err)
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	results, err := s.recovery.RecoverAllRooms(ctx)
	switch {
	case errors.Is(err, apperrors.ErrSweepInProgress):
		s.log.Debug("Skipping scheduled sweep, another sweep is running")
	case errors.Is(err, context.Canceled):
		s.log.Info("Scheduled sweep cancelled", "processed", len(results))
	case err != nil:
		s.log.Error("Scheduled sweep failed", "error", err)
	default:
		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		if len(results) > 0 {
			s.log.Info("Scheduled sweep completed", "rooms", len(results), "failed", failed)
		}
	}
}
