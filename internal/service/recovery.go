package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"room_coordinator/internal/config"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/repository"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

type RecoveryManager interface {
	// RecoverRoom восстанавливает одну комнату и всегда пишет RecoveryRecord
	RecoverRoom(ctx context.Context, roomID uuid.UUID, reason string) (*domain.RecoveryResult, error)
	// RecoverAllRooms - проход по всем кандидатам; занятый проход дает ErrSweepInProgress
	RecoverAllRooms(ctx context.Context) ([]domain.RecoveryResult, error)
	GetRecoveryStats(ctx context.Context) (*domain.RecoveryStats, error)
	CleanupOldRecoveryData(ctx context.Context) (int64, error)
}

type recoveryManager struct {
	store     repository.Store
	lifecycle LifecycleManager
	lease     repository.SweepLease
	cfg       config.RecoveryConfig
	now       func() time.Time
	log       logger.Logger

	sweeping       atomic.Bool
	totalSweeps    atomic.Int64
	roomsRecovered atomic.Int64
	roomsRetired   atomic.Int64

	mu          sync.RWMutex
	lastSweepAt *time.Time
}

// NewRecoveryManager: lease может быть nil, тогда исключение проходов только внутри процесса
func NewRecoveryManager(store repository.Store, lifecycle LifecycleManager, lease repository.SweepLease, cfg config.RecoveryConfig, log logger.Logger) RecoveryManager {
	return &recoveryManager{
		store:     store,
		lifecycle: lifecycle,
		lease:     lease,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With("component", "recovery"),
	}
}

// chooseHost: живой хост остается, иначе повышается первый подходящий PLAYER,
// иначе комната завершается
func (r *recoveryManager) chooseHost(reason string) HostChooser {
	threshold := r.cfg.StaleThreshold
	return func(room *domain.Room, participants []*domain.Participant, now time.Time) HostDecision {
		for _, p := range participants {
			if p.UserID == room.HostUserID && p.Role == domain.ParticipantRoleHost &&
				isPresent(p, now, threshold) && now.Sub(room.LastHostHeartbeatAt) <= threshold {
				return HostDecision{Action: HostKeep, Reason: domain.RecoveryReasonHostStillActive}
			}
		}
		if next, ok := selectHostCandidate(participants, now, threshold); ok {
			return HostDecision{Action: HostTransfer, NewHost: next.UserID, Reason: reason}
		}
		return HostDecision{Action: HostEnd, Reason: domain.RecoveryReasonNoEligibleHost}
	}
}

func (r *recoveryManager) RecoverRoom(ctx context.Context, roomID uuid.UUID, reason string) (*domain.RecoveryResult, error) {
	if reason == "" {
		reason = domain.RecoveryReasonManual
	}
	detectedAt := r.now()
	result := &domain.RecoveryResult{RoomID: roomID, Reason: reason}

	outcome, err := r.lifecycle.ReassignHost(ctx, roomID, r.chooseHost(reason))
	if err != nil {
		r.log.Error("Room recovery failed", "room_id", roomID, "reason", reason, "error", err)
		result.Error = apperrors.PublicMessage(err)
		if !errors.Is(err, apperrors.ErrNotFound) {
			r.record(ctx, &domain.RecoveryRecord{
				RoomID:     roomID,
				DetectedAt: detectedAt,
				Reason:     domain.RecoveryReasonFailed,
				ResolvedAt: r.now(),
			})
		}
		return result, err
	}

	record := &domain.RecoveryRecord{
		RoomID:     roomID,
		DetectedAt: detectedAt,
		Reason:     outcome.Decision.Reason,
	}
	switch {
	case outcome.AlreadyEnded:
		record.Reason = domain.RecoveryReasonAlreadyEnded
	case outcome.Decision.Action == HostKeep:
		record.Recovered = true
	case outcome.Decision.Action == HostTransfer:
		newHost := outcome.Decision.NewHost
		record.Recovered = true
		record.NewHostUserID = &newHost
		r.roomsRecovered.Add(1)
	case outcome.Decision.Action == HostEnd:
		result.Retired = true
		r.roomsRetired.Add(1)
	}
	record.ResolvedAt = r.now()

	result.Reason = record.Reason
	result.Recovered = record.Recovered
	result.NewHostUserID = record.NewHostUserID

	if err := r.record(ctx, record); err != nil {
		result.Error = "failed to record recovery outcome"
		return result, err
	}

	r.log.Info("Room recovery finished",
		"room_id", roomID,
		"reason", record.Reason,
		"recovered", record.Recovered,
		"retired", result.Retired,
		"status", outcome.Status,
	)
	return result, nil
}

func (r *recoveryManager) record(ctx context.Context, record *domain.RecoveryRecord) error {
	// запись должна пережить отмену прохода
	ctx = context.WithoutCancel(ctx)
	if err := r.store.RecordRecoveryOutcome(ctx, record); err != nil {
		r.log.Error("Failed to write recovery record", "room_id", record.RoomID, "error", err)
		return err
	}
	return nil
}

func (r *recoveryManager) RecoverAllRooms(ctx context.Context) ([]domain.RecoveryResult, error) {
	if !r.sweeping.CompareAndSwap(false, true) {
		return nil, apperrors.ErrSweepInProgress
	}
	defer r.sweeping.Store(false)

	if r.lease != nil {
		token, err := r.lease.Acquire(ctx, r.cfg.LeaseTTL)
		switch {
		case err != nil:
			r.log.Warn("Sweep lease unavailable, continuing with local guard only", "error", err)
		case token == "":
			return nil, apperrors.ErrSweepInProgress
		default:
			defer r.lease.Release(context.WithoutCancel(ctx), token)
		}
	}

	started := r.now()
	r.totalSweeps.Add(1)
	r.mu.Lock()
	r.lastSweepAt = &started
	r.mu.Unlock()

	candidates, err := r.store.ListRecoveryCandidates(ctx, started.Add(-r.cfg.StaleThreshold))
	if err != nil {
		r.log.Error("Failed to list recovery candidates", "error", err)
		return nil, err
	}

	results := make([]domain.RecoveryResult, len(candidates))
	processed := make([]bool, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for i, c := range candidates {
		// отмена проверяется между комнатами, начатая комната доводится до конца
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			roomCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.RoomTimeout)
			defer cancel()

			res, err := r.RecoverRoom(roomCtx, c.RoomID, c.Reason)
			if err != nil {
				failure := apperrors.Recovery(c.RoomID, err)
				r.log.Warn("Room skipped in sweep", "room_id", c.RoomID, "error", failure)
				// причина сбоя хранилища остается в логе, наружу уходит только публичный текст
				res.Error = failure.Reason + ": " + apperrors.PublicMessage(err)
			}
			results[i] = *res
			processed[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.RecoveryResult, 0, len(candidates))
	for i := range results {
		if processed[i] {
			out = append(out, results[i])
		}
	}

	r.log.Info("Recovery sweep finished",
		"candidates", len(candidates),
		"processed", len(out),
		"duration", r.now().Sub(started),
	)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (r *recoveryManager) GetRecoveryStats(ctx context.Context) (*domain.RecoveryStats, error) {
	now := r.now()
	total, stale, err := r.store.CountRooms(ctx, now.Add(-r.cfg.StaleThreshold))
	if err != nil {
		return nil, err
	}
	records, err := r.store.ListRecoveryRecordsSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	stats := &domain.RecoveryStats{
		TotalRooms:     total,
		StaleRooms:     stale,
		TotalSweeps:    r.totalSweeps.Load(),
		RoomsRecovered: r.roomsRecovered.Load(),
		RoomsRetired:   r.roomsRetired.Load(),
	}
	for _, rec := range records {
		switch {
		case rec.Recovered && rec.NewHostUserID != nil:
			stats.RecoveredLast24h++
		case rec.Reason == domain.RecoveryReasonNoEligibleHost:
			stats.RetiredLast24h++
		}
	}

	r.mu.RLock()
	if r.lastSweepAt != nil {
		at := *r.lastSweepAt
		stats.LastSweepAt = &at
	}
	r.mu.RUnlock()
	return stats, nil
}

func (r *recoveryManager) CleanupOldRecoveryData(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.cfg.Retention)
	purged, err := r.store.PurgeRecoveryRecordsOlderThan(ctx, cutoff)
	if err != nil {
		r.log.Error("Failed to purge recovery records", "error", err)
		return 0, err
	}
	r.log.Info("Old recovery records purged", "purged", purged, "cutoff", cutoff)
	return purged, nil
}
