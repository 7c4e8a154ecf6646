package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"room_coordinator/internal/config"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/repository"
	"room_coordinator/pkg/logger"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []Event
	hook   func(Event)
}

func (c *captureEmitter) Emit(events ...Event) {
	for _, e := range events {
		if c.hook != nil {
			c.hook(e)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
}

func (c *captureEmitter) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.events {
		if e.Audit != nil {
			out = append(out, e.Audit.Action)
		}
	}
	return out
}

func (c *captureEmitter) notifications() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Notification
	for _, e := range c.events {
		out = append(out, e.Notifications...)
	}
	return out
}

func testRoomsConfig() config.RoomsConfig {
	return config.RoomsConfig{
		DefaultCapacity: 8,
		MaxCapacity:     64,
		ConflictRetries: 3,
		LockTimeout:     100 * time.Millisecond,
		EventBuffer:     64,
	}
}

func testRecoveryConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		Enabled:         true,
		SweepInterval:   time.Minute,
		StaleThreshold:  30 * time.Minute,
		Retention:       30 * 24 * time.Hour,
		Workers:         4,
		RoomTimeout:     time.Second,
		CleanupInterval: time.Hour,
		LeaseTTL:        time.Minute,
	}
}

type fixture struct {
	store     repository.Store
	subs      *repository.StaticSubscriptions
	events    *captureEmitter
	lifecycle *lifecycleManager
}

func newFixture(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	if store == nil {
		store = repository.NewMemoryStore()
	}
	subs := repository.NewStaticSubscriptions()
	events := &captureEmitter{}
	lm := NewLifecycleManager(store, NewSubscriptionLookup(subs, logger.NewNop()), events,
		testRoomsConfig(), 30*time.Minute, logger.NewNop())
	return &fixture{store: store, subs: subs, events: events, lifecycle: lm.(*lifecycleManager)}
}

type member struct {
	userID   uuid.UUID
	role     domain.ParticipantRole
	online   bool
	joinedAt time.Time
}

// seedRoom кладет комнату с участниками прямо в хранилище
func seedRoom(t *testing.T, store repository.Store, status domain.RoomStatus, hostHeartbeat time.Time, members ...member) *domain.Room {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	var host member
	for _, m := range members {
		if m.role == domain.ParticipantRoleHost {
			host = m
		}
	}
	room := &domain.Room{
		ID:                  uuid.New(),
		RoomCode:            uuid.NewString()[:6],
		HostUserID:          host.userID,
		Status:              status,
		MaxParticipants:     8,
		AllowJoinInProgress: true,
		CreatedAt:           now.Add(-time.Hour),
		UpdatedAt:           now.Add(-time.Hour),
		LastHostHeartbeatAt: hostHeartbeat,
	}
	first := &domain.Participant{
		ID: uuid.New(), RoomID: room.ID, UserID: host.userID, Role: domain.ParticipantRoleHost,
		IsOnline: host.online, JoinedAt: host.joinedAt, LastSeenAt: hostHeartbeat,
	}
	require.NoError(t, store.CreateRoom(ctx, room, first))

	for _, m := range members {
		if m.role == domain.ParticipantRoleHost {
			continue
		}
		require.NoError(t, store.UpsertParticipant(ctx, &domain.Participant{
			ID: uuid.New(), RoomID: room.ID, UserID: m.userID, Role: m.role,
			IsOnline: m.online, JoinedAt: m.joinedAt, LastSeenAt: now,
		}))
	}
	return room
}

func hostCount(t *testing.T, store repository.Store, roomID uuid.UUID) int {
	t.Helper()
	list, err := store.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	n := 0
	for _, p := range list {
		if p.Role == domain.ParticipantRoleHost {
			n++
		}
	}
	return n
}

func roleOf(t *testing.T, store repository.Store, roomID, userID uuid.UUID) domain.ParticipantRole {
	t.Helper()
	list, err := store.ListParticipants(context.Background(), roomID)
	require.NoError(t, err)
	for _, p := range list {
		if p.UserID == userID {
			return p.Role
		}
	}
	return ""
}
