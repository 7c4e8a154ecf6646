package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"room_coordinator/internal/config"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/permission"
	"room_coordinator/internal/repository"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeAttempts = 5
	maxRoomNameLen   = 100
	minPasswordLen   = 4
)

type CreateRoomRequest struct {
	HostUserID          uuid.UUID
	Name                string
	IsPrivate           bool
	Password            string
	MaxParticipants     int
	AllowJoinInProgress bool
}

type JoinRequest struct {
	RoomCode string
	UserID   uuid.UUID
	Password string
}

// HostDecisionAction - что сделать с хостом комнаты при системном переназначении
type HostDecisionAction int

const (
	HostKeep HostDecisionAction = iota
	HostTransfer
	HostEnd
)

type HostDecision struct {
	Action  HostDecisionAction
	NewHost uuid.UUID
	Reason  string
}

// HostChooser принимает решение по свежему снимку комнаты, взятому под блокировкой
type HostChooser func(room *domain.Room, participants []*domain.Participant, now time.Time) HostDecision

type HostReassignment struct {
	Decision     HostDecision
	PrevStatus   domain.RoomStatus
	Status       domain.RoomStatus
	AlreadyEnded bool
}

// EventEmitter получает события после освобождения блокировки комнаты
type EventEmitter interface {
	Emit(events ...Event)
}

type LifecycleManager interface {
	CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error)
	Join(ctx context.Context, req JoinRequest) (*domain.Room, *domain.Participant, error)
	Leave(ctx context.Context, roomID, userID uuid.UUID) error
	Kick(ctx context.Context, roomID, actorUserID, targetUserID uuid.UUID) error
	TransferHost(ctx context.Context, roomID uuid.UUID, actor domain.Actor, newHostUserID uuid.UUID) error
	Heartbeat(ctx context.Context, roomID, userID uuid.UUID) error
	Disconnect(ctx context.Context, roomID, userID uuid.UUID) error
	StartGame(ctx context.Context, roomID, actorUserID uuid.UUID) (*domain.Room, error)
	PauseGame(ctx context.Context, roomID, actorUserID uuid.UUID) (*domain.Room, error)
	ResumeGame(ctx context.Context, roomID, actorUserID uuid.UUID) (*domain.Room, error)
	EndRoom(ctx context.Context, roomID uuid.UUID, actor domain.Actor) error
	ChangeVisibility(ctx context.Context, roomID, actorUserID uuid.UUID, isPrivate bool) (*domain.Room, error)
	ChangePassword(ctx context.Context, roomID, actorUserID uuid.UUID, password string) (*domain.Room, error)
	// ReassignHost - системный примитив восстановления: передача хоста или завершение комнаты
	ReassignHost(ctx context.Context, roomID uuid.UUID, choose HostChooser) (*HostReassignment, error)
	GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error)
	ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error)
	// CollaboratorCount - число участников онлайн, читается без блокировки
	CollaboratorCount(ctx context.Context, roomID uuid.UUID) (int, error)
}

type lifecycleManager struct {
	store    repository.Store
	subs     SubscriptionLookup
	events   EventEmitter
	locks    *roomLocks
	cfg      config.RoomsConfig
	presence time.Duration
	now      func() time.Time
	log      logger.Logger
}

// NewLifecycleManager: presence - сколько участник считается онлайн после последнего heartbeat
func NewLifecycleManager(store repository.Store, subs SubscriptionLookup, events EventEmitter, cfg config.RoomsConfig, presence time.Duration, log logger.Logger) LifecycleManager {
	return &lifecycleManager{
		store:    store,
		subs:     subs,
		events:   events,
		locks:    newRoomLocks(cfg.LockTimeout),
		cfg:      cfg,
		presence: presence,
		now:      time.Now,
		log:      log.With("component", "lifecycle"),
	}
}

// roomState - снимок комнаты, прочитанный под блокировкой
type roomState struct {
	room         *domain.Room
	participants []*domain.Participant
}

func (s *roomState) participant(userID uuid.UUID) *domain.Participant {
	for _, p := range s.participants {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (m *lifecycleManager) load(ctx context.Context, roomID uuid.UUID) (*roomState, error) {
	room, err := m.store.FindRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	participants, err := m.store.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return &roomState{room: room, participants: participants}, nil
}

// mutate выполняет цикл чтение-проверка-запись под блокировкой комнаты.
// Проигранная гонка (ErrConflict) повторяется до cfg.ConflictRetries раз.
// События уходят в диспетчер только после освобождения блокировки и только при успехе.
func (m *lifecycleManager) mutate(ctx context.Context, roomID uuid.UUID, fn func(state *roomState, events *eventBatch) error) error {
	release, err := m.locks.acquire(ctx, roomID)
	if err != nil {
		return err
	}

	var events eventBatch
	attempts := m.cfg.ConflictRetries
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		events = events[:0]
		var state *roomState
		state, err = m.load(ctx, roomID)
		if err == nil {
			err = fn(state, &events)
		}
		if err == nil || !errors.Is(err, apperrors.ErrConflict) || ctx.Err() != nil {
			break
		}
		m.log.Debug("Room mutation conflicted, retrying", "room_id", roomID, "attempt", attempt, "error", err)
	}
	release()

	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			m.log.Warn("Room mutation conflict persisted", "room_id", roomID, "error", err)
		}
		return err
	}
	m.events.Emit(events...)
	return nil
}

func (m *lifecycleManager) premium(ctx context.Context, actor domain.Actor) bool {
	if actor.IsSystem || m.subs == nil {
		return false
	}
	return m.subs.IsPremium(ctx, actor.UserID)
}

func (m *lifecycleManager) authorize(action permission.Action, pctx permission.Context) error {
	if res := permission.ValidateAction(action, pctx); !res.Allowed {
		return apperrors.Denied(res.Reason)
	}
	return nil
}

func (m *lifecycleManager) CreateRoom(ctx context.Context, req CreateRoomRequest) (*domain.Room, error) {
	name := strings.TrimSpace(req.Name)
	if len(name) > maxRoomNameLen {
		return nil, apperrors.Validation("room name is too long")
	}
	if req.MaxParticipants == 0 {
		req.MaxParticipants = m.cfg.DefaultCapacity
	}
	if req.MaxParticipants < 1 || req.MaxParticipants > m.cfg.MaxCapacity {
		return nil, apperrors.Validation("max participants is out of range")
	}

	now := m.now()
	actor := domain.UserActor(req.HostUserID)
	room := &domain.Room{
		ID:                  uuid.New(),
		Name:                name,
		HostUserID:          req.HostUserID,
		Status:              domain.RoomStatusWaiting,
		IsPrivate:           req.IsPrivate,
		MaxParticipants:     req.MaxParticipants,
		AllowJoinInProgress: req.AllowJoinInProgress,
		CreatedAt:           now,
		UpdatedAt:           now,
		LastHostHeartbeatAt: now,
	}
	host := &domain.Participant{
		ID:         uuid.New(),
		RoomID:     room.ID,
		UserID:     req.HostUserID,
		Role:       domain.ParticipantRoleHost,
		IsOnline:   true,
		JoinedAt:   now,
		LastSeenAt: now,
	}

	if req.Password != "" {
		// пароль при создании проверяется тем же правилом, что и смена пароля
		pctx := permission.NewContext(room, host, actor, m.premium(ctx, actor)).WithPasswordChange(true)
		if err := m.authorize(permission.ActionChangePassword, pctx); err != nil {
			return nil, err
		}
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		room.PasswordHash = &hash
		room.HasPassword = true
	}

	var err error
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room.RoomCode, err = generateRoomCode()
		if err != nil {
			return nil, err
		}
		err = m.store.CreateRoom(ctx, room, host)
		if !errors.Is(err, apperrors.ErrDuplicateRoomCode) {
			break
		}
	}
	if err != nil {
		m.log.Error("Failed to create room", "error", err, "host_user_id", req.HostUserID)
		return nil, err
	}

	m.events.Emit(Event{
		Audit: newAuditEvent(ctx, actor, domain.ActorRoleHost, domain.EventTypeRoomCreated,
			domain.EntityTypeRoom, room.ID, nil, room, now),
	})
	m.log.Info("Room created", "room_id", room.ID, "room_code", room.RoomCode, "host_user_id", req.HostUserID)
	return room, nil
}

func (m *lifecycleManager) Join(ctx context.Context, req JoinRequest) (*domain.Room, *domain.Participant, error) {
	code := strings.TrimSpace(req.RoomCode)
	if code == "" {
		return nil, nil, apperrors.Validation("room code is required")
	}
	found, err := m.store.FindRoomByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}

	actor := domain.UserActor(req.UserID)
	premium := m.premium(ctx, actor)

	var room *domain.Room
	var joined *domain.Participant
	err = m.mutate(ctx, found.ID, func(state *roomState, events *eventBatch) error {
		room = state.room
		existing := state.participant(req.UserID)

		if err := m.authorize(permission.ActionJoinRoom, permission.NewContext(room, nil, actor, premium)); err != nil {
			return err
		}

		now := m.now()
		if existing != nil {
			existing.IsOnline = true
			existing.LastSeenAt = now
			if err := m.store.UpsertParticipant(ctx, existing); err != nil {
				return err
			}
			joined = existing
			return nil
		}

		if room.HasPassword && !checkPassword(room.PasswordHash, req.Password) {
			return apperrors.Validation("invalid room password")
		}
		if len(state.participants) >= room.MaxParticipants {
			return apperrors.Validation("room full")
		}

		role := domain.ParticipantRolePlayer
		inProgress := room.Status == domain.RoomStatusActive || room.Status == domain.RoomStatusPaused
		if inProgress && !room.AllowJoinInProgress {
			role = domain.ParticipantRoleSpectator
		}

		p := &domain.Participant{
			ID:         uuid.New(),
			RoomID:     room.ID,
			UserID:     req.UserID,
			Role:       role,
			IsOnline:   true,
			JoinedAt:   now,
			LastSeenAt: now,
		}
		if err := m.store.UpsertParticipant(ctx, p); err != nil {
			return err
		}
		joined = p

		events.add(Event{
			Audit: newAuditEvent(ctx, actor, domain.ActorRoleUser, domain.EventTypeRoomJoined,
				domain.EntityTypeParticipant, p.ID, nil, p, now),
			Notifications: notifyParticipants(state.participants, req.UserID, domain.NotificationParticipantJoin,
				map[string]interface{}{"room_id": room.ID, "user_id": req.UserID, "role": role}, now),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return room, joined, nil
}

func (m *lifecycleManager) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	actor := domain.UserActor(userID)

	ended := false
	err := m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		ended = false
		leaving := state.participant(userID)
		if leaving == nil {
			return apperrors.ErrParticipantNotFound
		}
		if state.room.Status.IsTerminal() {
			return apperrors.ErrRoomEnded
		}
		snapshot := *leaving

		now := m.now()
		endRoom := false
		if leaving.Role == domain.ParticipantRoleHost {
			remaining := make([]*domain.Participant, 0, len(state.participants))
			for _, p := range state.participants {
				if p.UserID != userID {
					remaining = append(remaining, p)
				}
			}
			if next, ok := selectHostCandidate(remaining, now, m.presence); ok {
				if err := m.transferHostLocked(ctx, state, actor, next.UserID, events); err != nil {
					return err
				}
			} else {
				endRoom = true
			}
		}

		// участник удаляется, пока комната еще не завершена: ENDED больше не меняется
		if err := m.store.DeleteParticipant(ctx, roomID, userID); err != nil {
			return err
		}
		events.add(Event{
			Audit: newAuditEvent(ctx, actor, domain.ActorRoleUser, domain.EventTypeRoomLeft,
				domain.EntityTypeParticipant, snapshot.ID, snapshot, nil, now),
			Notifications: notifyParticipants(state.participants, userID, domain.NotificationParticipantLeft,
				map[string]interface{}{"room_id": roomID, "user_id": userID}, now),
		})

		if endRoom {
			if err := m.endRoomLocked(ctx, state, actor, events); err != nil {
				return err
			}
			ended = true
		}
		return nil
	})
	if err == nil && ended {
		m.locks.forget(roomID)
	}
	return err
}

func (m *lifecycleManager) Kick(ctx context.Context, roomID, actorUserID, targetUserID uuid.UUID) error {
	if targetUserID == uuid.Nil {
		return apperrors.Validation("target user is required")
	}
	if actorUserID == targetUserID {
		return apperrors.Validation("cannot kick yourself")
	}
	actor := domain.UserActor(actorUserID)
	premium := m.premium(ctx, actor)

	return m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		pctx := permission.NewContext(state.room, state.participant(actorUserID), actor, premium)
		if err := m.authorize(permission.ActionKickPlayer, pctx); err != nil {
			return err
		}

		target := state.participant(targetUserID)
		if target == nil {
			return apperrors.ErrParticipantNotFound
		}
		if err := m.store.DeleteParticipant(ctx, roomID, targetUserID); err != nil {
			return err
		}

		now := m.now()
		events.add(Event{
			Audit: newAuditEvent(ctx, actor, domain.ActorRoleHost, domain.EventTypeUserKicked,
				domain.EntityTypeParticipant, target.ID, target, nil, now),
			Notifications: []domain.Notification{{
				UserID:    targetUserID,
				Type:      domain.NotificationKicked,
				Payload:   map[string]interface{}{"room_id": roomID, "kicked_by": actorUserID},
				CreatedAt: now,
			}},
		})
		m.log.Info("Participant kicked", "room_id", roomID, "target_user_id", targetUserID, "actor_user_id", actorUserID)
		return nil
	})
}

func (m *lifecycleManager) TransferHost(ctx context.Context, roomID uuid.UUID, actor domain.Actor, newHostUserID uuid.UUID) error {
	if newHostUserID == uuid.Nil {
		return apperrors.Validation("new host is required")
	}
	return m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		return m.transferHostLocked(ctx, state, actor, newHostUserID, events)
	})
}

// transferHostLocked повышает newHost до HOST и понижает остальных HOST до PLAYER
// одной операцией хранилища: при сбое остается прежний хост.
func (m *lifecycleManager) transferHostLocked(ctx context.Context, state *roomState, actor domain.Actor, newHostUserID uuid.UUID, events *eventBatch) error {
	pctx := permission.NewContext(state.room, state.participant(actor.UserID), actor, false)
	if err := m.authorize(permission.ActionTransferHost, pctx); err != nil {
		return err
	}

	target := state.participant(newHostUserID)
	if target == nil {
		return apperrors.ErrParticipantNotFound
	}
	if !actor.IsSystem && newHostUserID == actor.UserID {
		return apperrors.Validation("user is already the host")
	}

	now := m.now()
	before := *state.room

	if err := m.store.SetHost(ctx, state.room.ID, newHostUserID, now); err != nil {
		return err
	}
	for _, p := range state.participants {
		if p.UserID != newHostUserID && p.Role == domain.ParticipantRoleHost {
			p.Role = domain.ParticipantRolePlayer
		}
	}
	target.Role = domain.ParticipantRoleHost
	state.room.HostUserID = newHostUserID
	state.room.LastHostHeartbeatAt = now
	state.room.UpdatedAt = now

	events.add(Event{
		Audit: newAuditEvent(ctx, actor, actorRole(actor), domain.EventTypeHostTransferred,
			domain.EntityTypeRoom, state.room.ID,
			map[string]interface{}{"host_user_id": before.HostUserID},
			map[string]interface{}{"host_user_id": newHostUserID}, now),
		Notifications: notifyParticipants(state.participants, uuid.Nil, domain.NotificationHostChanged,
			map[string]interface{}{"room_id": state.room.ID, "host_user_id": newHostUserID}, now),
	})
	m.log.Info("Host transferred", "room_id", state.room.ID, "from", before.HostUserID, "to", newHostUserID, "actor", actor)
	return nil
}

func (m *lifecycleManager) Heartbeat(ctx context.Context, roomID, userID uuid.UUID) error {
	return m.presenceWrite(ctx, roomID, userID, true)
}

func (m *lifecycleManager) Disconnect(ctx context.Context, roomID, userID uuid.UUID) error {
	return m.presenceWrite(ctx, roomID, userID, false)
}

// presenceWrite не берет блокировку комнаты: последняя запись побеждает
func (m *lifecycleManager) presenceWrite(ctx context.Context, roomID, userID uuid.UUID, online bool) error {
	room, err := m.store.FindRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.Status.IsTerminal() {
		return apperrors.ErrRoomEnded
	}
	return m.store.UpdateHeartbeat(ctx, domain.Heartbeat{
		RoomID: roomID,
		UserID: userID,
		At:     m.now(),
		Online: online,
		IsHost: room.HostUserID == userID,
	})
}

func (m *lifecycleManager) StartGame(ctx context.Context, roomID, actorUserID uuid.UUID) (*domain.Room, error) {
	return m.changeStatus(ctx, roomID, actorUserID, permission.ActionStartGame, domain.RoomStatusActive, domain.EventTypeGameStarted)
}

func (m *lifecycleManager) PauseGame(ctx context.Context, roomID, actorUserID uuid.UUID) (*domain.Room, error) {
	return m.changeStatus(ctx, roomID, actorUserID, permission.ActionPauseGame, domain.RoomStatusPaused, domain.EventTypeGamePaused)
}

func (m *lifecycleManager) ResumeGame(ctx context.Context, roomID, actorUserID uuid.UUID) (*domain.Room, error) {
	return m.changeStatus(ctx, roomID, actorUserID, permission.ActionResumeGame, domain.RoomStatusActive, domain.EventTypeGameResumed)
}

// changeStatus: повторная пауза или продолжение в том же статусе - успешная операция без изменений
func (m *lifecycleManager) changeStatus(ctx context.Context, roomID, actorUserID uuid.UUID, action permission.Action, target domain.RoomStatus, eventType string) (*domain.Room, error) {
	actor := domain.UserActor(actorUserID)
	premium := m.premium(ctx, actor)

	var room *domain.Room
	err := m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		room = state.room
		pctx := permission.NewContext(state.room, state.participant(actorUserID), actor, premium)
		if err := m.authorize(action, pctx); err != nil {
			return err
		}
		if state.room.Status == target {
			return nil
		}
		return m.setStatusLocked(ctx, state, actor, target, eventType, events)
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (m *lifecycleManager) setStatusLocked(ctx context.Context, state *roomState, actor domain.Actor, target domain.RoomStatus, eventType string, events *eventBatch) error {
	from := state.room.Status
	if !from.CanTransitionTo(target) {
		return apperrors.Validation("invalid status transition from " + string(from) + " to " + string(target))
	}

	now := m.now()
	if err := m.store.UpdateRoomStatus(ctx, state.room.ID, from, target, now); err != nil {
		return err
	}
	state.room.Status = target
	state.room.UpdatedAt = now
	if target == domain.RoomStatusEnded {
		ended := now
		state.room.EndedAt = &ended
	}

	events.add(Event{
		Audit: newAuditEvent(ctx, actor, actorRole(actor), eventType, domain.EntityTypeRoom, state.room.ID,
			map[string]interface{}{"status": from}, map[string]interface{}{"status": target}, now),
		Notifications: notifyParticipants(state.participants, uuid.Nil, domain.NotificationStatusChanged,
			map[string]interface{}{"room_id": state.room.ID, "status": target}, now),
	})
	m.log.Info("Room status changed", "room_id", state.room.ID, "from", from, "to", target, "actor", actor)
	return nil
}

func (m *lifecycleManager) EndRoom(ctx context.Context, roomID uuid.UUID, actor domain.Actor) error {
	err := m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		return m.endRoomLocked(ctx, state, actor, events)
	})
	if err == nil {
		m.locks.forget(roomID)
	}
	return err
}

func (m *lifecycleManager) endRoomLocked(ctx context.Context, state *roomState, actor domain.Actor, events *eventBatch) error {
	pctx := permission.NewContext(state.room, state.participant(actor.UserID), actor, false)
	if err := m.authorize(permission.ActionEndRoom, pctx); err != nil {
		return err
	}
	return m.setStatusLocked(ctx, state, actor, domain.RoomStatusEnded, domain.EventTypeRoomEnded, events)
}

func (m *lifecycleManager) ChangeVisibility(ctx context.Context, roomID, actorUserID uuid.UUID, isPrivate bool) (*domain.Room, error) {
	actor := domain.UserActor(actorUserID)
	premium := m.premium(ctx, actor)

	var room *domain.Room
	err := m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		room = state.room
		pctx := permission.NewContext(state.room, state.participant(actorUserID), actor, premium)
		if err := m.authorize(permission.ActionChangeVisibility, pctx); err != nil {
			return err
		}
		if state.room.IsPrivate == isPrivate {
			return nil
		}

		now := m.now()
		settings := domain.RoomSettings{IsPrivate: isPrivate, PasswordHash: state.room.PasswordHash}
		if err := m.store.UpdateRoomSettings(ctx, roomID, settings, now); err != nil {
			return err
		}
		before := state.room.IsPrivate
		state.room.IsPrivate = isPrivate
		state.room.UpdatedAt = now

		events.add(Event{
			Audit: newAuditEvent(ctx, actor, domain.ActorRoleHost, domain.EventTypeVisibilityChanged,
				domain.EntityTypeRoom, roomID,
				map[string]interface{}{"is_private": before}, map[string]interface{}{"is_private": isPrivate}, now),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

// ChangePassword: пустой пароль снимает защиту
func (m *lifecycleManager) ChangePassword(ctx context.Context, roomID, actorUserID uuid.UUID, password string) (*domain.Room, error) {
	actor := domain.UserActor(actorUserID)
	premium := m.premium(ctx, actor)

	var hash *string
	if password != "" {
		h, err := hashPassword(password)
		if err != nil {
			return nil, err
		}
		hash = &h
	}

	var room *domain.Room
	err := m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		room = state.room
		pctx := permission.NewContext(state.room, state.participant(actorUserID), actor, premium).
			WithPasswordChange(hash != nil)
		if err := m.authorize(permission.ActionChangePassword, pctx); err != nil {
			return err
		}

		now := m.now()
		settings := domain.RoomSettings{IsPrivate: state.room.IsPrivate, PasswordHash: hash}
		if err := m.store.UpdateRoomSettings(ctx, roomID, settings, now); err != nil {
			return err
		}
		before := state.room.HasPassword
		state.room.PasswordHash = hash
		state.room.HasPassword = hash != nil
		state.room.UpdatedAt = now

		events.add(Event{
			Audit: newAuditEvent(ctx, actor, domain.ActorRoleHost, domain.EventTypePasswordChanged,
				domain.EntityTypeRoom, roomID,
				map[string]interface{}{"has_password": before}, map[string]interface{}{"has_password": hash != nil}, now),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (m *lifecycleManager) ReassignHost(ctx context.Context, roomID uuid.UUID, choose HostChooser) (*HostReassignment, error) {
	system := domain.SystemActor()

	var result *HostReassignment
	err := m.mutate(ctx, roomID, func(state *roomState, events *eventBatch) error {
		result = &HostReassignment{PrevStatus: state.room.Status, Status: state.room.Status}
		if state.room.Status.IsTerminal() {
			result.AlreadyEnded = true
			return nil
		}

		decision := choose(state.room, state.participants, m.now())
		result.Decision = decision

		switch decision.Action {
		case HostTransfer:
			if state.room.HostUserID != decision.NewHost {
				if err := m.transferHostLocked(ctx, state, system, decision.NewHost, events); err != nil {
					return err
				}
			}
			if state.room.Status == domain.RoomStatusPaused {
				if err := m.setStatusLocked(ctx, state, system, domain.RoomStatusActive, domain.EventTypeGameResumed, events); err != nil {
					return err
				}
			}
		case HostEnd:
			if err := m.endRoomLocked(ctx, state, system, events); err != nil {
				return err
			}
		}
		result.Status = state.room.Status
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Status.IsTerminal() && !result.AlreadyEnded {
		m.locks.forget(roomID)
	}
	return result, nil
}

func (m *lifecycleManager) GetRoom(ctx context.Context, roomID uuid.UUID) (*domain.Room, error) {
	return m.store.FindRoomByID(ctx, roomID)
}

func (m *lifecycleManager) ListParticipants(ctx context.Context, roomID uuid.UUID) ([]*domain.Participant, error) {
	return m.store.ListParticipants(ctx, roomID)
}

func (m *lifecycleManager) CollaboratorCount(ctx context.Context, roomID uuid.UUID) (int, error) {
	participants, err := m.store.ListParticipants(ctx, roomID)
	if err != nil {
		return 0, err
	}
	now := m.now()
	count := 0
	for _, p := range participants {
		if isPresent(p, now, m.presence) {
			count++
		}
	}
	return count, nil
}

// isPresent - участник онлайн и его последний heartbeat не старше presence
func isPresent(p *domain.Participant, now time.Time, presence time.Duration) bool {
	return p.IsOnline && now.Sub(p.LastSeenAt) <= presence
}

// selectHostCandidate выбирает присутствующего PLAYER с самым ранним joinedAt,
// при равенстве - с меньшим userId. Результат детерминирован.
func selectHostCandidate(participants []*domain.Participant, now time.Time, presence time.Duration) (*domain.Participant, bool) {
	var best *domain.Participant
	for _, p := range participants {
		if p.Role != domain.ParticipantRolePlayer || !isPresent(p, now, presence) {
			continue
		}
		if best == nil ||
			p.JoinedAt.Before(best.JoinedAt) ||
			(p.JoinedAt.Equal(best.JoinedAt) && p.UserID.String() < best.UserID.String()) {
			best = p
		}
	}
	return best, best != nil
}

func actorRole(actor domain.Actor) string {
	if actor.IsSystem {
		return domain.ActorRoleSystem
	}
	return domain.ActorRoleHost
}

func newAuditEvent(ctx context.Context, actor domain.Actor, role, action, entityType string, entityID uuid.UUID, before, after interface{}, at time.Time) *domain.AuditEvent {
	event := &domain.AuditEvent{
		ActorRole:  role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     domain.Snapshot(before),
		After:      domain.Snapshot(after),
		Timestamp:  at,
		OriginIP:   OriginIPFromContext(ctx),
	}
	if !actor.IsSystem {
		id := actor.UserID
		event.ActorUserID = &id
	}
	return event
}

// notifyParticipants строит уведомления всем участникам, кроме except
func notifyParticipants(participants []*domain.Participant, except uuid.UUID, kind string, payload map[string]interface{}, at time.Time) []domain.Notification {
	var out []domain.Notification
	for _, p := range participants {
		if p.UserID == except {
			continue
		}
		out = append(out, domain.Notification{UserID: p.UserID, Type: kind, Payload: payload, CreatedAt: at})
	}
	return out
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", apperrors.Validation("password is too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash *string, password string) bool {
	if hash == nil {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(*hash), []byte(password)) == nil
}

func generateRoomCode() (string, error) {
	size := big.NewInt(int64(len(roomCodeAlphabet)))
	b := make([]byte, roomCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b[i] = roomCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}

type originIPKey struct{}

// WithOriginIP сохраняет адрес клиента для записей аудита
func WithOriginIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, originIPKey{}, ip)
}

func OriginIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(originIPKey{}).(string)
	return ip
}
