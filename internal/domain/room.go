package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "WAITING"
	RoomStatusActive  RoomStatus = "ACTIVE"
	RoomStatusPaused  RoomStatus = "PAUSED"
	RoomStatusEnded   RoomStatus = "ENDED"
)

// IsTerminal - из ENDED перехода нет
func (s RoomStatus) IsTerminal() bool {
	return s == RoomStatusEnded
}

// CanTransitionTo проверяет переход по машине состояний:
// WAITING -> ACTIVE -> {PAUSED <-> ACTIVE} -> ENDED; ENDED достижим из любого нетерминального.
func (s RoomStatus) CanTransitionTo(next RoomStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case RoomStatusEnded:
		return true
	case RoomStatusActive:
		return s == RoomStatusWaiting || s == RoomStatusPaused
	case RoomStatusPaused:
		return s == RoomStatusActive
	default:
		return false
	}
}

type ParticipantRole string

const (
	ParticipantRoleHost      ParticipantRole = "HOST"
	ParticipantRolePlayer    ParticipantRole = "PLAYER"
	ParticipantRoleSpectator ParticipantRole = "SPECTATOR"
)

// Room - комната. ID непрозрачный и неизменный, RoomCode - короткий код для приглашения.
type Room struct {
	ID                  uuid.UUID  `json:"id"`
	RoomCode            string     `json:"room_code"`
	Name                string     `json:"name"`
	HostUserID          uuid.UUID  `json:"host_user_id"`
	Status              RoomStatus `json:"status"`
	IsPrivate           bool       `json:"is_private"`
	HasPassword         bool       `json:"has_password"`
	PasswordHash        *string    `json:"-"`
	MaxParticipants     int        `json:"max_participants"`
	AllowJoinInProgress bool       `json:"allow_join_in_progress"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
	LastHostHeartbeatAt time.Time  `json:"last_host_heartbeat_at"`
	EndedAt             *time.Time `json:"ended_at,omitempty"`
}

// Participant - членство пользователя в комнате, уникально по (RoomID, UserID)
type Participant struct {
	ID         uuid.UUID       `json:"id"`
	RoomID     uuid.UUID       `json:"room_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Role       ParticipantRole `json:"role"`
	IsOnline   bool            `json:"is_online"`
	JoinedAt   time.Time       `json:"joined_at"`
	LastSeenAt time.Time       `json:"last_seen_at"`
}

// Heartbeat - запись присутствия. Пишется без блокировки комнаты, побеждает последняя запись.
type Heartbeat struct {
	RoomID uuid.UUID
	UserID uuid.UUID
	At     time.Time
	Online bool
	IsHost bool
}

// RoomSettings - изменяемые хостом настройки видимости
type RoomSettings struct {
	IsPrivate    bool
	PasswordHash *string
}

// Actor - инициатор действия: пользователь или системный восстановитель
type Actor struct {
	UserID   uuid.UUID
	IsSystem bool
}

func UserActor(userID uuid.UUID) Actor {
	return Actor{UserID: userID}
}

func SystemActor() Actor {
	return Actor{IsSystem: true}
}

func (a Actor) String() string {
	if a.IsSystem {
		return "system"
	}
	return a.UserID.String()
}
