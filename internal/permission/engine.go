// Package permission решает, может ли актор выполнить действие над комнатой.
//
// ValidateAction - чистая функция от (Action, Context) без ввода-вывода и часов.
// Проверки идут в фиксированном порядке, причину отказа дает первая не прошедшая.
package permission

import (
	"fmt"
	"strings"

	"room_coordinator/internal/domain"
)

type Action string

const (
	ActionJoinRoom         Action = "join_room"
	ActionKickPlayer       Action = "kick_player"
	ActionStartGame        Action = "start_game"
	ActionPauseGame        Action = "pause_game"
	ActionResumeGame       Action = "resume_game"
	ActionTransferHost     Action = "transfer_host"
	ActionChangeVisibility Action = "change_visibility"
	ActionChangePassword   Action = "change_password"
	ActionEndRoom          Action = "end_room"
)

// Context - снимок атрибутов актора и комнаты для одной проверки.
// Передается по значению и нигде не кэшируется.
type Context struct {
	ActorIsParticipant bool
	ActorIsSystem      bool
	ActorRole          domain.ParticipantRole
	ActorIsHost        bool
	ActorIsOnline      bool
	ActorIsPremium     bool
	RoomStatus         domain.RoomStatus
	RoomIsPrivate      bool
	RoomHasPassword    bool
	// EnablesPassword - запрос включает парольную защиту (change_password с непустым паролем)
	EnablesPassword bool
}

// NewContext строит контекст из авторитетных данных. participant == nil
// означает, что актор не участник (в том числе если запись удалили конкурентно).
func NewContext(room *domain.Room, participant *domain.Participant, actor domain.Actor, premium bool) Context {
	c := Context{
		ActorIsSystem:   actor.IsSystem,
		ActorIsPremium:  premium,
		RoomStatus:      room.Status,
		RoomIsPrivate:   room.IsPrivate,
		RoomHasPassword: room.HasPassword,
	}
	if participant != nil && !actor.IsSystem && participant.UserID == actor.UserID {
		c.ActorIsParticipant = true
		c.ActorRole = participant.Role
		c.ActorIsHost = participant.Role == domain.ParticipantRoleHost
		c.ActorIsOnline = participant.IsOnline
	}
	return c
}

// WithPasswordChange возвращает копию контекста с флагом включения пароля
func (c Context) WithPasswordChange(enabling bool) Context {
	c.EnablesPassword = enabling
	return c
}

type Result struct {
	Allowed bool
	Reason  string
}

func allow() Result {
	return Result{Allowed: true}
}

func deny(reason string) Result {
	return Result{Reason: reason}
}

type rule struct {
	requireParticipant bool
	requireHost        bool
	allowSystem        bool
	roleReason         string
	statuses           []domain.RoomStatus
	business           func(Context) (string, bool)
}

var nonTerminal = []domain.RoomStatus{domain.RoomStatusWaiting, domain.RoomStatusActive, domain.RoomStatusPaused}

var rules = map[Action]rule{
	ActionJoinRoom: {
		statuses: nonTerminal,
		business: func(c Context) (string, bool) {
			if c.RoomIsPrivate && !c.RoomHasPassword && !c.ActorIsPremium {
				return "private room without a password can only be joined with a premium account", false
			}
			return "", true
		},
	},
	ActionKickPlayer: {
		requireParticipant: true,
		requireHost:        true,
		roleReason:         "only the host can kick players",
		statuses:           nonTerminal,
	},
	ActionStartGame: {
		requireParticipant: true,
		requireHost:        true,
		roleReason:         "only the host can start the game",
		statuses:           []domain.RoomStatus{domain.RoomStatusWaiting},
	},
	ActionPauseGame: {
		requireParticipant: true,
		requireHost:        true,
		roleReason:         "only the host can pause the game",
		statuses:           []domain.RoomStatus{domain.RoomStatusActive, domain.RoomStatusPaused},
	},
	ActionResumeGame: {
		requireParticipant: true,
		requireHost:        true,
		roleReason:         "only the host can resume the game",
		statuses:           []domain.RoomStatus{domain.RoomStatusActive, domain.RoomStatusPaused},
	},
	ActionTransferHost: {
		requireParticipant: true,
		requireHost:        true,
		allowSystem:        true,
		roleReason:         "only the host can transfer host privileges",
		statuses:           nonTerminal,
	},
	ActionChangeVisibility: {
		requireParticipant: true,
		requireHost:        true,
		roleReason:         "only the host can change room visibility",
		statuses:           nonTerminal,
	},
	ActionChangePassword: {
		requireParticipant: true,
		requireHost:        true,
		roleReason:         "only the host can change the room password",
		statuses:           nonTerminal,
		business: func(c Context) (string, bool) {
			if c.EnablesPassword && !c.ActorIsPremium {
				return "password protection requires a premium account", false
			}
			return "", true
		},
	},
	ActionEndRoom: {
		requireParticipant: true,
		requireHost:        true,
		allowSystem:        true,
		roleReason:         "only the host can end the room",
		statuses:           nonTerminal,
	},
}

// ValidateAction проверяет действие. Порядок: участие, роль, статус комнаты, бизнес-ограничения.
func ValidateAction(action Action, c Context) Result {
	r, ok := rules[action]
	if !ok {
		return deny(fmt.Sprintf("unknown action %q", action))
	}

	system := c.ActorIsSystem && r.allowSystem

	if r.requireParticipant && !system && !c.ActorIsParticipant {
		return deny("not a participant of this room")
	}

	if r.requireHost && !system && !c.ActorIsHost {
		return deny(r.roleReason)
	}

	if len(r.statuses) > 0 && !containsStatus(r.statuses, c.RoomStatus) {
		return deny(statusReason(action, c.RoomStatus, r.statuses))
	}

	if r.business != nil {
		if reason, ok := r.business(c); !ok {
			return deny(reason)
		}
	}

	return allow()
}

func containsStatus(list []domain.RoomStatus, s domain.RoomStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func statusReason(action Action, current domain.RoomStatus, allowed []domain.RoomStatus) string {
	if current.IsTerminal() {
		return "room has ended"
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("%s is not allowed while the room is %s (allowed: %s)", action, current, strings.Join(names, ", "))
}
