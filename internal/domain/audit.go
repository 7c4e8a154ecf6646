package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEvent - неизменяемая запись об изменении состояния. Только добавление.
type AuditEvent struct {
	ID          int64           `json:"id"`
	ActorUserID *uuid.UUID      `json:"actor_user_id,omitempty"`
	ActorRole   string          `json:"actor_role"`
	Action      string          `json:"action"`
	EntityType  string          `json:"entity_type"`
	EntityID    uuid.UUID       `json:"entity_id"`
	Before      json.RawMessage `json:"before,omitempty"`
	After       json.RawMessage `json:"after,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	OriginIP    string          `json:"origin_ip,omitempty"`
}

const (
	ActorRoleUser   = "user"
	ActorRoleHost   = "host"
	ActorRoleSystem = "system"
)

const (
	EntityTypeRoom        = "room"
	EntityTypeParticipant = "participant"
)

const (
	EventTypeRoomCreated       = "ROOM_CREATED"
	EventTypeRoomJoined        = "ROOM_JOINED"
	EventTypeRoomLeft          = "ROOM_LEFT"
	EventTypeUserKicked        = "USER_KICKED"
	EventTypeHostTransferred   = "HOST_TRANSFERRED"
	EventTypeGameStarted       = "GAME_STARTED"
	EventTypeGamePaused        = "GAME_PAUSED"
	EventTypeGameResumed       = "GAME_RESUMED"
	EventTypeRoomEnded         = "ROOM_ENDED"
	EventTypeVisibilityChanged = "VISIBILITY_CHANGED"
	EventTypePasswordChanged   = "PASSWORD_CHANGED"
)

// Snapshot сериализует состояние для полей Before/After. Ошибка сериализации
// дает пустой снимок: аудит не должен ломать уже выполненное изменение.
func Snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
