package domain

import (
	"time"

	"github.com/google/uuid"
)

// Типы уведомлений пользователям
const (
	NotificationKicked          = "room.kicked"
	NotificationHostChanged     = "room.host_changed"
	NotificationStatusChanged   = "room.status_changed"
	NotificationParticipantJoin = "room.participant_joined"
	NotificationParticipantLeft = "room.participant_left"
)

// Notification - сообщение, доставляемое пользователю через websocket
type Notification struct {
	UserID    uuid.UUID              `json:"user_id"`
	Type      string                 `json:"type"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}
