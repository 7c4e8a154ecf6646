package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
	"room_coordinator/internal/domain"
)

const (
	TypeNotificationDelivery = "notification:deliver"
)

// NotificationPayload - задача доставки одного уведомления пользователю
type NotificationPayload struct {
	Notification domain.Notification `json:"notification"`
}

func NewNotificationTask(n domain.Notification) (*asynq.Task, error) {
	payload, err := json.Marshal(NotificationPayload{Notification: n})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNotificationDelivery, payload), nil
}

func ParseNotificationPayload(data []byte) (NotificationPayload, error) {
	var p NotificationPayload
	err := json.Unmarshal(data, &p)
	return p, err
}
