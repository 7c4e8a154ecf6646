package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/tasks"
	"room_coordinator/pkg/logger"
)

// NotificationHandler доставляет уведомления из очереди в websocket-хаб
type NotificationHandler struct {
	hub *notify.Hub
	log logger.Logger
}

func NewNotificationHandler(hub *notify.Hub, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{hub: hub, log: log}
}

// ProcessTask реализует asynq.Handler
func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	retry, _ := asynq.GetRetryCount(ctx)

	payload, err := tasks.ParseNotificationPayload(t.Payload())
	if err != nil {
		h.log.Error("Failed to unmarshal notification payload", "error", err, "retry", retry)
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	message, err := json.Marshal(payload.Notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %v: %w", err, asynq.SkipRetry)
	}

	// пользователь без открытых соединений просто не получит push
	delivered := h.hub.Deliver(payload.Notification.UserID, message)
	h.log.Debug("Notification delivered",
		"user_id", payload.Notification.UserID,
		"type", payload.Notification.Type,
		"connections", delivered,
	)
	return nil
}
