package service

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/tasks"
	"room_coordinator/pkg/logger"
)

// TaskEnqueuer - часть asynq.Client, нужная приемнику уведомлений
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type queueNotificationSink struct {
	client TaskEnqueuer
	queue  string
	log    logger.Logger
}

// NewQueueNotificationSink ставит уведомления в очередь asynq; доставку выполняет worker
func NewQueueNotificationSink(client TaskEnqueuer, queue string, log logger.Logger) NotificationSink {
	return &queueNotificationSink{client: client, queue: queue, log: log}
}

func (s *queueNotificationSink) Send(ctx context.Context, n domain.Notification) error {
	task, err := tasks.NewNotificationTask(n)
	if err != nil {
		return err
	}
	info, err := s.client.EnqueueContext(ctx, task, asynq.Queue(s.queue), asynq.MaxRetry(3))
	if err != nil {
		return err
	}
	s.log.Debug("Notification enqueued", "task_id", info.ID, "type", n.Type, "user_id", n.UserID)
	return nil
}

type hubNotificationSink struct {
	hub *notify.Hub
	log logger.Logger
}

// NewHubNotificationSink доставляет уведомления напрямую в websocket-хаб (очередь отключена)
func NewHubNotificationSink(hub *notify.Hub, log logger.Logger) NotificationSink {
	return &hubNotificationSink{hub: hub, log: log}
}

func (s *hubNotificationSink) Send(ctx context.Context, n domain.Notification) error {
	message, err := json.Marshal(n)
	if err != nil {
		return err
	}
	s.hub.Deliver(n.UserID, message)
	return nil
}
