package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"room_coordinator/internal/config"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/tasks"
	"room_coordinator/pkg/logger"
)

// Server - обертка над asynq.Server: запуск и остановка обработки очереди уведомлений
type Server struct {
	server *asynq.Server
	hub    *notify.Hub
	log    logger.Logger
}

func NewServer(redisOpt asynq.RedisClientOpt, cfg config.NotificationsConfig, hub *notify.Hub, log logger.Logger) *Server {
	log = log.With("component", "notification_worker")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.Queue: 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retry, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				log.Error("Task failed", "task_type", task.Type(), "retry", retry, "max_retry", maxRetry, "error", err)
			}),
		},
	)

	return &Server{server: server, hub: hub, log: log}
}

// Mux регистрирует обработчики задач
func (s *Server) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeNotificationDelivery, NewNotificationHandler(s.hub, s.log))
	return mux
}

// Start блокирует до остановки; вызывать в отдельной горутине
func (s *Server) Start() {
	s.log.Info("Worker server starting")
	if err := s.server.Run(s.Mux()); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
		s.log.Error("Worker server stopped with error", "error", err)
		return
	}
	s.log.Info("Worker server stopped")
}

func (s *Server) Shutdown() {
	s.log.Info("Shutting down worker server")
	s.server.Shutdown()
}
