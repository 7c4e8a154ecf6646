package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room_coordinator/internal/domain"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/tasks"
	"room_coordinator/pkg/logger"
)

func TestNotificationHandler_BadPayloadSkipsRetry(t *testing.T) {
	h := NewNotificationHandler(notify.NewHub(logger.NewNop()), logger.NewNop())

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeNotificationDelivery, []byte("not json")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNotificationHandler_NoConnectionsIsNotAnError(t *testing.T) {
	h := NewNotificationHandler(notify.NewHub(logger.NewNop()), logger.NewNop())

	task, err := tasks.NewNotificationTask(domain.Notification{
		UserID:    uuid.New(),
		Type:      domain.NotificationHostChanged,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)

	assert.NoError(t, h.ProcessTask(context.Background(), task))
}
