package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"room_coordinator/internal/domain"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/tasks"
	"room_coordinator/pkg/logger"
)

// journal фиксирует порядок вызовов приемников
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type mockAuditSink struct {
	mock.Mock
	log *journal
}

func (m *mockAuditSink) Record(ctx context.Context, event domain.AuditEvent) error {
	m.log.add("audit:" + event.Action)
	args := m.Called(ctx, event)
	return args.Error(0)
}

type mockNotificationSink struct {
	mock.Mock
	log *journal
}

func (m *mockNotificationSink) Send(ctx context.Context, n domain.Notification) error {
	m.log.add("notify:" + n.Type)
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestEventDispatcher_AuditBeforeNotifications(t *testing.T) {
	j := &journal{}
	audit := &mockAuditSink{log: j}
	notifier := &mockNotificationSink{log: j}
	audit.On("Record", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	d := NewEventDispatcher(audit, notifier, 8, logger.NewNop())
	d.Start()

	user := uuid.New()
	d.Emit(
		Event{
			Audit:         &domain.AuditEvent{Action: domain.EventTypeUserKicked},
			Notifications: []domain.Notification{{UserID: user, Type: domain.NotificationKicked}},
		},
		Event{
			Audit: &domain.AuditEvent{Action: domain.EventTypeRoomEnded},
			Notifications: []domain.Notification{
				{UserID: user, Type: domain.NotificationStatusChanged},
				{UserID: uuid.New(), Type: domain.NotificationStatusChanged},
			},
		},
	)
	d.Close()

	assert.Equal(t, []string{
		"audit:" + domain.EventTypeUserKicked,
		"notify:" + domain.NotificationKicked,
		"audit:" + domain.EventTypeRoomEnded,
		"notify:" + domain.NotificationStatusChanged,
		"notify:" + domain.NotificationStatusChanged,
	}, j.list())
	audit.AssertNumberOfCalls(t, "Record", 2)
	notifier.AssertNumberOfCalls(t, "Send", 3)
}

func TestEventDispatcher_SinkFailuresDoNotStopDelivery(t *testing.T) {
	j := &journal{}
	audit := &mockAuditSink{log: j}
	notifier := &mockNotificationSink{log: j}
	audit.On("Record", mock.Anything, mock.Anything).Return(errors.New("db down"))
	notifier.On("Send", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
		return n.Type == domain.NotificationKicked
	})).Return(errors.New("queue down"))
	notifier.On("Send", mock.Anything, mock.Anything).Return(nil)

	d := NewEventDispatcher(audit, notifier, 8, logger.NewNop())
	d.Start()
	for i := 0; i < 3; i++ {
		d.Emit(Event{
			Audit: &domain.AuditEvent{Action: domain.EventTypeUserKicked},
			Notifications: []domain.Notification{
				{UserID: uuid.New(), Type: domain.NotificationKicked},
				{UserID: uuid.New(), Type: domain.NotificationParticipantLeft},
			},
		})
	}
	d.Close()

	audit.AssertNumberOfCalls(t, "Record", 3)
	notifier.AssertNumberOfCalls(t, "Send", 6)
}

func TestEventDispatcher_CloseDrainsAndDropsLateEvents(t *testing.T) {
	j := &journal{}
	audit := &mockAuditSink{log: j}
	audit.On("Record", mock.Anything, mock.Anything).Return(nil)

	// Start не вызывается: Close сам разбирает очередь
	d := NewEventDispatcher(audit, nil, 4, logger.NewNop())
	d.Emit(Event{Audit: &domain.AuditEvent{Action: domain.EventTypeGameStarted}})
	d.Emit(Event{Audit: &domain.AuditEvent{Action: domain.EventTypeGamePaused}})
	d.Close()

	d.Emit(Event{Audit: &domain.AuditEvent{Action: domain.EventTypeRoomEnded}})
	d.Close()

	assert.Equal(t, []string{
		"audit:" + domain.EventTypeGameStarted,
		"audit:" + domain.EventTypeGamePaused,
	}, j.list())
}

func TestEventDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	j := &journal{}
	audit := &mockAuditSink{log: j}
	audit.On("Record", mock.Anything, mock.Anything).Return(nil)

	// без Start очередь никто не разбирает
	d := NewEventDispatcher(audit, nil, 2, logger.NewNop())

	emitted := make(chan struct{})
	go func() {
		defer close(emitted)
		d.Emit(
			Event{Audit: &domain.AuditEvent{Action: domain.EventTypeGameStarted}},
			Event{Audit: &domain.AuditEvent{Action: domain.EventTypeGamePaused}},
			Event{Audit: &domain.AuditEvent{Action: domain.EventTypeGameResumed}},
		)
		d.Emit(Event{Audit: &domain.AuditEvent{Action: domain.EventTypeRoomEnded}})
	}()

	select {
	case <-emitted:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	closed := make(chan struct{})
	go func() {
		d.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}

	assert.Equal(t, []string{
		"audit:" + domain.EventTypeGameStarted,
		"audit:" + domain.EventTypeGamePaused,
	}, j.list())
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "task-1", Queue: "notifications"}, nil
}

func TestQueueNotificationSink(t *testing.T) {
	enq := &fakeEnqueuer{}
	sink := NewQueueNotificationSink(enq, "notifications", logger.NewNop())

	n := domain.Notification{UserID: uuid.New(), Type: domain.NotificationHostChanged, Payload: map[string]interface{}{"roomId": "r1"}}
	require.NoError(t, sink.Send(context.Background(), n))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, tasks.TypeNotificationDelivery, enq.tasks[0].Type())

	parsed, err := tasks.ParseNotificationPayload(enq.tasks[0].Payload())
	require.NoError(t, err)
	assert.Equal(t, n.UserID, parsed.Notification.UserID)
	assert.Equal(t, n.Type, parsed.Notification.Type)

	enq.err = errors.New("redis unavailable")
	assert.Error(t, sink.Send(context.Background(), n))
}

func TestHubNotificationSink_NoConnections(t *testing.T) {
	hub := notify.NewHub(logger.NewNop())
	sink := NewHubNotificationSink(hub, logger.NewNop())

	n := domain.Notification{UserID: uuid.New(), Type: domain.NotificationKicked}
	assert.NoError(t, sink.Send(context.Background(), n))

	raw, err := json.Marshal(n)
	require.NoError(t, err)
	assert.Zero(t, hub.Deliver(n.UserID, raw))
}

type recordingAuditRepo struct {
	events []domain.AuditEvent
}

func (r *recordingAuditRepo) Append(ctx context.Context, event *domain.AuditEvent) error {
	r.events = append(r.events, *event)
	return nil
}

func TestAuditSink_DefaultsActorRole(t *testing.T) {
	repo := &recordingAuditRepo{}
	sink := NewAuditSink(repo, logger.NewNop())

	require.NoError(t, sink.Record(context.Background(), domain.AuditEvent{Action: domain.EventTypeRoomJoined}))
	require.NoError(t, sink.Record(context.Background(), domain.AuditEvent{Action: domain.EventTypeRoomEnded, ActorRole: domain.ActorRoleSystem}))

	require.Len(t, repo.events, 2)
	assert.Equal(t, domain.ActorRoleUser, repo.events[0].ActorRole)
	assert.Equal(t, domain.ActorRoleSystem, repo.events[1].ActorRole)
}
