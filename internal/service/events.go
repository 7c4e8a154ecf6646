package service

import (
	"context"
	"sync"
	"time"

	"room_coordinator/internal/domain"
	"room_coordinator/pkg/logger"
)

// AuditSink принимает события аудита
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// NotificationSink передает уведомление пользователю
type NotificationSink interface {
	Send(ctx context.Context, n domain.Notification) error
}

// Event - последствия одного зафиксированного изменения: запись аудита и уведомления.
type Event struct {
	Audit         *domain.AuditEvent
	Notifications []domain.Notification
}

// eventBatch копит события внутри критической секции
type eventBatch []Event

func (b *eventBatch) add(e Event) {
	*b = append(*b, e)
}

const sinkTimeout = 5 * time.Second

// EventDispatcher доставляет события в порядке поступления одной горутиной.
// Ошибки приемников только логируются: изменение уже зафиксировано.
type EventDispatcher struct {
	audit  AuditSink
	notify NotificationSink
	log    logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}
	once   sync.Once
}

func NewEventDispatcher(audit AuditSink, notify NotificationSink, buffer int, log logger.Logger) *EventDispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &EventDispatcher{
		audit:  audit,
		notify: notify,
		log:    log.With("component", "event_dispatcher"),
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

func (d *EventDispatcher) Start() {
	d.once.Do(func() {
		go d.run()
	})
}

// Emit ставит события в очередь и никогда не блокирует вызывающего.
// Вызывается только после освобождения блокировки комнаты. При заполненной
// очереди и после Close события отбрасываются с записью в лог.
func (d *EventDispatcher) Emit(events ...Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		if len(events) > 0 {
			d.log.Warn("Dispatcher closed, dropping events", "count", len(events))
		}
		return
	}
	for i, e := range events {
		select {
		case d.queue <- e:
		default:
			d.log.Error("Event queue is full, dropping events", "count", len(events)-i, "capacity", cap(d.queue))
			return
		}
	}
}

// Close прекращает прием событий и ждет доставки уже поставленных в очередь
func (d *EventDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	// если Start не вызывался, разбираем очередь здесь
	d.once.Do(func() {
		go d.run()
	})
	<-d.done
}

func (d *EventDispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.deliver(e)
	}
}

func (d *EventDispatcher) deliver(e Event) {
	if e.Audit != nil && d.audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := d.audit.Record(ctx, *e.Audit); err != nil {
			d.log.Error("Failed to record audit event", "error", err, "action", e.Audit.Action, "entity_id", e.Audit.EntityID)
		}
		cancel()
	}

	if d.notify == nil {
		return
	}
	for _, n := range e.Notifications {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		if err := d.notify.Send(ctx, n); err != nil {
			d.log.Error("Failed to send notification", "error", err, "type", n.Type, "user_id", n.UserID)
		}
		cancel()
	}
}
