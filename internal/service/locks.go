package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	apperrors "room_coordinator/pkg/errors"
)

// roomLocks - эксклюзивная блокировка на каждую комнату с ограниченным ожиданием
type roomLocks struct {
	mu      sync.Mutex
	locks   map[uuid.UUID]*semaphore.Weighted
	timeout time.Duration
}

func newRoomLocks(timeout time.Duration) *roomLocks {
	return &roomLocks{
		locks:   make(map[uuid.UUID]*semaphore.Weighted),
		timeout: timeout,
	}
}

func (l *roomLocks) get(roomID uuid.UUID) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.locks[roomID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[roomID] = sem
	}
	return sem
}

// acquire ждет блокировку не дольше timeout. Истечение таймаута дает ErrRoomBusy,
// отмена вызывающего контекста возвращается как есть.
func (l *roomLocks) acquire(ctx context.Context, roomID uuid.UUID) (func(), error) {
	sem := l.get(roomID)

	waitCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.ErrRoomBusy
		}
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

// forget удаляет блокировку завершенной комнаты. Ожидающие на старом семафоре
// прочитают статус ENDED и завершатся без изменений.
func (l *roomLocks) forget(roomID uuid.UUID) {
	l.mu.Lock()
	delete(l.locks, roomID)
	l.mu.Unlock()
}
