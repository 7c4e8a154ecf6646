package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "room_coordinator/pkg/errors"
)

func TestRoomLocks_TimeoutIsRoomBusy(t *testing.T) {
	locks := newRoomLocks(20 * time.Millisecond)
	room := uuid.New()

	release, err := locks.acquire(context.Background(), room)
	require.NoError(t, err)

	_, err = locks.acquire(context.Background(), room)
	assert.ErrorIs(t, err, apperrors.ErrRoomBusy)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	// другие комнаты не затронуты
	other, err := locks.acquire(context.Background(), uuid.New())
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := locks.acquire(context.Background(), room)
	require.NoError(t, err)
	again()
}

func TestRoomLocks_CallerCancellation(t *testing.T) {
	locks := newRoomLocks(time.Second)
	room := uuid.New()

	release, err := locks.acquire(context.Background(), room)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locks.acquire(ctx, room)
	assert.ErrorIs(t, err, context.Canceled)
}
