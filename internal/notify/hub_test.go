package notify

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room_coordinator/pkg/logger"
)

// клиент без соединения: hub работает только с каналом send
func testClient(h *Hub, userID, roomID uuid.UUID) *Client {
	return &Client{hub: h, userID: userID, roomID: roomID, send: make(chan []byte, 1)}
}

func TestHub_DeliverToAllConnections(t *testing.T) {
	h := NewHub(logger.NewNop())
	user := uuid.New()
	a := testClient(h, user, uuid.Nil)
	b := testClient(h, user, uuid.Nil)
	h.Register(a)
	h.Register(b)

	assert.Equal(t, 2, h.Deliver(user, []byte("hello")))
	assert.Equal(t, "hello", string(<-a.send))
	assert.Equal(t, "hello", string(<-b.send))

	assert.Zero(t, h.Deliver(uuid.New(), []byte("nobody")))
}

func TestHub_SlowClientDropsMessage(t *testing.T) {
	h := NewHub(logger.NewNop())
	user := uuid.New()
	c := testClient(h, user, uuid.Nil)
	h.Register(c)

	assert.Equal(t, 1, h.Deliver(user, []byte("first")))
	assert.Equal(t, 0, h.Deliver(user, []byte("second")))
}

func TestHub_DisconnectFiresOnLastRoomConnection(t *testing.T) {
	h := NewHub(logger.NewNop())
	user, room := uuid.New(), uuid.New()

	var calls []uuid.UUID
	h.OnDisconnect(func(roomID, userID uuid.UUID) {
		assert.Equal(t, user, userID)
		calls = append(calls, roomID)
	})

	first := testClient(h, user, room)
	second := testClient(h, user, room)
	h.Register(first)
	h.Register(second)

	h.Unregister(first)
	assert.Empty(t, calls)
	assert.Equal(t, 1, h.Connections(user))

	h.Unregister(second)
	require.Len(t, calls, 1)
	assert.Equal(t, room, calls[0])
	assert.Zero(t, h.Connections(user))

	// повторная отмена регистрации безопасна
	h.Unregister(second)
	assert.Len(t, calls, 1)
}
