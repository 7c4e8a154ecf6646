package notify

import (
	"sync"

	"github.com/google/uuid"
	"room_coordinator/pkg/logger"
)

// DisconnectFunc вызывается, когда закрыто последнее соединение пользователя для комнаты
type DisconnectFunc func(roomID, userID uuid.UUID)

// Hub хранит websocket-соединения пользователей и доставляет им уведомления
type Hub struct {
	mu           sync.RWMutex
	clients      map[uuid.UUID]map[*Client]struct{}
	onDisconnect DisconnectFunc
	log          logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*Client]struct{}),
		log:     log,
	}
}

// OnDisconnect задает обработчик ухода пользователя из комнаты; вызывать до Register
func (h *Hub) OnDisconnect(fn DisconnectFunc) {
	h.mu.Lock()
	h.onDisconnect = fn
	h.mu.Unlock()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.log.Debug("Client registered", "user_id", c.userID, "room_id", c.roomID, "connections", len(set))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, c)
	close(c.send)

	lastForRoom := c.roomID != uuid.Nil
	for other := range set {
		if other.roomID == c.roomID {
			lastForRoom = false
			break
		}
	}
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	fn := h.onDisconnect
	h.mu.Unlock()

	h.log.Debug("Client unregistered", "user_id", c.userID, "room_id", c.roomID)
	if lastForRoom && fn != nil {
		fn(c.roomID, c.userID)
	}
}

// Deliver отправляет сообщение во все соединения пользователя и возвращает
// число соединений, принявших его. Медленный клиент теряет сообщение.
func (h *Hub) Deliver(userID uuid.UUID, message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.clients[userID] {
		select {
		case c.send <- message:
			delivered++
		default:
			h.log.Warn("Client send buffer full, dropping notification", "user_id", userID)
		}
	}
	return delivered
}

// Connections - число активных соединений пользователя
func (h *Hub) Connections(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
