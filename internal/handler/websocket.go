package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/service"
	"room_coordinator/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub       *notify.Hub
	lifecycle service.LifecycleManager
	log       logger.Logger
}

func NewWebSocketHandler(hub *notify.Hub, lifecycle service.LifecycleManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		lifecycle: lifecycle,
		log:       log,
	}
}

// HandleNotifications подписывает пользователя на уведомления.
// С room_id соединение считается присутствием в комнате: подключение отмечает
// участника онлайн, закрытие последнего соединения - офлайн.
func (h *WebSocketHandler) HandleNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	roomID := uuid.Nil
	if raw := c.Query("room_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
			return
		}
		if err := h.lifecycle.Heartbeat(c.Request.Context(), id, userID); err != nil {
			respondError(c, h.log, err)
			return
		}
		roomID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	notify.NewClient(h.hub, conn, userID, roomID).Run()
	h.log.Debug("Notification subscriber connected", "user_id", userID, "room_id", roomID)
}
