package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"room_coordinator/internal/config"
	"room_coordinator/internal/middleware"
	"room_coordinator/internal/notify"
	"room_coordinator/internal/service"
	apperrors "room_coordinator/pkg/errors"
	"room_coordinator/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Room      *RoomHandler
	Recovery  *RecoveryHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *notify.Hub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Room:      NewRoomHandler(services.Lifecycle, log),
		Recovery:  NewRecoveryHandler(services.Recovery, log),
		WebSocket: NewWebSocketHandler(hub, services.Lifecycle, log),
	}
}

// respondError переводит ошибку ядра в HTTP-ответ {"error": ...}
func respondError(c *gin.Context, log logger.Logger, err error) {
	status := apperrors.HTTPStatusFromError(err)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, gin.H{"error": apperrors.PublicMessage(err)})
}

func roomIDParam(c *gin.Context) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room ID"})
		return uuid.Nil, false
	}
	return roomID, true
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		return uuid.Nil, false
	}
	return userID, true
}
