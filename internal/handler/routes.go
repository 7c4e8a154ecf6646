package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes подключает API к роутеру. auth проверяет токен, admin ограничивает
// административные маршруты, limit применяется к изменяющим запросам.
func (h *Handlers) RegisterRoutes(router gin.IRouter, auth, admin, limit gin.HandlerFunc) {
	router.GET("/health", h.Health.Check)

	v1 := router.Group("/api/v1")
	v1.Use(auth)
	{
		rooms := v1.Group("/rooms")
		{
			rooms.POST("", limit, h.Room.Create)
			rooms.POST("/join", limit, h.Room.Join)
			rooms.GET("/:id", h.Room.GetByID)
			rooms.GET("/:id/participants", h.Room.GetParticipants)
			rooms.POST("/:id/leave", limit, h.Room.Leave)
			rooms.POST("/:id/heartbeat", h.Room.Heartbeat)
			rooms.POST("/:id/start", limit, h.Room.Start)
			rooms.POST("/:id/pause", limit, h.Room.Pause)
			rooms.POST("/:id/resume", limit, h.Room.Resume)
			rooms.POST("/:id/end", limit, h.Room.End)
			rooms.POST("/:id/transfer-host", limit, h.Room.TransferHost)
			rooms.POST("/:id/kick", limit, h.Room.Kick)
			rooms.PUT("/:id/visibility", limit, h.Room.ChangeVisibility)
			rooms.PUT("/:id/password", limit, h.Room.ChangePassword)
		}

		recovery := v1.Group("/admin/recovery")
		recovery.Use(admin)
		{
			recovery.POST("", h.Recovery.Trigger)
			recovery.GET("/stats", h.Recovery.Stats)
		}
	}

	// токен для websocket можно передать в query-параметре token
	router.GET("/ws/notifications", auth, h.WebSocket.HandleNotifications)
}
