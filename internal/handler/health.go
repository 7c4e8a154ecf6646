package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"room_coordinator/internal/config"
)

type HealthHandler struct {
	environment string
	storage     string
}

func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{
		environment: cfg.Environment,
		storage:     cfg.Database.Driver,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "room-coordinator",
		"environment": h.environment,
		"storage":     h.storage,
	})
}
