package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/service"
	"room_coordinator/pkg/logger"
)

const (
	ActionRecoverAll  = "recover_all"
	ActionRecoverRoom = "recover_room"
	ActionCleanup     = "cleanup"
)

// RecoveryHandler - административная поверхность восстановления комнат
type RecoveryHandler struct {
	recovery service.RecoveryManager
	log      logger.Logger
}

func NewRecoveryHandler(recovery service.RecoveryManager, log logger.Logger) *RecoveryHandler {
	return &RecoveryHandler{
		recovery: recovery,
		log:      log,
	}
}

type RecoveryRequest struct {
	Action string `json:"action" binding:"required"`
	RoomID string `json:"roomId"`
}

type RecoveryResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Results []domain.RecoveryResult `json:"results,omitempty"`
}

func (h *RecoveryHandler) Trigger(c *gin.Context) {
	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case ActionRecoverAll:
		results, err := h.recovery.RecoverAllRooms(ctx)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		c.JSON(http.StatusOK, RecoveryResponse{
			Success: true,
			Message: fmt.Sprintf("processed %d rooms, %d failed", len(results), failed),
			Results: results,
		})

	case ActionRecoverRoom:
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "valid roomId is required for recover_room"})
			return
		}
		result, err := h.recovery.RecoverRoom(ctx, roomID, domain.RecoveryReasonManual)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, RecoveryResponse{
			Success: true,
			Message: "room " + roomID.String() + " processed: " + result.Reason,
			Results: []domain.RecoveryResult{*result},
		})

	case ActionCleanup:
		purged, err := h.recovery.CleanupOldRecoveryData(ctx)
		if err != nil {
			respondError(c, h.log, err)
			return
		}
		c.JSON(http.StatusOK, RecoveryResponse{
			Success: true,
			Message: fmt.Sprintf("purged %d recovery records", purged),
		})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action " + req.Action})
	}
}

func (h *RecoveryHandler) Stats(c *gin.Context) {
	stats, err := h.recovery.GetRecoveryStats(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
