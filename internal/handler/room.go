package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"room_coordinator/internal/domain"
	"room_coordinator/internal/service"
	"room_coordinator/pkg/logger"
)

type RoomHandler struct {
	lifecycle service.LifecycleManager
	log       logger.Logger
}

func NewRoomHandler(lifecycle service.LifecycleManager, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		lifecycle: lifecycle,
		log:       log,
	}
}

type CreateRoomRequest struct {
	Name                string `json:"name" binding:"required"`
	IsPrivate           bool   `json:"is_private"`
	Password            string `json:"password"`
	MaxParticipants     int    `json:"max_participants"`
	AllowJoinInProgress bool   `json:"allow_join_in_progress"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.lifecycle.CreateRoom(c.Request.Context(), service.CreateRoomRequest{
		HostUserID:          userID,
		Name:                req.Name,
		IsPrivate:           req.IsPrivate,
		Password:            req.Password,
		MaxParticipants:     req.MaxParticipants,
		AllowJoinInProgress: req.AllowJoinInProgress,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

type JoinRoomRequest struct {
	RoomCode string `json:"room_code" binding:"required"`
	Password string `json:"password"`
}

func (h *RoomHandler) Join(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, participant, err := h.lifecycle.Join(c.Request.Context(), service.JoinRequest{
		RoomCode: req.RoomCode,
		UserID:   userID,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":        room,
		"participant": participant,
	})
}

func (h *RoomHandler) GetByID(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	room, err := h.lifecycle.GetRoom(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) GetParticipants(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	participants, err := h.lifecycle.ListParticipants(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	online, err := h.lifecycle.CollaboratorCount(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participants": participants,
		"online":       online,
	})
}

func (h *RoomHandler) Leave(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Leave(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "left the room"})
}

func (h *RoomHandler) Heartbeat(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Heartbeat(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type statusChange func(c *gin.Context, roomID, userID uuid.UUID) (*domain.Room, error)

func (h *RoomHandler) changeStatus(c *gin.Context, change statusChange) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	room, err := change(c, roomID, userID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) Start(c *gin.Context) {
	h.changeStatus(c, func(c *gin.Context, roomID, userID uuid.UUID) (*domain.Room, error) {
		return h.lifecycle.StartGame(c.Request.Context(), roomID, userID)
	})
}

func (h *RoomHandler) Pause(c *gin.Context) {
	h.changeStatus(c, func(c *gin.Context, roomID, userID uuid.UUID) (*domain.Room, error) {
		return h.lifecycle.PauseGame(c.Request.Context(), roomID, userID)
	})
}

func (h *RoomHandler) Resume(c *gin.Context) {
	h.changeStatus(c, func(c *gin.Context, roomID, userID uuid.UUID) (*domain.Room, error) {
		return h.lifecycle.ResumeGame(c.Request.Context(), roomID, userID)
	})
}

func (h *RoomHandler) End(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	if err := h.lifecycle.EndRoom(c.Request.Context(), roomID, domain.UserActor(userID)); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "room ended"})
}

type TransferHostRequest struct {
	NewHostUserID string `json:"newHostUserId" binding:"required"`
}

func (h *RoomHandler) TransferHost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req TransferHostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newHost, err := uuid.Parse(req.NewHostUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid newHostUserId"})
		return
	}

	if err := h.lifecycle.TransferHost(c.Request.Context(), roomID, domain.UserActor(userID), newHost); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "host transferred"})
}

type KickRequest struct {
	TargetUserID string `json:"targetUserId" binding:"required"`
}

func (h *RoomHandler) Kick(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req KickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetUserId is required"})
		return
	}
	target, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid targetUserId"})
		return
	}

	if err := h.lifecycle.Kick(c.Request.Context(), roomID, userID, target); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "player kicked"})
}

type VisibilityRequest struct {
	IsPrivate *bool `json:"is_private" binding:"required"`
}

func (h *RoomHandler) ChangeVisibility(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.lifecycle.ChangeVisibility(c.Request.Context(), roomID, userID, *req.IsPrivate)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

type PasswordRequest struct {
	// пустой пароль снимает защиту
	Password string `json:"password"`
}

func (h *RoomHandler) ChangePassword(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}
	var req PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.lifecycle.ChangePassword(c.Request.Context(), roomID, userID, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, room)
}
