package handlers

import (
	"errors"
	"net/http"

	"faciliroom/internal/services"
	"faciliroom/internal/ws"

	"github.com/gin-gonic/gin"
)

type RoomHandler struct {
	roomService *services.RoomService
	hub         *ws.Hub
}

func NewRoomHandler(roomService *services.RoomService, hub *ws.Hub) *RoomHandler {
	return &RoomHandler{roomService: roomService, hub: hub}
}

type CreateRoomRequest struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
}

type JoinRoomRequest struct {
	Username string `json:"username" binding:"required,min=1,max=100"`
}

type UpdateSettingsRequest struct {
	Topic    string `json:"topic" binding:"required"`
	Duration int    `json:"duration" binding:"required,min=1"`
}

// CreateRoom godoc
// @Summary      Create a discussion room
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body CreateRoomRequest true "Creator display name"
// @Success      201 {object} models.Room
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	uid := c.GetString("uid")
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(uid, req.Username)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, room)
}

// GetRoom godoc
// @Summary      Get room metadata and agenda
// @Tags         rooms
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} models.Room
// @Failure      404 {object} ErrorResponse
// @Router       /rooms/{id} [get]
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, room)
}

// JoinRoom godoc
// @Summary      Join a room as a participant
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body JoinRoomRequest true "Display name"
// @Success      200 {object} models.Room
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/join [post]
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	uid := c.GetString("uid")
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	room, err := h.roomService.JoinRoom(c.Param("id"), uid, req.Username)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	h.hub.Broadcast(room.ID, ws.WSMessage{Type: "room_update", Data: room})

	c.JSON(http.StatusOK, room)
}

// UpdateSettings godoc
// @Summary      Save topic and duration, generate the agenda, start the discussion
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        id path string true "Room ID"
// @Param        request body UpdateSettingsRequest true "Topic and total duration in minutes"
// @Success      200 {object} models.Room
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/settings [post]
func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	uid := c.GetString("uid")
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	room, err := h.roomService.UpdateSettings(c.Param("id"), uid, req.Topic, req.Duration)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	// Clients waiting on the setup screen learn about the agenda and the
	// status change from this push, not from polling.
	h.hub.Broadcast(room.ID, ws.WSMessage{Type: "room_update", Data: room})

	c.JSON(http.StatusOK, room)
}

// FinishRoom godoc
// @Summary      Mark the discussion finished
// @Tags         rooms
// @Produce      json
// @Param        id path string true "Room ID"
// @Success      200 {object} MessageResponse
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /rooms/{id}/finish [post]
func (h *RoomHandler) FinishRoom(c *gin.Context) {
	roomID := c.Param("id")
	if err := h.roomService.FinishDiscussion(roomID); err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	if room, err := h.roomService.GetRoom(roomID); err == nil {
		h.hub.Broadcast(roomID, ws.WSMessage{Type: "room_update", Data: room})
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "discussion finished"})
}
