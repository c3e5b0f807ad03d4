// Package api is the HTTP admin surface: room creation and the lobby list.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kinglands/rooms/internal/v1/game"
	"github.com/kinglands/rooms/internal/v1/logging"
	"github.com/kinglands/rooms/internal/v1/manager"
)

const (
	defaultLobbyLimit = 50
	maxLobbyLimit     = 50
)

// Handler serves the rooms API over the room manager.
type Handler struct {
	manager *manager.RoomManager
}

// NewHandler creates the API handler.
func NewHandler(mgr *manager.RoomManager) *Handler {
	return &Handler{manager: mgr}
}

// RegisterRoutes mounts the rooms endpoints on a router group.
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/rooms/", h.CreateRoom)
	group.GET("/rooms/", h.ListRooms)
}

// CreateRoom persists a validated map seed and returns its room key.
func (h *Handler) CreateRoom(c *gin.Context) {
	var mm game.MapAndMeta
	if err := c.ShouldBindJSON(&mm); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid map payload"})
		return
	}

	roomKey, err := h.manager.SaveRoom(c.Request.Context(), mm)
	if err != nil {
		if errors.Is(err, manager.ErrInvalidSeed) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		logging.Error(c.Request.Context(), "failed to save room", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save room"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"room_key": roomKey})
}

// ListRooms returns the joinable rooms, newest first.
func (h *Handler) ListRooms(c *gin.Context) {
	limit := defaultLobbyLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxLobbyLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be in [1, 50]"})
			return
		}
		limit = parsed
	}

	rooms, err := h.manager.ListLobby(c.Request.Context(), limit)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to list lobby", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list rooms"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}
