// Package transport is the WebSocket edge: it upgrades connections, parses
// the join parameters, and drives the room lifecycle for each connection,
// mapping every failure to its close code.
package transport

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kinglands/rooms/internal/v1/auth"
	"github.com/kinglands/rooms/internal/v1/directory"
	"github.com/kinglands/rooms/internal/v1/logging"
	"github.com/kinglands/rooms/internal/v1/manager"
	"github.com/kinglands/rooms/internal/v1/ratelimit"
	"github.com/kinglands/rooms/internal/v1/room"
)

// Close codes sent to clients. Codes in the 4xxx range are
// application-defined; 1008 is the standard policy-violation code used for
// replica redirects.
const (
	CloseWrongReplica  = websocket.ClosePolicyViolation
	CloseNoSlots       = 4010
	CloseRoomInGame    = 4020
	CloseTokenInvalid  = 4030
	CloseWrongAuthFlow = 4031
	CloseRoomNotFound  = 4040
	CloseUnexpected    = 4999
)

// Hub routes WebSocket connections to rooms.
type Hub struct {
	manager     *manager.RoomManager
	validator   auth.TokenValidator
	rateLimiter *ratelimit.RateLimiter
	upgrader    websocket.Upgrader
}

// NewHub creates the WebSocket edge over the room manager.
func NewHub(mgr *manager.RoomManager, validator auth.TokenValidator, rl *ratelimit.RateLimiter, allowedOrigins []string) *Hub {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origins[origin] = true
	}
	return &Hub{
		manager:     mgr,
		validator:   validator,
		rateLimiter: rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin header.
				return origin == "" || origins[origin] || origins["*"]
			},
		},
	}
}

// ServeWs handles GET /ws/rooms/:room_key/?user_id=<int>&username=<str>.
func (h *Hub) ServeWs(c *gin.Context) {
	if !h.rateLimiter.CheckWebSocket(c) {
		return
	}

	roomKey := c.Param("room_key")
	username := c.Query("username")
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID <= 0 || username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and username are required"})
		return
	}

	ctx := logging.WithRoom(logging.WithUser(c.Request.Context(), strconv.Itoa(userID)), roomKey)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Warn(ctx, "websocket upgrade failed", zap.Error(err))
		return
	}

	player := room.NewPlayer(userID, username, conn, h.validator)

	gameRoom, err := h.manager.GetOrCreateRoom(ctx, roomKey)
	if err != nil {
		h.closeWithError(ctx, player, err)
		return
	}
	defer h.manager.Cleanup(ctx, gameRoom, player)

	if err := h.manager.PlayWithRoom(ctx, gameRoom, player); err != nil {
		h.closeWithError(ctx, player, err)
		return
	}
	player.Close(websocket.CloseNormalClosure, "")
}

func (h *Hub) closeWithError(ctx context.Context, player *room.Player, err error) {
	code, reason := closeCodeFor(err)
	if code == CloseUnexpected {
		logging.Error(ctx, "connection failed", zap.Error(err))
	} else {
		logging.Info(ctx, "connection rejected", zap.Int("code", code), zap.Error(err))
	}
	player.Close(code, reason)
}

func closeCodeFor(err error) (int, string) {
	switch {
	case errors.Is(err, manager.ErrWrongReplica):
		return CloseWrongReplica, "room on different replica"
	case errors.Is(err, room.ErrRoomNoSlots):
		return CloseNoSlots, "there is not slots"
	case errors.Is(err, room.ErrRoomInGame):
		return CloseRoomInGame, "room is in game"
	case errors.Is(err, room.ErrTokenInvalid):
		return CloseTokenInvalid, "auth error"
	case errors.Is(err, room.ErrWrongAuthFlow):
		return CloseWrongAuthFlow, "auth flow error"
	case errors.Is(err, directory.ErrRoomNotFound):
		return CloseRoomNotFound, "room not found"
	case errors.Is(err, room.ErrPlayerLeft):
		return websocket.CloseNormalClosure, ""
	default:
		return CloseUnexpected, "something wrong"
	}
}
