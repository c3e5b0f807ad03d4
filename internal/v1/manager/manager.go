// Package manager composes the live rooms of this replica with the shared
// directory: materializing rooms on first connect, routing misplaced
// connects back to the owning replica, and tearing rooms down when they
// empty out.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kinglands/rooms/internal/v1/directory"
	"github.com/kinglands/rooms/internal/v1/game"
	"github.com/kinglands/rooms/internal/v1/logging"
	"github.com/kinglands/rooms/internal/v1/metrics"
	"github.com/kinglands/rooms/internal/v1/room"
)

// ErrWrongReplica means the room lives on another replica; the edge tier
// should re-resolve and redirect the client.
var ErrWrongReplica = errors.New("manager: room is owned by another replica")

// ErrInvalidSeed rejects a room seed that fails map validation.
var ErrInvalidSeed = errors.New("manager: invalid room seed")

// RoomManager is the per-replica registry of live rooms.
type RoomManager struct {
	replicaID string
	settings  room.Settings

	rooms    *directory.Rooms
	replicas *directory.Replicas
	lobby    *directory.Lobby

	mu    sync.Mutex
	cache map[string]*room.GameRoom
}

// New creates a manager over the directory repositories.
func New(replicaID string, settings room.Settings, rooms *directory.Rooms, replicas *directory.Replicas, lobby *directory.Lobby) *RoomManager {
	return &RoomManager{
		replicaID: replicaID,
		settings:  settings,
		rooms:     rooms,
		replicas:  replicas,
		lobby:     lobby,
		cache:     make(map[string]*room.GameRoom),
	}
}

// SaveRoom validates and persists a new room seed, returning its key.
func (m *RoomManager) SaveRoom(ctx context.Context, mm game.MapAndMeta) (string, error) {
	if err := mm.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return m.rooms.Save(ctx, mm)
}

// ListLobby returns up to limit joinable rooms, newest first.
func (m *RoomManager) ListLobby(ctx context.Context, limit int) ([]directory.LobbyRoom, error) {
	return m.lobby.List(ctx, limit)
}

// GetOrCreateRoom resolves a room key to a live room on this replica. A
// room claimed by another replica is rejected before its blob is touched.
func (m *RoomManager) GetOrCreateRoom(ctx context.Context, roomKey string) (*room.GameRoom, error) {
	replica, err := m.replicas.Get(ctx, roomKey)
	if err != nil {
		return nil, err
	}
	if replica != "" && replica != m.replicaID {
		return nil, fmt.Errorf("%w: %s", ErrWrongReplica, replica)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.cache[roomKey]; ok {
		return r, nil
	}

	mm, err := m.rooms.Load(ctx, roomKey)
	if err != nil {
		return nil, err
	}

	r := room.NewGameRoom(roomKey, mm, m.settings)
	m.cache[roomKey] = r
	metrics.ActiveRooms.Inc()

	if err := m.replicas.Claim(ctx, roomKey, m.replicaID); err != nil {
		delete(m.cache, roomKey)
		metrics.ActiveRooms.Dec()
		return nil, err
	}
	if err := m.lobby.Add(ctx, roomKey, r.MaxPlayers()); err != nil {
		logging.Error(ctx, "failed to publish room to lobby", zap.Error(err))
	}
	return r, nil
}

// PlayWithRoom runs the whole lifecycle for one connection: join and wait
// for readiness, drop the room from the lobby once it starts, then drive
// the game to its end.
func (m *RoomManager) PlayWithRoom(ctx context.Context, r *room.GameRoom, player *room.Player) error {
	if err := m.lobby.IncrPlayers(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "failed to count player into lobby", zap.Error(err))
	}

	if err := r.WaitAllReady(ctx, player); err != nil {
		if lerr := m.lobby.DecrPlayers(ctx, r.RoomKey); lerr != nil {
			logging.Error(ctx, "failed to uncount player from lobby", zap.Error(lerr))
		}
		return err
	}
	if err := m.lobby.Remove(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "failed to unpublish started room", zap.Error(err))
	}

	if err := r.Play(ctx, player); err != nil {
		return err
	}
	return r.AfterPlay(ctx, player)
}

// Cleanup releases one connection's hold on a room. Every step is best
// effort. When the room can no longer be rejoined, or nobody is left, the
// room and its directory entries are removed.
func (m *RoomManager) Cleanup(ctx context.Context, r *room.GameRoom, player *room.Player) {
	if r == nil {
		return
	}

	if err := m.lobby.DecrPlayers(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "cleanup: lobby decrement failed", zap.Error(err))
	}

	if player != nil {
		if err := player.StopListening(ctx); err != nil {
			logging.Error(ctx, "cleanup: stop listening failed", zap.Error(err))
		}
		r.Disconnect(ctx, player)
	}

	if r.PlayerCount() > 0 {
		return
	}

	if err := m.rooms.Remove(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "cleanup: room blob removal failed", zap.Error(err))
	}
	if err := m.replicas.Release(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "cleanup: replica release failed", zap.Error(err))
	}
	if err := m.lobby.Remove(ctx, r.RoomKey); err != nil {
		logging.Error(ctx, "cleanup: lobby removal failed", zap.Error(err))
	}

	r.Cleanup(ctx)

	m.mu.Lock()
	if _, ok := m.cache[r.RoomKey]; ok {
		delete(m.cache, r.RoomKey)
		metrics.ActiveRooms.Dec()
	}
	m.mu.Unlock()
}
