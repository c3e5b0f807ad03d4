// Package room implements the live game room: the player connections, the
// Waiting / InProgress / Finished state machine, and the broadcast fanout.
// The simulation itself lives in the game package; this package feeds it
// players and carries its output back to the connections.
package room

import (
	"context"
	"sort"
	"sync"

	"github.com/kinglands/rooms/internal/v1/game"
	"github.com/kinglands/rooms/internal/v1/metrics"
	"github.com/kinglands/rooms/internal/v1/protocol"
)

// GameStatus identifies the room lifecycle state. The numeric values are
// exported as the per-room game_state metric.
type GameStatus int

const (
	GameWaiting GameStatus = iota + 1
	GameInProgress
	GameFinished
)

// Settings carries the game constants a room is materialized with.
type Settings struct {
	KingPower   int
	CastlePower int
	ColorsCount int
}

// roomState is one variant of the lifecycle state machine. Each public room
// operation dispatches to the current variant.
type roomState interface {
	handleMessage(ctx context.Context, player *Player, msg protocol.Inbound)
	connect(ctx context.Context, player *Player) error
	play(ctx context.Context, player *Player) error
	afterPlay(ctx context.Context, player *Player) error
	disconnect(ctx context.Context, player *Player)
	cleanup(ctx context.Context)
	allowReconnect() bool
}

// GameRoom owns the authoritative map, the connected players and the state
// machine. All mutable room state is guarded by mu; the tick strategy holds
// the same lock for the whole turn, so connects and disconnects never
// observe a half-applied tick.
type GameRoom struct {
	RoomKey string

	mu       sync.Mutex
	gameMap  game.GameMap
	meta     game.MapMeta
	slots    []game.Point
	players  map[int]*Player
	settings Settings

	states map[GameStatus]roomState
	state  roomState
	status GameStatus
}

// NewGameRoom materializes a room from its immutable seed. Castle cells are
// seeded with the default castle power; spawn points become the slot pool.
func NewGameRoom(roomKey string, mm game.MapAndMeta, settings Settings) *GameRoom {
	r := &GameRoom{
		RoomKey:  roomKey,
		gameMap:  prepareMap(mm.Map, settings.CastlePower),
		meta:     mm.Meta,
		slots:    append([]game.Point(nil), mm.Spawns()...),
		players:  make(map[int]*Player),
		settings: settings,
	}
	r.states = map[GameStatus]roomState{
		GameWaiting:    newWaitingState(r),
		GameInProgress: newInProgressState(r),
		GameFinished:   &finishedState{room: r},
	}
	r.status = GameWaiting
	r.state = r.states[GameWaiting]
	metrics.GameState.WithLabelValues(roomKey).Set(float64(GameWaiting))
	return r
}

func prepareMap(m game.GameMap, castlePower int) game.GameMap {
	for row := range m {
		for col := range m[row] {
			if m[row][col].Type == game.CellCastle {
				m[row][col].Power = castlePower
			}
		}
	}
	return m
}

// Status returns the current lifecycle state.
func (r *GameRoom) Status() GameStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// PlayerCount returns the number of connected players.
func (r *GameRoom) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// AllowReconnect reports whether a user may reconnect in the current state.
func (r *GameRoom) AllowReconnect() bool {
	return r.currentState().allowReconnect()
}

// MaxPlayers is the number of spawn points the map declared.
func (r *GameRoom) MaxPlayers() int {
	return len(r.meta.PointsOfInterest[game.CellSpawn])
}

// WaitAllReady runs the joining flow for the player: authenticate, take a
// slot and color, then block until the game starts (or the player leaves).
func (r *GameRoom) WaitAllReady(ctx context.Context, player *Player) error {
	return r.currentState().connect(ctx, player)
}

// Play runs the in-game flow: broadcast start, drive the loop to the end.
func (r *GameRoom) Play(ctx context.Context, player *Player) error {
	return r.currentState().play(ctx, player)
}

// AfterPlay drains the player's inbound loop once the game has finished.
func (r *GameRoom) AfterPlay(ctx context.Context, player *Player) error {
	return r.currentState().afterPlay(ctx, player)
}

// Disconnect removes the player per the current state's rules.
func (r *GameRoom) Disconnect(ctx context.Context, player *Player) {
	r.currentState().disconnect(ctx, player)
}

// Cleanup stops the tick loop and every inbound loop. Safe to call in any
// state and more than once.
func (r *GameRoom) Cleanup(ctx context.Context) {
	for _, state := range r.states {
		state.cleanup(ctx)
	}
	metrics.GameState.DeleteLabelValues(r.RoomKey)
}

// HandlePlayerMessage dispatches one inbound message. Chat is relayed to
// the whole room verbatim regardless of state.
func (r *GameRoom) HandlePlayerMessage(ctx context.Context, player *Player, msg protocol.Inbound) {
	if msg.At == protocol.KindChat {
		r.BroadcastRaw(ctx, msg.Raw)
		return
	}
	r.currentState().handleMessage(ctx, player, msg)
}

// Broadcast sends one message to every connected player.
func (r *GameRoom) Broadcast(ctx context.Context, message any) {
	for _, player := range r.playersSnapshot() {
		player.Send(ctx, message)
	}
}

// BroadcastFunc sends a per-player message to every connected player.
func (r *GameRoom) BroadcastFunc(ctx context.Context, build func(player *Player) any) {
	for _, player := range r.playersSnapshot() {
		player.Send(ctx, build(player))
	}
}

// BroadcastRaw relays pre-serialized bytes to every connected player.
func (r *GameRoom) BroadcastRaw(ctx context.Context, data []byte) {
	for _, player := range r.playersSnapshot() {
		player.SendRaw(ctx, data)
	}
}

func (r *GameRoom) currentState() roomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// transitionToLocked switches the lifecycle state. Caller holds r.mu.
func (r *GameRoom) transitionToLocked(status GameStatus) {
	r.status = status
	r.state = r.states[status]
	metrics.GameState.WithLabelValues(r.RoomKey).Set(float64(status))
}

// registerLocked adds the player and wires their handlers to this room.
// Caller holds r.mu.
func (r *GameRoom) registerLocked(player *Player) {
	r.players[player.ID] = player
	player.SetMessageHandler(r.HandlePlayerMessage)
	player.SetDisconnectHandler(r.Disconnect)
}

func (r *GameRoom) playersSnapshot() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Player, 0, len(r.players))
	for _, player := range r.players {
		out = append(out, player)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// playerStatesLocked projects the connected players to their simulation
// state. Called by the strategy while it holds r.mu.
func (r *GameRoom) playerStatesLocked() map[int]*game.PlayerState {
	out := make(map[int]*game.PlayerState, len(r.players))
	for id, player := range r.players {
		out[id] = player.PlayerState
	}
	return out
}

// rosterMessage builds the players broadcast, ordered by player id.
func (r *GameRoom) rosterMessage() protocol.Players {
	players := r.playersSnapshot()
	data := make([]protocol.PlayerData, 0, len(players))
	for _, player := range players {
		data = append(data, protocol.PlayerData{
			ID:       player.ID,
			Username: player.Nick,
			Color:    player.Color(),
			Status:   string(player.Status()),
		})
	}
	return protocol.NewPlayers(data)
}
