package room

import (
	"context"
	"math/rand"
	"sync"

	"github.com/kinglands/rooms/internal/v1/game"
	"github.com/kinglands/rooms/internal/v1/protocol"
)

// waitingState gathers players before the game: slot and color allocation,
// readiness tracking, and the barrier every connector blocks on until the
// whole room is ready.
type waitingState struct {
	room   *GameRoom
	cond   *sync.Cond
	colors []*Player
}

func newWaitingState(r *GameRoom) *waitingState {
	return &waitingState{
		room:   r,
		cond:   sync.NewCond(&r.mu),
		colors: make([]*Player, r.settings.ColorsCount),
	}
}

func (w *waitingState) allowReconnect() bool { return true }

func (w *waitingState) connect(ctx context.Context, player *Player) error {
	if err := player.Authenticate(ctx); err != nil {
		return err
	}

	r := w.room
	r.mu.Lock()
	if err := w.takeSlotLocked(player); err != nil {
		r.mu.Unlock()
		return err
	}
	w.takeColorLocked(player, game.ColorUnset)
	r.registerLocked(player)
	r.mu.Unlock()

	player.StartListening(ctx)
	r.Broadcast(ctx, r.rosterMessage())

	r.mu.Lock()
	for !w.allReadyLocked() && r.players[player.ID] == player {
		w.cond.Wait()
	}
	left := r.players[player.ID] != player
	if !left && r.status == GameWaiting && len(r.players) > 0 {
		r.transitionToLocked(GameInProgress)
	}
	r.mu.Unlock()

	if left {
		return ErrPlayerLeft
	}
	return nil
}

func (w *waitingState) handleMessage(ctx context.Context, player *Player, msg protocol.Inbound) {
	r := w.room
	switch msg.At {
	case protocol.KindColor:
		if msg.Color == nil {
			return
		}
		r.mu.Lock()
		w.swapColorLocked(player, *msg.Color)
		r.mu.Unlock()
		r.Broadcast(ctx, r.rosterMessage())
	case protocol.KindReady:
		player.SetReady()
		r.Broadcast(ctx, r.rosterMessage())
		r.mu.Lock()
		if w.allReadyLocked() {
			w.cond.Broadcast()
		}
		r.mu.Unlock()
	}
}

func (w *waitingState) disconnect(ctx context.Context, player *Player) {
	r := w.room
	r.mu.Lock()
	delete(r.players, player.ID)
	w.releaseColorLocked(player)
	w.releaseSlotLocked(player)
	w.cond.Broadcast()
	r.mu.Unlock()

	r.Broadcast(ctx, r.rosterMessage())
}

func (w *waitingState) play(context.Context, *Player) error      { return ErrRoomNotReady }
func (w *waitingState) afterPlay(context.Context, *Player) error { return ErrRoomNotReady }

func (w *waitingState) cleanup(ctx context.Context) {
	for _, player := range w.room.playersSnapshot() {
		_ = player.StopListening(ctx)
	}
}

// takeSlotLocked pops a random free spawn slot and seeds the player's king
// there. Caller holds the room lock.
func (w *waitingState) takeSlotLocked(player *Player) error {
	r := w.room
	if len(r.slots) == 0 {
		return ErrRoomNoSlots
	}

	i := rand.Intn(len(r.slots))
	slot := r.slots[i]
	r.slots[i] = r.slots[len(r.slots)-1]
	r.slots = r.slots[:len(r.slots)-1]

	h, width := r.gameMap.Dimensions()
	player.BindMap(h, width)
	player.SetInitPoint(slot)

	cell := &r.gameMap[slot.Row][slot.Col]
	cell.Type = game.CellKing
	cell.Player = player.ID
	cell.Power = r.settings.KingPower
	return nil
}

// releaseSlotLocked returns the player's spawn to the pool and resets the
// cell. Caller holds the room lock.
func (w *waitingState) releaseSlotLocked(player *Player) {
	slot, ok := player.InitPoint()
	if !ok {
		return
	}
	r := w.room
	r.slots = append(r.slots, slot)
	r.gameMap[slot.Row][slot.Col] = game.Cell{Type: game.CellSpawn}
	player.ClearInitPoint()
}

// takeColorLocked assigns the requested color if free, or the first free
// color when none is requested. Caller holds the room lock.
func (w *waitingState) takeColorLocked(player *Player, requested int) {
	color := requested
	if color == game.ColorUnset {
		color = w.firstFreeColorLocked()
	}
	if color < 0 || color >= len(w.colors) {
		return
	}
	if w.colors[color] == nil {
		w.colors[color] = player
		player.SetColor(color)
	}
}

// swapColorLocked moves the player to the requested color. An occupied or
// out-of-range request leaves the current color in place, so no two players
// ever hold the same color. Caller holds the room lock.
func (w *waitingState) swapColorLocked(player *Player, requested int) {
	if requested < 0 || requested >= len(w.colors) || w.colors[requested] != nil {
		return
	}
	w.releaseColorLocked(player)
	w.colors[requested] = player
	player.SetColor(requested)
}

func (w *waitingState) releaseColorLocked(player *Player) {
	color := player.Color()
	if color >= 0 && color < len(w.colors) && w.colors[color] == player {
		w.colors[color] = nil
	}
}

func (w *waitingState) firstFreeColorLocked() int {
	for c, owner := range w.colors {
		if owner == nil {
			return c
		}
	}
	return game.ColorUnset
}

// allReadyLocked is the barrier predicate: more than one player and all of
// them ready. Caller holds the room lock.
func (w *waitingState) allReadyLocked() bool {
	if len(w.room.players) <= 1 {
		return false
	}
	for _, player := range w.room.players {
		if !player.IsReady() {
			return false
		}
	}
	return true
}
