package room

import (
	"context"
	"sync"

	"github.com/kinglands/rooms/internal/v1/game"
	"github.com/kinglands/rooms/internal/v1/metrics"
	"github.com/kinglands/rooms/internal/v1/protocol"
)

// inProgressState drives the tick loop. Connects are rejected; disconnects
// remove the player but leave their territory on the map for the takeover
// rule to claim later.
type inProgressState struct {
	room     *GameRoom
	strategy *game.ClassicStrategy
	loop     *game.Loop

	startOnce sync.Once
}

func newInProgressState(r *GameRoom) *inProgressState {
	s := &inProgressState{room: r}
	s.strategy = game.NewClassicStrategy(r.gameMap, r.playerStatesLocked, &r.mu)
	s.strategy.SetOnTurnDone(s.broadcastState)
	s.strategy.SetOnGameDone(s.nextState)
	s.loop = game.NewLoop(s.strategy)
	return s
}

func (s *inProgressState) allowReconnect() bool { return false }

func (s *inProgressState) connect(context.Context, *Player) error {
	return ErrRoomInGame
}

func (s *inProgressState) handleMessage(_ context.Context, player *Player, msg protocol.Inbound) {
	if msg.At == protocol.KindMove {
		player.Move(msg.Previous, msg.Current)
	}
}

func (s *inProgressState) play(ctx context.Context, _ *Player) error {
	s.startOnce.Do(func() {
		s.room.Broadcast(ctx, protocol.NewStart())
		s.loop.Start()
	})
	return s.loop.Wait(ctx)
}

func (s *inProgressState) afterPlay(context.Context, *Player) error {
	return ErrRoomNotReady
}

func (s *inProgressState) disconnect(_ context.Context, player *Player) {
	r := s.room
	r.mu.Lock()
	delete(r.players, player.ID)
	empty := len(r.players) == 0
	r.mu.Unlock()

	// Nobody left to win: stop the loop so the last handler can unwind.
	if empty {
		s.loop.Stop()
	}
}

func (s *inProgressState) cleanup(ctx context.Context) {
	s.loop.Stop()
	for _, player := range s.room.playersSnapshot() {
		_ = player.StopListening(ctx)
	}
}

func (s *inProgressState) broadcastState(turn int) {
	ctx := context.Background()
	s.room.BroadcastFunc(ctx, func(player *Player) any {
		return s.updateMessage(player, turn)
	})
}

func (s *inProgressState) updateMessage(player *Player, turn int) protocol.Update {
	fields := player.Territory().Count()
	metrics.TerritorySize.Observe(float64(fields))

	msg := protocol.Update{
		At:   protocol.KindUpdate,
		Map:  player.POV(),
		Turn: turn,
		Stat: protocol.UpdateStat{
			Player: protocol.PlayerData{
				ID:       player.ID,
				Username: player.Nick,
				Color:    player.Color(),
				Status:   string(player.Status()),
			},
			Stat: protocol.GameStat{
				Fields: fields,
				Power:  player.Power(s.room.gameMap),
			},
		},
	}
	if cursor, ok := player.Cursor(); ok {
		msg.Cursor = &cursor
	}
	if prev, ok := player.PrevCursor(); ok {
		msg.PrevCursor = &prev
	}
	return msg
}

func (s *inProgressState) nextState() {
	r := s.room
	r.mu.Lock()
	r.transitionToLocked(GameFinished)
	r.mu.Unlock()
}
