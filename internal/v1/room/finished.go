package room

import (
	"context"

	"github.com/kinglands/rooms/internal/v1/protocol"
)

// finishedState is terminal: no connects, no play. afterPlay lets each
// connection drain its inbound loop before the manager tears the room down.
type finishedState struct {
	room *GameRoom
}

func (f *finishedState) allowReconnect() bool { return false }

func (f *finishedState) handleMessage(context.Context, *Player, protocol.Inbound) {}

func (f *finishedState) connect(context.Context, *Player) error {
	return ErrRoomNotReady
}

func (f *finishedState) play(context.Context, *Player) error {
	return ErrRoomNotReady
}

func (f *finishedState) afterPlay(ctx context.Context, player *Player) error {
	return player.WaitMessages(ctx)
}

func (f *finishedState) disconnect(_ context.Context, player *Player) {
	r := f.room
	r.mu.Lock()
	delete(r.players, player.ID)
	r.mu.Unlock()
}

func (f *finishedState) cleanup(ctx context.Context) {
	for _, player := range f.room.playersSnapshot() {
		_ = player.StopListening(ctx)
	}
}
