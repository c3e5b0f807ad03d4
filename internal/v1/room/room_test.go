package room

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinglands/rooms/internal/v1/auth"
	"github.com/kinglands/rooms/internal/v1/game"
)

type joiner struct {
	player *Player
	conn   *fakeConn
	result chan error
	done   chan struct{}
}

func newTestRoom(t *testing.T) *GameRoom {
	t.Helper()
	r := NewGameRoom("test-room", testSeed(), testSettings())
	t.Cleanup(func() { r.Cleanup(context.Background()) })
	return r
}

// join connects a player, pushes the auth handshake and waits until the
// roster broadcast confirms registration. WaitAllReady keeps blocking on the
// readiness barrier in the background.
func join(t *testing.T, r *GameRoom, id int) *joiner {
	t.Helper()
	j := dial(t, r, id)
	waitFor(t, "roster broadcast", func() bool { return j.conn.countAt("players") >= 1 })
	return j
}

func dial(t *testing.T, r *GameRoom, id int) *joiner {
	t.Helper()
	conn := newFakeConn()
	p := NewPlayer(id, fmt.Sprintf("player-%d", id), conn, &auth.MockValidator{})

	conn.push(`{"at":"auth","token":"tok"}`)
	j := &joiner{
		player: p,
		conn:   conn,
		result: make(chan error, 1),
		done:   make(chan struct{}),
	}
	go func() {
		j.result <- r.WaitAllReady(context.Background(), p)
		close(j.done)
	}()

	// Closing the connection kicks any connector still parked on the
	// readiness barrier out through the disconnect path.
	t.Cleanup(func() {
		conn.Close()
		select {
		case <-j.done:
		case <-time.After(3 * time.Second):
			t.Error("connector goroutine did not exit")
		}
		p.Close(websocket.CloseNormalClosure, "")
		_ = p.StopListening(context.Background())
	})
	return j
}

func (j *joiner) awaitResult(t *testing.T) error {
	t.Helper()
	select {
	case err := <-j.result:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("WaitAllReady did not return")
		return nil
	}
}

func startGame(t *testing.T, r *GameRoom) (*joiner, *joiner) {
	t.Helper()
	a := join(t, r, 1)
	b := join(t, r, 2)

	a.conn.push(`{"at":"ready"}`)
	b.conn.push(`{"at":"ready"}`)

	require.NoError(t, a.awaitResult(t))
	require.NoError(t, b.awaitResult(t))
	require.Equal(t, GameInProgress, r.Status())
	return a, b
}

func TestRoomJoinAssignsSlotAndColor(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)
	b := join(t, r, 2)

	assert.Equal(t, 2, r.PlayerCount())
	assert.Equal(t, 2, r.MaxPlayers())

	// Distinct colors from the pool.
	assert.GreaterOrEqual(t, a.player.Color(), 0)
	assert.GreaterOrEqual(t, b.player.Color(), 0)
	assert.NotEqual(t, a.player.Color(), b.player.Color())

	// Each player holds one of the two spawn points, seeded as their king.
	spawnA, ok := a.player.InitPoint()
	require.True(t, ok)
	spawnB, ok := b.player.InitPoint()
	require.True(t, ok)
	assert.NotEqual(t, spawnA, spawnB)

	cell := r.gameMap[spawnA.Row][spawnA.Col]
	assert.Equal(t, game.CellKing, cell.Type)
	assert.Equal(t, a.player.ID, cell.Player)
	assert.Equal(t, 12, cell.Power)
}

func TestRoomRejectsWhenFull(t *testing.T) {
	r := newTestRoom(t)
	join(t, r, 1)
	join(t, r, 2)

	c := dial(t, r, 3)
	assert.ErrorIs(t, c.awaitResult(t), ErrRoomNoSlots)
	assert.Equal(t, 2, r.PlayerCount())
}

func TestRoomColorRequest(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)

	a.conn.push(`{"at":"color","color":3}`)
	waitFor(t, "color change", func() bool { return a.player.Color() == 3 })

	// The change is announced to the room.
	waitFor(t, "roster rebroadcast", func() bool { return a.conn.countAt("players") >= 2 })
}

func TestRoomColorRequestOccupiedKeepsCurrent(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)
	b := join(t, r, 2)
	require.Equal(t, 0, a.player.Color())
	require.Equal(t, 1, b.player.Color())

	// Requesting an occupied color is refused and frees nothing.
	before := a.conn.countAt("players")
	a.conn.push(`{"at":"color","color":1}`)
	waitFor(t, "roster rebroadcast", func() bool { return a.conn.countAt("players") > before })
	assert.Equal(t, 0, a.player.Color())
	assert.Equal(t, 1, b.player.Color())

	// The refused request did not free a's color either.
	before = b.conn.countAt("players")
	b.conn.push(`{"at":"color","color":0}`)
	waitFor(t, "roster rebroadcast", func() bool { return b.conn.countAt("players") > before })
	assert.Equal(t, 0, a.player.Color())
	assert.Equal(t, 1, b.player.Color())
}

func TestRoomWaitingDisconnectReleasesSlot(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)

	a.conn.Close()
	assert.ErrorIs(t, a.awaitResult(t), ErrPlayerLeft)
	assert.Equal(t, 0, r.PlayerCount())

	// The freed slot and color are available to the next player.
	b := join(t, r, 2)
	assert.GreaterOrEqual(t, b.player.Color(), 0)
	_, ok := b.player.InitPoint()
	assert.True(t, ok)
	assert.Equal(t, 1, r.PlayerCount())
}

func TestRoomChatRelayedVerbatim(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)
	b := join(t, r, 2)

	chat := `{"at":"chat","user_id":1,"username":"player-1","message":"gl hf","timestamp":"2026-01-01T00:00:00Z","extra":"kept"}`
	a.conn.push(chat)

	for _, j := range []*joiner{a, b} {
		waitFor(t, "chat relay", func() bool { return j.conn.countAt("chat") == 1 })
		var relayed []byte
		for _, data := range j.conn.textFrames() {
			var tag struct {
				At string `json:"at"`
			}
			if json.Unmarshal(data, &tag) == nil && tag.At == "chat" {
				relayed = data
			}
		}
		assert.JSONEq(t, chat, string(relayed))
	}
}

func TestRoomStartsWhenAllReady(t *testing.T) {
	r := newTestRoom(t)
	a, b := startGame(t, r)

	playDoneA := make(chan error, 1)
	playDoneB := make(chan error, 1)
	go func() { playDoneA <- r.Play(context.Background(), a.player) }()
	go func() { playDoneB <- r.Play(context.Background(), b.player) }()

	// One start announcement per client, then per-player updates at tick
	// cadence.
	waitFor(t, "start broadcast", func() bool {
		return a.conn.countAt("start") == 1 && b.conn.countAt("start") == 1
	})
	waitFor(t, "first update", func() bool {
		return a.conn.countAt("update") >= 1 && b.conn.countAt("update") >= 1
	})

	var update struct {
		At   string            `json:"at"`
		Map  game.GameMap      `json:"map"`
		Turn int               `json:"turn"`
		Stat [2]map[string]any `json:"stat"`
	}
	for _, data := range a.conn.textFrames() {
		var tag struct {
			At string `json:"at"`
		}
		if json.Unmarshal(data, &tag) == nil && tag.At == "update" {
			require.NoError(t, json.Unmarshal(data, &update))
			break
		}
	}
	assert.GreaterOrEqual(t, update.Turn, 1)
	assert.Len(t, update.Map, 4)
	assert.EqualValues(t, 1, update.Stat[0]["id"])
	assert.EqualValues(t, 1, update.Stat[1]["fields"])

	r.Cleanup(context.Background())
	require.NoError(t, <-playDoneA)
	require.NoError(t, <-playDoneB)
}

func TestRoomRejectsConnectWhileInProgress(t *testing.T) {
	r := newTestRoom(t)
	startGame(t, r)

	assert.False(t, r.AllowReconnect())

	c := dial(t, r, 3)
	assert.ErrorIs(t, c.awaitResult(t), ErrRoomInGame)
}

func TestRoomPlayBeforeStartFails(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)

	assert.ErrorIs(t, r.Play(context.Background(), a.player), ErrRoomNotReady)
	assert.ErrorIs(t, r.AfterPlay(context.Background(), a.player), ErrRoomNotReady)
}

func TestRoomDoesNotStartWithSinglePlayer(t *testing.T) {
	r := newTestRoom(t)
	a := join(t, r, 1)

	a.conn.push(`{"at":"ready"}`)
	waitFor(t, "ready applied", func() bool { return a.player.IsReady() })

	// One ready player is not enough.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, GameWaiting, r.Status())
	select {
	case err := <-a.result:
		t.Fatalf("WaitAllReady returned early: %v", err)
	default:
	}
}
