package room

import (
	"context"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinglands/rooms/internal/v1/auth"
	"github.com/kinglands/rooms/internal/v1/protocol"
)

func newTestPlayer(t *testing.T, id int) (*Player, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	p := NewPlayer(id, "tester", conn, &auth.MockValidator{Denied: map[string]bool{"bad": true}})
	t.Cleanup(func() {
		p.Close(websocket.CloseNormalClosure, "")
		_ = p.StopListening(context.Background())
	})
	return p, conn
}

func TestAuthenticateSuccess(t *testing.T) {
	p, conn := newTestPlayer(t, 1)
	conn.push(`{"at":"auth","token":"good"}`)

	require.NoError(t, p.Authenticate(context.Background()))

	waitFor(t, "auth confirmation", func() bool { return conn.countAt("auth") == 1 })
	frames := conn.textFrames()
	assert.JSONEq(t, `{"at":"auth","status":true}`, string(frames[0]))
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	p, conn := newTestPlayer(t, 1)
	conn.push(`{"at":"auth","token":"bad"}`)

	assert.ErrorIs(t, p.Authenticate(context.Background()), ErrTokenInvalid)
	assert.Empty(t, conn.textFrames())
}

func TestAuthenticateRejectsWrongFirstMessage(t *testing.T) {
	p, conn := newTestPlayer(t, 1)
	conn.push(`{"at":"ready"}`)

	assert.ErrorIs(t, p.Authenticate(context.Background()), ErrWrongAuthFlow)
}

func TestAuthenticateRejectsGarbage(t *testing.T) {
	p, conn := newTestPlayer(t, 1)
	conn.push(`not json`)

	assert.ErrorIs(t, p.Authenticate(context.Background()), ErrWrongAuthFlow)
}

func TestReadLoopDispatchesMessages(t *testing.T) {
	p, conn := newTestPlayer(t, 1)

	got := make(chan protocol.Inbound, 1)
	p.SetMessageHandler(func(_ context.Context, _ *Player, msg protocol.Inbound) {
		got <- msg
	})
	p.StartListening(context.Background())

	conn.push(`{"at":"move","previous":{"row":0,"col":0},"current":{"row":0,"col":1}}`)

	waitFor(t, "dispatched message", func() bool { return len(got) == 1 })
	msg := <-got
	assert.Equal(t, protocol.KindMove, msg.At)
	require.NotNil(t, msg.Previous)
	assert.Equal(t, 0, msg.Previous.Row)
	require.NotNil(t, msg.Current)
	assert.Equal(t, 1, msg.Current.Col)
}

func TestReadLoopSkipsMalformedFrames(t *testing.T) {
	p, conn := newTestPlayer(t, 1)

	got := make(chan protocol.Inbound, 2)
	p.SetMessageHandler(func(_ context.Context, _ *Player, msg protocol.Inbound) {
		got <- msg
	})
	p.StartListening(context.Background())

	conn.push(`garbage`)
	conn.push(`{"no_at_tag":true}`)
	conn.push(`{"at":"ready"}`)

	waitFor(t, "the valid message", func() bool { return len(got) == 1 })
	msg := <-got
	assert.Equal(t, protocol.KindReady, msg.At)
}

func TestReadLoopReportsDisconnect(t *testing.T) {
	p, conn := newTestPlayer(t, 1)

	disconnected := make(chan struct{})
	p.SetDisconnectHandler(func(context.Context, *Player) {
		close(disconnected)
	})
	p.StartListening(context.Background())

	conn.Close()

	waitFor(t, "disconnect callback", func() bool {
		select {
		case <-disconnected:
			return true
		default:
			return false
		}
	})
}

func TestStopListeningIsNotADisconnect(t *testing.T) {
	p, conn := newTestPlayer(t, 1)

	var disconnects int
	p.SetDisconnectHandler(func(context.Context, *Player) { disconnects++ })
	p.StartListening(context.Background())

	require.NoError(t, p.StopListening(context.Background()))
	assert.Zero(t, disconnects)

	// The loop is down; queued frames stay unread.
	conn.push(`{"at":"ready"}`)
	require.NoError(t, p.WaitMessages(context.Background()))
}

func TestWaitMessagesWithoutListening(t *testing.T) {
	p, _ := newTestPlayer(t, 1)
	assert.NoError(t, p.WaitMessages(context.Background()))
}

func TestSendAfterCloseIsDropped(t *testing.T) {
	p, conn := newTestPlayer(t, 1)

	p.Close(4010, "room is full")
	waitFor(t, "close frame", func() bool { return conn.closeCode() != 0 })

	// Must not panic or write anything further.
	p.Send(context.Background(), protocol.NewStart())
	p.SendRaw(context.Background(), []byte(`{"at":"chat"}`))

	assert.Equal(t, 4010, conn.closeCode())
	assert.Empty(t, conn.textFrames())
}

func TestCloseDefaultsToNormalClosure(t *testing.T) {
	p, conn := newTestPlayer(t, 1)

	p.Send(context.Background(), protocol.NewStart())
	waitFor(t, "queued frame", func() bool { return conn.countAt("start") == 1 })

	p.Close(0, "")
	waitFor(t, "close frame", func() bool { return conn.closeCode() != 0 })
	assert.Equal(t, websocket.CloseNormalClosure, conn.closeCode())
}
