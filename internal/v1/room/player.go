package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kinglands/rooms/internal/v1/auth"
	"github.com/kinglands/rooms/internal/v1/game"
	"github.com/kinglands/rooms/internal/v1/logging"
	"github.com/kinglands/rooms/internal/v1/metrics"
	"github.com/kinglands/rooms/internal/v1/protocol"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// MessageHandler is installed by the room to receive inbound messages.
type MessageHandler func(ctx context.Context, player *Player, msg protocol.Inbound)

// DisconnectHandler is installed by the room to observe transport failures.
type DisconnectHandler func(ctx context.Context, player *Player)

// Player is one connected user in one room: the simulation state plus the
// connection, its read loop and its single-writer outbound pump. A Player
// lives for exactly one connection; a reconnecting user gets a fresh one.
type Player struct {
	*game.PlayerState

	conn      wsConnection
	validator auth.TokenValidator

	mu           sync.RWMutex
	closed       bool
	listening    bool
	closeCode    int
	closeReason  string
	onMessage    MessageHandler
	onDisconnect DisconnectHandler

	closeOnce sync.Once
	send      chan []byte
	readDone  chan struct{}
}

// NewPlayer wraps a connection. The write pump starts immediately so the
// auth confirmation can be sent; the read loop starts after registration.
func NewPlayer(id int, nick string, conn wsConnection, validator auth.TokenValidator) *Player {
	p := &Player{
		PlayerState: game.NewPlayerState(id, nick),
		conn:        conn,
		validator:   validator,
		send:        make(chan []byte, sendBufferSize),
		readDone:    make(chan struct{}),
	}
	metrics.IncConnection()
	go p.writePump()
	return p
}

// SetMessageHandler installs the inbound dispatch target.
func (p *Player) SetMessageHandler(h MessageHandler) {
	p.mu.Lock()
	p.onMessage = h
	p.mu.Unlock()
}

// SetDisconnectHandler installs the transport-failure callback.
func (p *Player) SetDisconnectHandler(h DisconnectHandler) {
	p.mu.Lock()
	p.onDisconnect = h
	p.mu.Unlock()
}

// Authenticate performs the handshake: the first inbound message must be an
// auth message whose token the auth service accepts. On success the client
// receives an auth confirmation.
func (p *Player) Authenticate(ctx context.Context) error {
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("room: read auth message: %w", err)
	}
	msg, err := protocol.ParseInbound(data)
	if err != nil || msg.At != protocol.KindAuth {
		return ErrWrongAuthFlow
	}

	valid, err := p.validator.Validate(ctx, msg.Token)
	if err != nil {
		return fmt.Errorf("room: token validation: %w", err)
	}
	if !valid {
		return ErrTokenInvalid
	}

	p.Send(ctx, protocol.NewAuthConfirm(true))
	return nil
}

// StartListening launches the inbound read loop.
func (p *Player) StartListening(ctx context.Context) {
	p.mu.Lock()
	if p.listening {
		p.mu.Unlock()
		return
	}
	p.listening = true
	p.mu.Unlock()
	go p.readLoop(ctx)
}

// WaitMessages blocks until the read loop exits. Returns immediately when
// the loop was never started.
func (p *Player) WaitMessages(ctx context.Context) error {
	p.mu.RLock()
	listening := p.listening
	p.mu.RUnlock()
	if !listening {
		return nil
	}
	select {
	case <-p.readDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopListening flips the player to STOPPED, closes the connection to
// unblock the reader, and waits for the loop to exit.
func (p *Player) StopListening(ctx context.Context) error {
	p.SetStopped()
	_ = p.conn.Close()
	return p.WaitMessages(ctx)
}

func (p *Player) readLoop(ctx context.Context) {
	defer close(p.readDone)

	for p.Status() != game.StatusStopped {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if p.Status() == game.StatusStopped {
				return
			}
			logging.Info(ctx, "player connection lost",
				zap.Int("player_id", p.ID), zap.Error(err))
			p.mu.RLock()
			h := p.onDisconnect
			p.mu.RUnlock()
			if h != nil {
				h(ctx, p)
			}
			return
		}

		msg, err := protocol.ParseInbound(data)
		if err != nil {
			logging.Warn(ctx, "dropping malformed message",
				zap.Int("player_id", p.ID), zap.Error(err))
			continue
		}
		if p.Status() == game.StatusStopped {
			return
		}

		p.mu.RLock()
		h := p.onMessage
		p.mu.RUnlock()
		if h != nil {
			h(ctx, p, msg)
		}
	}
}

// Send serializes the message and queues it for the write pump. Messages to
// a closed player or a full queue are dropped with a log line.
func (p *Player) Send(ctx context.Context, message any) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		logging.Error(ctx, "failed to marshal outbound message",
			zap.Int("player_id", p.ID), zap.Error(err))
		return
	}
	p.SendRaw(ctx, data)
}

// SendRaw queues pre-serialized bytes (used for verbatim chat relay).
func (p *Player) SendRaw(ctx context.Context, data []byte) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return
	}
	p.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Warn(ctx, "send raced player close",
				zap.Int("player_id", p.ID), zap.Any("panic", r))
		}
	}()

	select {
	case p.send <- data:
	default:
		logging.Warn(ctx, "player send queue full, dropping message",
			zap.Int("player_id", p.ID))
	}
}

// Close drains the outbound queue, emits a close frame with the given code
// and shuts the connection down. Idempotent.
func (p *Player) Close(code int, reason string) {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.closeCode = code
		p.closeReason = reason
		p.mu.Unlock()
		close(p.send)
	})
}

func (p *Player) writePump() {
	defer func() {
		p.conn.Close()
		metrics.DecConnection()
	}()

	for message := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "error writing message",
				zap.Int("player_id", p.ID), zap.Error(err))
			return
		}
	}

	p.mu.RLock()
	code, reason := p.closeCode, p.closeReason
	p.mu.RUnlock()
	if code == 0 {
		code = websocket.CloseNormalClosure
	}
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
