// Package protocol defines the wire messages exchanged with game clients.
// Every message is a JSON object tagged by its "at" discriminator.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/kinglands/rooms/internal/v1/game"
)

// Inbound message kinds.
const (
	KindAuth  = "auth"
	KindColor = "color"
	KindReady = "ready"
	KindMove  = "move"
	KindChat  = "chat"

	KindPlayers = "players"
	KindStart   = "start"
	KindUpdate  = "update"
)

// Inbound is the union of all client messages. Fields are populated
// according to At; Raw preserves the original bytes for verbatim relay.
type Inbound struct {
	At string `json:"at"`

	// auth
	Token string `json:"token,omitempty"`

	// color
	Color *int `json:"color,omitempty"`

	// move
	Previous *game.Point `json:"previous,omitempty"`
	Current  *game.Point `json:"current,omitempty"`

	// chat
	UserID    int    `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// ParseInbound decodes a client frame. The payload must be a JSON object
// with a non-empty "at" tag.
func ParseInbound(data []byte) (Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return Inbound{}, fmt.Errorf("protocol: decode message: %w", err)
	}
	if msg.At == "" {
		return Inbound{}, fmt.Errorf("protocol: message without at tag")
	}
	msg.Raw = json.RawMessage(data)
	return msg, nil
}

// PlayerData is one roster entry.
type PlayerData struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Color    int    `json:"color"`
	Status   string `json:"status"`
}

// GameStat is the per-player score line sent with every update.
type GameStat struct {
	Fields int `json:"fields"`
	Power  int `json:"power"`
}

// UpdateStat serializes as the two-element array [PlayerData, GameStat].
type UpdateStat struct {
	Player PlayerData
	Stat   GameStat
}

func (s UpdateStat) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Player, s.Stat})
}

func (s *UpdateStat) UnmarshalJSON(data []byte) error {
	var parts [2]json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[0], &s.Player); err != nil {
		return err
	}
	return json.Unmarshal(parts[1], &s.Stat)
}

// AuthConfirm acknowledges a successful handshake.
type AuthConfirm struct {
	At     string `json:"at"`
	Status bool   `json:"status"`
}

// NewAuthConfirm builds the handshake acknowledgement.
func NewAuthConfirm(status bool) AuthConfirm {
	return AuthConfirm{At: KindAuth, Status: status}
}

// Players is the roster broadcast.
type Players struct {
	At      string       `json:"at"`
	Players []PlayerData `json:"players"`
}

// NewPlayers builds a roster broadcast.
func NewPlayers(players []PlayerData) Players {
	return Players{At: KindPlayers, Players: players}
}

// Start announces that the game loop has begun.
type Start struct {
	At string `json:"at"`
}

// NewStart builds the start announcement.
func NewStart() Start {
	return Start{At: KindStart}
}

// Update carries one player's view of the map after a turn.
type Update struct {
	At         string       `json:"at"`
	Map        game.GameMap `json:"map"`
	Turn       int          `json:"turn"`
	Stat       UpdateStat   `json:"stat"`
	Cursor     *game.Point  `json:"cursor,omitempty"`
	PrevCursor *game.Point  `json:"prev_cursor,omitempty"`
}
