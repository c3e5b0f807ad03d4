package directory

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lobbyIndexKey   = "lobby:rooms"
	lobbyRoomPrefix = "lobby:room:"
)

// LobbyRoom is one joinable room as shown in the public lobby list.
type LobbyRoom struct {
	Name           string `json:"name"`
	MaxPlayers     int    `json:"max_players"`
	CurrentPlayers int    `json:"current_players"`
}

// Lobby is the public index of joinable rooms: a sorted set keyed by
// creation time plus a per-room hash with the population counters. Rooms
// drop out of the lobby when their game starts or they are torn down.
type Lobby struct {
	store *Store
	ttl   time.Duration
}

// NewLobby creates the lobby repository.
func NewLobby(store *Store, ttl time.Duration) *Lobby {
	return &Lobby{store: store, ttl: ttl}
}

func (l *Lobby) roomKey(roomKey string) string {
	return lobbyRoomPrefix + roomKey
}

// Add publishes a room to the lobby with zero current players.
func (l *Lobby) Add(ctx context.Context, roomKey string, maxPlayers int) error {
	_, err := l.store.execute("lobby_add", func() (any, error) {
		pipe := l.store.client.TxPipeline()
		pipe.ZAdd(ctx, lobbyIndexKey, redis.Z{
			Score:  float64(time.Now().Unix()),
			Member: roomKey,
		})
		pipe.HSet(ctx, l.roomKey(roomKey), map[string]any{
			"name":            roomKey,
			"max_players":     maxPlayers,
			"current_players": 0,
		})
		pipe.Expire(ctx, l.roomKey(roomKey), l.ttl)
		pipe.Expire(ctx, lobbyIndexKey, l.ttl)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return err
}

// IncrPlayers bumps the room's connected-player counter.
func (l *Lobby) IncrPlayers(ctx context.Context, roomKey string) error {
	return l.addPlayers(ctx, roomKey, 1)
}

// DecrPlayers drops the room's connected-player counter.
func (l *Lobby) DecrPlayers(ctx context.Context, roomKey string) error {
	return l.addPlayers(ctx, roomKey, -1)
}

func (l *Lobby) addPlayers(ctx context.Context, roomKey string, delta int64) error {
	_, err := l.store.execute("lobby_players", func() (any, error) {
		return nil, l.store.client.HIncrBy(ctx, l.roomKey(roomKey), "current_players", delta).Err()
	})
	return err
}

// Remove takes the room out of the lobby.
func (l *Lobby) Remove(ctx context.Context, roomKey string) error {
	_, err := l.store.execute("lobby_remove", func() (any, error) {
		pipe := l.store.client.TxPipeline()
		pipe.ZRem(ctx, lobbyIndexKey, roomKey)
		pipe.Del(ctx, l.roomKey(roomKey))
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	return err
}

// List returns up to limit lobby rooms, newest first. Rooms whose hash has
// expired are skipped.
func (l *Lobby) List(ctx context.Context, limit int) ([]LobbyRoom, error) {
	res, err := l.store.execute("lobby_list", func() (any, error) {
		return l.store.client.ZRevRange(ctx, lobbyIndexKey, 0, int64(limit)-1).Result()
	})
	if err != nil {
		return nil, err
	}

	keys := res.([]string)
	rooms := make([]LobbyRoom, 0, len(keys))
	for _, key := range keys {
		res, err := l.store.execute("lobby_room", func() (any, error) {
			return l.store.client.HGetAll(ctx, l.roomKey(key)).Result()
		})
		if err != nil {
			return nil, err
		}
		fields := res.(map[string]string)
		if len(fields) == 0 {
			continue
		}
		maxPlayers, _ := strconv.Atoi(fields["max_players"])
		current, _ := strconv.Atoi(fields["current_players"])
		rooms = append(rooms, LobbyRoom{
			Name:           fields["name"],
			MaxPlayers:     maxPlayers,
			CurrentPlayers: current,
		})
	}
	return rooms, nil
}
