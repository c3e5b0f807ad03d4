package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kinglands/rooms/internal/v1/game"
)

const (
	roomCounterKey = "__pk:rooms"
	roomKeyPrefix  = "__rooms:"
)

// Rooms is the room blob repository: serialized MapAndMeta seeds keyed by
// room key, each with the room TTL.
type Rooms struct {
	store *Store
	keys  *KeyCodec
	ttl   time.Duration
}

// NewRooms creates the blob repository.
func NewRooms(store *Store, keys *KeyCodec, ttl time.Duration) *Rooms {
	return &Rooms{store: store, keys: keys, ttl: ttl}
}

func (r *Rooms) blobKey(roomKey string) string {
	return roomKeyPrefix + roomKey
}

// Save allocates the next room key from the shared counter and persists the
// encoded seed under it. A key that still maps to a live blob, possible only
// if the counter was rewound, is rejected with ErrRoomAlreadyExists.
func (r *Rooms) Save(ctx context.Context, mm game.MapAndMeta) (string, error) {
	pk, err := r.store.execute("next_room_id", func() (any, error) {
		return r.store.client.Incr(ctx, roomCounterKey).Result()
	})
	if err != nil {
		return "", err
	}

	roomKey, err := r.keys.Encode(uint64(pk.(int64)))
	if err != nil {
		return "", err
	}

	data, err := game.EncodeMapAndMeta(mm)
	if err != nil {
		return "", fmt.Errorf("directory: encode room %s: %w", roomKey, err)
	}

	stored, err := r.store.execute("save_room", func() (any, error) {
		return r.store.client.SetNX(ctx, r.blobKey(roomKey), data, r.ttl).Result()
	})
	if err != nil {
		return "", err
	}
	if !stored.(bool) {
		return "", fmt.Errorf("%w: %s", ErrRoomAlreadyExists, roomKey)
	}
	return roomKey, nil
}

// Load fetches and decodes a room seed. Returns ErrRoomNotFound when the
// blob is absent or expired.
func (r *Rooms) Load(ctx context.Context, roomKey string) (game.MapAndMeta, error) {
	raw, err := r.store.execute("load_room", func() (any, error) {
		data, err := r.store.client.Get(ctx, r.blobKey(roomKey)).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return data, err
	})
	if err != nil {
		return game.MapAndMeta{}, err
	}

	data := raw.([]byte)
	if len(data) == 0 {
		return game.MapAndMeta{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomKey)
	}

	mm, err := game.DecodeMapAndMeta(data)
	if err != nil {
		return game.MapAndMeta{}, fmt.Errorf("directory: room %s: %w", roomKey, err)
	}
	return mm, nil
}

// Remove deletes a room blob. Removing an absent blob is not an error.
func (r *Rooms) Remove(ctx context.Context, roomKey string) error {
	_, err := r.store.execute("remove_room", func() (any, error) {
		return nil, r.store.client.Del(ctx, r.blobKey(roomKey)).Err()
	})
	return err
}
