package directory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const replicaKeyPrefix = "__shard:rooms:"

// Replicas is the replica index: which replica currently owns each live
// room. Entries expire with the room TTL so a crashed replica never locks a
// room forever.
type Replicas struct {
	store *Store
	ttl   time.Duration
}

// NewReplicas creates the replica index repository.
func NewReplicas(store *Store, ttl time.Duration) *Replicas {
	return &Replicas{store: store, ttl: ttl}
}

func (r *Replicas) indexKey(roomKey string) string {
	return replicaKeyPrefix + roomKey
}

// Get returns the replica id owning the room, or "" when unclaimed.
func (r *Replicas) Get(ctx context.Context, roomKey string) (string, error) {
	res, err := r.store.execute("get_replica", func() (any, error) {
		replica, err := r.store.client.Get(ctx, r.indexKey(roomKey)).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return replica, err
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// Claim records this replica as the room's owner.
func (r *Replicas) Claim(ctx context.Context, roomKey, replicaID string) error {
	_, err := r.store.execute("claim_replica", func() (any, error) {
		return nil, r.store.client.SetEx(ctx, r.indexKey(roomKey), replicaID, r.ttl).Err()
	})
	return err
}

// Release drops the room's replica claim.
func (r *Replicas) Release(ctx context.Context, roomKey string) error {
	_, err := r.store.execute("release_replica", func() (any, error) {
		return nil, r.store.client.Del(ctx, r.indexKey(roomKey)).Err()
	})
	return err
}
