// Package directory implements the shared room directory a fleet of
// replicas cooperates through: the room blob store, the replica index and
// the lobby index, all over a single Redis instance. Every entry carries
// the room TTL so entries owned by a crashed replica age out on their own.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/kinglands/rooms/internal/v1/metrics"
)

// ErrRoomNotFound is returned when a room blob is absent from the store.
var ErrRoomNotFound = errors.New("directory: room not found")

// ErrRoomAlreadyExists is returned when a blob would overwrite a live room.
var ErrRoomAlreadyExists = errors.New("directory: room already exists")

// Store is a gobreaker-guarded Redis connection shared by the repositories.
type Store struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewStore creates a Redis connection and verifies it with a ping.
func NewStore(addr, password string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0, // Default DB
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Ping to verify connection immediately
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "directory",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	return &Store{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// Client returns the underlying Redis client.
func (s *Store) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// Ping checks Redis connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.execute("ping", func() (any, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close shuts down the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// execute runs a directory operation through the circuit breaker and counts
// failures. Lookup misses (redis.Nil) must be converted by fn before
// returning so they do not trip the breaker.
func (s *Store) execute(op string, fn func() (any, error)) (any, error) {
	res, err := s.cb.Execute(fn)
	if err != nil {
		metrics.DirectoryFailures.WithLabelValues(op).Inc()
		return nil, fmt.Errorf("directory: %s: %w", op, err)
	}
	return res, nil
}
