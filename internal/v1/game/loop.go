package game

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kinglands/rooms/internal/v1/logging"
)

// TickInterval is the target wall time of one simulation turn.
const TickInterval = 700 * time.Millisecond

// Loop drives a Strategy at a fixed cadence. The goroutine is spawned at
// construction but idles until Start; Stop cancels it; Wait blocks until it
// has fully exited (cancellation is not an error).
type Loop struct {
	strategy Strategy

	turn     atomic.Int64
	started  chan struct{}
	startOne sync.Once
	stopOne  sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// NewLoop creates the loop and spawns its goroutine in the idle state.
func NewLoop(strategy Strategy) *Loop {
	l := &Loop{
		strategy: strategy,
		started:  make(chan struct{}),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	return l
}

// CurrentTurn returns the number of the most recently started turn.
func (l *Loop) CurrentTurn() int {
	return int(l.turn.Load())
}

// Start releases the loop. Idempotent.
func (l *Loop) Start() {
	l.startOne.Do(func() { close(l.started) })
}

// Stop requests the loop to exit. Idempotent; the current turn finishes.
func (l *Loop) Stop() {
	l.stopOne.Do(func() { close(l.quit) })
}

// Wait blocks until the loop goroutine has exited or ctx is done.
func (l *Loop) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.done)

	// A stop before the start still falls through to FinishGame so the
	// room reaches its finished state.
	select {
	case <-l.started:
	case <-l.quit:
	}

	for !l.shouldStop() && !l.strategy.IsGameDone() {
		turn := l.turn.Add(1)
		start := time.Now()

		l.strategy.InitTurn(int(turn))
		if err := l.strategy.MakeTurn(); err != nil {
			logging.Error(context.Background(), "turn aborted", zap.Int64("turn", turn), zap.Error(err))
			break
		}
		l.strategy.FinishTurn()

		if pause := TickInterval - time.Since(start); pause > 0 {
			select {
			case <-l.quit:
			case <-time.After(pause):
			}
		}
	}

	l.strategy.FinishGame()
}

func (l *Loop) shouldStop() bool {
	select {
	case <-l.quit:
		return true
	default:
		return false
	}
}
