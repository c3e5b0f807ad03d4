package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the rooms service.
//
// Naming convention: namespace_subsystem_name
// - namespace: kinglands (application-level grouping)
// - subsystem: websocket, room, game, directory (feature-level grouping)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, game state)
// - Counter: Cumulative events (directory failures)
// - Histogram: Distributions (turn phase latency, territory size)

var (
	// ActiveWebSocketConnections tracks the current number of active player connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kinglands",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of live rooms on this replica
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kinglands",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms on this replica",
	})

	// GameState exposes the lifecycle state per room
	GameState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kinglands",
		Subsystem: "room",
		Name:      "game_state",
		Help:      "Lifecycle state of each room: 1 waiting, 2 in progress, 3 finished",
	}, []string{"room_key"})

	// TurnPhaseDuration tracks how long each phase of a simulation turn takes
	TurnPhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kinglands",
		Subsystem: "game",
		Name:      "turn_phase_seconds",
		Help:      "Time spent in each phase of a simulation turn",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"phase"})

	// TerritorySize samples per-player territory sizes at broadcast time
	TerritorySize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "kinglands",
		Subsystem: "game",
		Name:      "territory_size_cells",
		Help:      "Territory size per player at broadcast time",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
	})

	// DirectoryFailures counts failed shared-directory operations
	DirectoryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kinglands",
		Subsystem: "directory",
		Name:      "failures_total",
		Help:      "Total failed shared-directory operations",
	}, []string{"operation"})

	// RateLimitExceeded counts requests rejected by the rate limiter
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kinglands",
		Subsystem: "ratelimit",
		Name:      "exceeded_total",
		Help:      "Total requests rejected by the rate limiter",
	}, []string{"endpoint", "scope"})

	// CircuitBreakerState exposes the directory circuit breaker state
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kinglands",
		Subsystem: "directory",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open",
	}, []string{"name"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
