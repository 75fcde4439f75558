package store

import (
	"sync"
	"time"
)

// Health represents the current health state of a backing store.
// It is consumed by the health check endpoints.
type Health struct {
	// Store is the name of the backing store (e.g., "postgres")
	Store string

	// LastSuccess is the timestamp of the last successful query
	LastSuccess time.Time

	// LastFailure is the timestamp of the last failed query
	LastFailure time.Time

	// LastError contains the error message from the last failure, if any
	LastError string

	// LastDuration is the latency of the last query
	LastDuration time.Duration

	// ConsecutiveFailures is the count of consecutive failed queries
	ConsecutiveFailures int

	// CircuitState is the current state of the circuit breaker
	CircuitState string
}

// HealthReporter is implemented by stores that expose health status.
// Implementations must be thread-safe and non-blocking.
type HealthReporter interface {
	Health() Health
}

// healthTracker records query outcomes for health reporting.
type healthTracker struct {
	mu     sync.RWMutex
	health Health
}

func newHealthTracker(name string) *healthTracker {
	return &healthTracker{health: Health{Store: name}}
}

func (t *healthTracker) recordSuccess(duration time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.health.LastSuccess = time.Now()
	t.health.LastDuration = duration
	t.health.ConsecutiveFailures = 0
	t.health.LastError = ""
}

func (t *healthTracker) recordFailure(duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.health.LastFailure = time.Now()
	t.health.LastDuration = duration
	t.health.ConsecutiveFailures++
	if err != nil {
		t.health.LastError = err.Error()
	}
}

func (t *healthTracker) snapshot() Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.health
}
