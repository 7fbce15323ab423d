package pipeline

import (
	"sync"
	"time"
)

// BreakerState is the circuit breaker's current state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "Closed"
	case BreakerOpen:
		return "Open"
	case BreakerHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

// WindowStatistics is a purely observational rolling count of recent
// outcomes; it never drives trip/reset decisions, which depend only on
// consecutive failures/successes (see CircuitBreaker).
type WindowStatistics struct {
	Successes int
	Failures  int
}

// CircuitBreaker trips Open after ConsecutiveFailureThreshold consecutive
// failures, stays Open for OpenDuration, then moves to HalfOpen, where every
// call is allowed (there is no limit on trial calls) until the next recorded
// outcome: a success closes the breaker, a failure reopens it. A
// bounded window of recent outcomes is kept for WindowStatistics only.
type CircuitBreaker struct {
	mu sync.Mutex

	opts WindowedOptions

	state               BreakerState
	consecutiveFailures int
	openedAt            time.Time
	window              []bool // true = success
}

// WindowedOptions is an alias of CircuitBreakerOptions (the same type, not a
// distinct one), named locally for use in breaker.go.
type WindowedOptions = CircuitBreakerOptions

// NewCircuitBreaker builds a breaker starting Closed.
func NewCircuitBreaker(opts CircuitBreakerOptions) *CircuitBreaker {
	return &CircuitBreaker{opts: opts, state: BreakerClosed}
}

// Allow reports whether a call may proceed, transitioning Open->HalfOpen
// once OpenDuration has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case BreakerOpen:
		if time.Since(cb.openedAt) >= cb.opts.OpenDuration {
			cb.state = BreakerHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess reports a successful call, closing a HalfOpen breaker and
// resetting the consecutive-failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.state = BreakerClosed
	cb.record(true)
}

// RecordFailure reports a failed call. A failure while HalfOpen reopens the
// breaker immediately; a failure while Closed trips it once
// ConsecutiveFailureThreshold is reached.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.record(false)
	if cb.opts.ConsecutiveFailureThreshold <= 0 {
		// A non-positive threshold means this node opted out of circuit
		// breaking; still track window stats, never trip.
		return
	}
	if cb.state == BreakerHalfOpen {
		cb.trip()
		return
	}
	cb.consecutiveFailures++
	if cb.consecutiveFailures >= cb.opts.ConsecutiveFailureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = BreakerOpen
	cb.openedAt = time.Now()
}

func (cb *CircuitBreaker) record(success bool) {
	size := cb.opts.WindowSize
	if size <= 0 {
		size = 20
	}
	cb.window = append(cb.window, success)
	if len(cb.window) > size {
		cb.window = cb.window[len(cb.window)-size:]
	}
}

// State returns the breaker's current state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Statistics returns the observational sliding-window outcome counts.
func (cb *CircuitBreaker) Statistics() WindowStatistics {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	var stats WindowStatistics
	for _, ok := range cb.window {
		if ok {
			stats.Successes++
		} else {
			stats.Failures++
		}
	}
	return stats
}

// breakerEntry tracks last-use for CircuitBreakerManager's LRU eviction.
type breakerEntry struct {
	breaker  *CircuitBreaker
	lastUsed time.Time
}

// CircuitBreakerManager owns one CircuitBreaker per node id, evicting the
// least-recently-used entry once MaxBreakers is exceeded so a long-running
// host process with a changing node population doesn't grow unbounded.
type CircuitBreakerManager struct {
	mu      sync.Mutex
	opts    CircuitBreakerMemoryOptions
	makeOne func() *CircuitBreaker
	entries map[string]*breakerEntry
}

// NewCircuitBreakerManager builds a manager that constructs new breakers
// with cbOpts and evicts under memOpts.MaxBreakers.
func NewCircuitBreakerManager(cbOpts CircuitBreakerOptions, memOpts CircuitBreakerMemoryOptions) *CircuitBreakerManager {
	return &CircuitBreakerManager{
		opts:    memOpts,
		makeOne: func() *CircuitBreaker { return NewCircuitBreaker(cbOpts) },
		entries: make(map[string]*breakerEntry),
	}
}

// Get returns the CircuitBreaker for nodeID, creating one on first use and
// evicting the least-recently-used entry if the manager is at capacity.
func (m *CircuitBreakerManager) Get(nodeID string) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[nodeID]; ok {
		e.lastUsed = time.Now()
		return e.breaker
	}

	if m.opts.MaxBreakers > 0 && len(m.entries) >= m.opts.MaxBreakers {
		var oldestID string
		var oldest time.Time
		for id, e := range m.entries {
			if oldestID == "" || e.lastUsed.Before(oldest) {
				oldestID = id
				oldest = e.lastUsed
			}
		}
		delete(m.entries, oldestID)
	}

	e := &breakerEntry{breaker: m.makeOne(), lastUsed: time.Now()}
	m.entries[nodeID] = e
	return e.breaker
}
