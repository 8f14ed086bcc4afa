// Package circuitbreaker provides a three-state circuit breaker for external
// service calls. It stops calling a failing dependency for a cooldown period,
// then cautiously probes recovery before closing again.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Execute when the circuit is open and the cooldown
// has not yet elapsed. Callers should back off and retry later.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed indicates normal operation; calls pass through.
	StateClosed State = iota

	// StateOpen indicates the breaker is rejecting calls until the cooldown
	// timeout elapses.
	StateOpen

	// StateHalfOpen indicates the breaker is probing recovery with a limited
	// number of trial calls.
	StateHalfOpen
)

// String returns a string representation of the circuit state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Clock provides an abstraction for time operations to enable testing.
type Clock interface {
	Now() time.Time
}

// SystemClock is a Clock implementation that uses the system time.
type SystemClock struct{}

// Now returns the current system time.
func (c *SystemClock) Now() time.Time { return time.Now() }

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name identifies the protected upstream target in logs and snapshots.
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state required to open the circuit. Must be >= 1.
	FailureThreshold int

	// SuccessThreshold is the number of successful probes required in the
	// half-open state to close the circuit. Must be >= 1. The half-open
	// state admits SuccessThreshold+1 probe calls in total before deciding.
	SuccessThreshold int

	// Timeout is the cooldown the circuit stays open before probing.
	// Must be >= 1 second.
	Timeout time.Duration

	// IsFailure classifies which errors count toward tripping the circuit.
	// Errors it rejects pass through to the caller without affecting state.
	// Nil means every error counts.
	IsFailure func(error) bool

	// Clock provides time abstraction for testing. Defaults to SystemClock.
	Clock Clock
}

// CircuitBreaker guards one upstream target. State is process-wide and
// mutex-protected; a single value is shared by all callers of that target.
type CircuitBreaker struct {
	cfg Config

	mu               sync.Mutex
	state            State
	failureCount     int
	successCount     int
	halfOpenAttempts int
	halfOpenSuccess  int
	lastFailureTime  time.Time
}

// New creates a circuit breaker, validating the configuration.
func New(cfg Config) (*CircuitBreaker, error) {
	if cfg.Timeout < time.Second {
		return nil, fmt.Errorf("circuitbreaker %q: timeout must be at least 1s, got %s", cfg.Name, cfg.Timeout)
	}
	if cfg.FailureThreshold < 1 {
		return nil, fmt.Errorf("circuitbreaker %q: failure threshold must be at least 1, got %d", cfg.Name, cfg.FailureThreshold)
	}
	if cfg.SuccessThreshold < 1 {
		return nil, fmt.Errorf("circuitbreaker %q: success threshold must be at least 1, got %d", cfg.Name, cfg.SuccessThreshold)
	}
	if cfg.Clock == nil {
		cfg.Clock = &SystemClock{}
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}, nil
}

// Execute runs op through the circuit breaker. When the circuit is open and
// the cooldown has not elapsed, it returns ErrOpen without invoking op.
// Errors rejected by the IsFailure predicate are returned to the caller but
// do not move the state machine.
func (cb *CircuitBreaker) Execute(op func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := op()
	cb.afterCall(err)
	return err
}

// beforeCall admits or rejects the call and performs the open -> half-open
// transition once the cooldown has elapsed.
func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.cfg.Clock.Now().Sub(cb.lastFailureTime) < cb.cfg.Timeout {
			return ErrOpen
		}
		cb.transition(StateHalfOpen)
		cb.halfOpenAttempts = 0
		cb.halfOpenSuccess = 0
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenCapacity() {
			return ErrOpen
		}
		cb.halfOpenAttempts++
	}
	return nil
}

// afterCall records the outcome of an admitted call.
func (cb *CircuitBreaker) afterCall(err error) {
	failed := err != nil
	if failed && cb.cfg.IsFailure != nil && !cb.cfg.IsFailure(err) {
		// Not a failure class this breaker tracks; the state machine only
		// sees errors the predicate accepts.
		failed = false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if failed {
			cb.failureCount++
			cb.lastFailureTime = cb.cfg.Clock.Now()
			if cb.failureCount >= cb.cfg.FailureThreshold {
				cb.transition(StateOpen)
			}
			return
		}
		cb.failureCount = 0
		cb.successCount++

	case StateHalfOpen:
		if !failed {
			cb.halfOpenSuccess++
		}
		if cb.halfOpenAttempts >= cb.halfOpenCapacity() {
			if cb.halfOpenSuccess >= cb.cfg.SuccessThreshold {
				cb.transition(StateClosed)
				cb.failureCount = 0
				cb.successCount = 0
				cb.halfOpenAttempts = 0
				cb.halfOpenSuccess = 0
				return
			}
			cb.lastFailureTime = cb.cfg.Clock.Now()
			cb.transition(StateOpen)
		}
	}
}

// halfOpenCapacity is the total number of probe calls admitted while half-open.
func (cb *CircuitBreaker) halfOpenCapacity() int {
	return cb.cfg.SuccessThreshold + 1
}

// transition changes state and logs the change. Caller must hold cb.mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	slog.Warn("circuit breaker state changed",
		slog.String("circuit", cb.cfg.Name),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Int("failure_count", cb.failureCount))
}

// Name returns the name of the protected target.
func (cb *CircuitBreaker) Name() string { return cb.cfg.Name }

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot exposes internal counters for diagnostics and tests.
type Snapshot struct {
	State            State
	FailureCount     int
	SuccessCount     int
	HalfOpenAttempts int
	HalfOpenSuccess  int
	LastFailureTime  time.Time
}

// GetState returns a consistent snapshot of the breaker's counters.
func (cb *CircuitBreaker) GetState() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:            cb.state,
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		HalfOpenAttempts: cb.halfOpenAttempts,
		HalfOpenSuccess:  cb.halfOpenSuccess,
		LastFailureTime:  cb.lastFailureTime,
	}
}
