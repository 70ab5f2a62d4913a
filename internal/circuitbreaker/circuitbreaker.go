// Package circuitbreaker protects notification destinations from cascade
// failures. When a destination keeps failing, its circuit opens and
// deliveries fail fast instead of tying up request handlers on a dead
// service; after a recovery timeout a single probe is let through.
package circuitbreaker

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the circuit's position.
//
// Transitions:
//
//	Closed -> Open:      failure count reaches the threshold
//	Open -> HalfOpen:    recovery timeout elapses
//	HalfOpen -> Closed:  probe delivery succeeds
//	HalfOpen -> Open:    probe delivery fails
type State int

const (
	StateClosed   State = iota // normal operation, deliveries pass through
	StateOpen                  // tripped, deliveries fail fast
	StateHalfOpen              // probing, limited deliveries allowed
)

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

// Config holds the thresholds for one destination's circuit.
type Config struct {
	// Name identifies the destination in logs ("pushover", "discord", "smtp").
	Name string

	// MaxFailures is the number of consecutive failures before the
	// circuit opens.
	MaxFailures int

	// RecoveryTimeout is how long the circuit stays open before a probe
	// is allowed.
	RecoveryTimeout time.Duration

	// HalfOpenMaxProbes limits concurrent probes while half-open.
	HalfOpenMaxProbes int
}

// DefaultConfig returns the thresholds used for all destinations unless
// overridden.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		MaxFailures:       5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 1,
	}
}

// CircuitBreaker tracks consecutive delivery failures for one destination.
type CircuitBreaker struct {
	mu     sync.RWMutex
	config Config
	logger *zap.Logger

	state           State
	failureCount    int
	lastFailureTime time.Time
	lastStateChange time.Time
	halfOpenProbes  int
}

// New creates a circuit breaker. Zero config fields fall back to the
// defaults.
func New(cfg Config, logger *zap.Logger) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxProbes <= 0 {
		cfg.HalfOpenMaxProbes = 1
	}

	return &CircuitBreaker{
		config:          cfg,
		logger:          logger,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Allow reports whether a delivery may be attempted right now. An open
// circuit whose recovery timeout has elapsed moves to half-open and admits
// the caller as the probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transitionTo(StateHalfOpen)
			cb.halfOpenProbes = 1
			cb.logger.Info("circuit breaker allowing probe",
				zap.String("destination", cb.config.Name),
			)
			return true
		}
		return false

	case StateHalfOpen:
		if cb.halfOpenProbes < cb.config.HalfOpenMaxProbes {
			cb.halfOpenProbes++
			return true
		}
		return false

	default:
		return false
	}
}

// RecordSuccess notes an acknowledged delivery. A successful probe closes
// the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0

	if cb.state == StateHalfOpen {
		cb.transitionTo(StateClosed)
		cb.logger.Info("circuit breaker closed, destination recovered",
			zap.String("destination", cb.config.Name),
		)
	}
}

// RecordFailure notes a failed delivery. Consecutive failures open the
// circuit; a failed probe re-opens it immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.config.MaxFailures {
			cb.transitionTo(StateOpen)
			cb.logger.Warn("circuit breaker opened",
				zap.String("destination", cb.config.Name),
				zap.Int("failures", cb.failureCount),
				zap.Int("threshold", cb.config.MaxFailures),
			)
		}

	case StateHalfOpen:
		cb.transitionTo(StateOpen)
		cb.logger.Warn("circuit breaker re-opened, probe failed",
			zap.String("destination", cb.config.Name),
		)
	}
}

// GetState returns the circuit's current position.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// transitionTo changes state (must be called with lock held).
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.halfOpenProbes = 0

	cb.logger.Debug("circuit breaker state transition",
		zap.String("destination", cb.config.Name),
		zap.String("from", oldState.String()),
		zap.String("to", newState.String()),
	)
}
