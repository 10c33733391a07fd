package brain

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/syho-lab/ainewsldo/internal/config"
)

// ErrCircuitOpen is returned by Allow while the breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state - requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit has tripped - requests are rejected.
	CircuitOpen
	// CircuitHalfOpen lets trial requests test whether the service recovered.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling the completion service after repeated
// failures and lets a trial request through once the recovery window has passed.
// It never retries anything itself.
type CircuitBreaker struct {
	cfg    config.BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu              sync.Mutex
	state           CircuitState
	failures        int
	consecutiveSucc int
	lastStateChange time.Time
}

// NewCircuitBreaker returns nil when cfg.FailureThreshold is zero; a nil
// breaker allows everything.
func NewCircuitBreaker(cfg config.BreakerConfig, logger *slog.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		return nil
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &CircuitBreaker{
		cfg:             cfg,
		logger:          logger,
		now:             time.Now,
		state:           CircuitClosed,
		lastStateChange: time.Now(),
	}
}

// Allow returns ErrCircuitOpen if the request should not be attempted.
func (cb *CircuitBreaker) Allow() error {
	if cb == nil {
		return nil
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.now().Sub(cb.lastStateChange) < cb.cfg.RecoveryTimeout {
			return ErrCircuitOpen
		}
		cb.transitionTo(CircuitHalfOpen)
	}
	return nil
}

// Record feeds the result of an attempted request into the breaker.
func (cb *CircuitBreaker) Record(ok bool) {
	if cb == nil {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if ok {
		cb.failures = 0
		if cb.state == CircuitHalfOpen {
			cb.consecutiveSucc++
			if cb.consecutiveSucc >= cb.cfg.SuccessThreshold {
				cb.transitionTo(CircuitClosed)
			}
		}
		return
	}

	cb.failures++
	cb.consecutiveSucc = 0
	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	case CircuitHalfOpen:
		// trial request failed
		cb.transitionTo(CircuitOpen)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	if cb == nil {
		return CircuitClosed
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transitionTo changes the circuit state (must hold lock).
func (cb *CircuitBreaker) transitionTo(next CircuitState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.lastStateChange = cb.now()
	if next == CircuitClosed {
		cb.failures = 0
		cb.consecutiveSucc = 0
	}
	cb.logger.Warn("completion circuit state changed", "from", prev.String(), "to", next.String())
}
