package errors

import (
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed allows requests to proceed normally.
	CircuitClosed CircuitState = iota

	// CircuitOpen blocks all requests during cooldown.
	CircuitOpen

	// CircuitHalfOpen allows a bounded number of probe requests to test
	// recovery.
	CircuitHalfOpen
)

var circuitStateNames = map[CircuitState]string{
	CircuitClosed:   "closed",
	CircuitOpen:     "open",
	CircuitHalfOpen: "half_open",
}

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	if name, ok := circuitStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// circuit open.
	FailureThreshold int `yaml:"failure_threshold"`

	// RecoveryTimeout is the cooldown before transitioning to half-open.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout"`

	// HalfOpenMaxProbes bounds the in-flight probe requests while half-open.
	HalfOpenMaxProbes int `yaml:"half_open_max_probes"`

	// HalfOpenSuccesses is the number of consecutive probe successes needed
	// to close the circuit.
	HalfOpenSuccesses int `yaml:"half_open_successes"`
}

// DefaultCircuitBreakerConfig returns the default configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 1,
		HalfOpenSuccesses: 2,
	}
}

// CircuitBreaker implements the circuit breaker pattern for one
// (stage, dependency) pair. It is a pure state machine: all I/O stays with
// the caller, and the clock is injectable so transitions are testable
// without real waits.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	probesInFlight  int
	lastStateChange time.Time
	config          CircuitBreakerConfig
	dependency      string
	now             func() time.Time
}

// NewCircuitBreaker creates a circuit breaker for a dependency.
func NewCircuitBreaker(dependency string, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state:           CircuitClosed,
		config:          config,
		dependency:      dependency,
		now:             time.Now,
		lastStateChange: time.Now(),
	}
}

// WithClock replaces the breaker's clock, for tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
	cb.lastStateChange = now()
	return cb
}

// Allow checks whether a request may proceed, reserving a probe slot when
// the circuit is half-open. Every Allow that returns true must be paired
// with a RecordResult call.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.inCooldown() {
			return false
		}
		cb.transitionTo(CircuitHalfOpen)
		cb.probesInFlight = 1
		return true
	case CircuitHalfOpen:
		if cb.probesInFlight >= cb.config.HalfOpenMaxProbes {
			return false
		}
		cb.probesInFlight++
		return true
	default:
		return true
	}
}

// RecordResult tracks the outcome of an admitted operation.
func (cb *CircuitBreaker) RecordResult(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen && cb.probesInFlight > 0 {
		cb.probesInFlight--
	}

	if success {
		cb.recordSuccess()
	} else {
		cb.recordFailure()
	}
}

// recordSuccess handles a successful operation.
func (cb *CircuitBreaker) recordSuccess() {
	cb.failures = 0

	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.transitionTo(CircuitClosed)
		}
	}
}

// recordFailure handles a failed operation. A failure while half-open
// reopens immediately and restarts the cooldown.
func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	cb.successes = 0

	switch cb.state {
	case CircuitHalfOpen:
		cb.transitionTo(CircuitOpen)
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen)
		}
	}
}

// transitionTo changes the circuit state and records the transition time.
func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	cb.state = state
	cb.lastStateChange = cb.now()
	cb.probesInFlight = 0

	if state == CircuitClosed {
		cb.failures = 0
		cb.successes = 0
	} else if state == CircuitHalfOpen {
		cb.successes = 0
	}
}

// inCooldown checks whether the open-state cooldown is still active.
func (cb *CircuitBreaker) inCooldown() bool {
	return cb.now().Sub(cb.lastStateChange) < cb.config.RecoveryTimeout
}

// ForceReset manually resets the circuit breaker to closed.
func (cb *CircuitBreaker) ForceReset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionTo(CircuitClosed)
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Dependency returns the dependency identifier the breaker guards.
func (cb *CircuitBreaker) Dependency() string {
	return cb.dependency
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// LastStateChange returns the time of the last state transition.
func (cb *CircuitBreaker) LastStateChange() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastStateChange
}
