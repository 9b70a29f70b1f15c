package circuitbreaker

import (
	"errors"
	"karaokelover/logcolors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, calls allowed
	StateOpen                  // Tripped, calls rejected
	StateHalfOpen              // One probe call allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Transition describes a state change, passed to Config.OnTransition.
type Transition struct {
	Name     string
	From     State
	To       State
	Failures int
	Cooldown time.Duration
}

// Config holds circuit breaker configuration
type Config struct {
	Name            string
	Threshold       int           // consecutive failures before opening
	Cooldown        time.Duration // how long to stay open before probing
	HalfOpenTimeout time.Duration // how long a probe may take before reopening

	// OnTransition is called after every state change, outside the lock.
	OnTransition func(Transition)
}

// CircuitBreaker guards calls to an upstream that can fail in bursts
// (quota exhaustion, outages). It never retries on its own.
type CircuitBreaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	halfOpenStart time.Time
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed}
}

// Name returns the configured breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// Allow reports whether a call may proceed. In the half-open state only
// the first caller after the cooldown is let through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.Cooldown {
			cb.mu.Unlock()
			return false
		}
		t := cb.transitionLocked(StateHalfOpen)
		cb.halfOpenStart = time.Now()
		cb.mu.Unlock()
		log.Infof("%s Cooldown passed, probing upstream", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
		cb.notify(t)
		return true

	case StateHalfOpen:
		if time.Since(cb.halfOpenStart) < cb.cfg.HalfOpenTimeout {
			cb.mu.Unlock()
			return false
		}
		t := cb.transitionLocked(StateOpen)
		cb.openedAt = time.Now()
		cb.mu.Unlock()
		log.Warnf("%s Probe timed out, reopening", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
		cb.notify(t)
		return false

	default:
		cb.mu.Unlock()
		return true
	}
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.failures = 0
	if cb.state != StateHalfOpen {
		cb.mu.Unlock()
		return
	}
	t := cb.transitionLocked(StateClosed)
	cb.mu.Unlock()

	log.Infof("%s Probe succeeded, circuit CLOSED", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
	cb.notify(t)
}

// RecordFailure records a failed call
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.failures++

	open := cb.state == StateHalfOpen || (cb.state == StateClosed && cb.failures >= cb.cfg.Threshold)
	if !open {
		cb.mu.Unlock()
		return
	}
	t := cb.transitionLocked(StateOpen)
	cb.openedAt = time.Now()
	cb.mu.Unlock()

	log.Warnf("%s %d consecutive failures, circuit OPEN for %v",
		logcolors.CircuitBreakerPrefix(cb.cfg.Name), t.Failures, cb.cfg.Cooldown)
	cb.notify(t)
}

// Execute runs fn if the breaker allows it and records the outcome.
// It returns ErrCircuitOpen without calling fn when the breaker is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker back to CLOSED
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	cb.mu.Unlock()

	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.cfg.Name))
	if from != StateClosed {
		cb.notify(Transition{Name: cb.cfg.Name, From: from, To: StateClosed, Cooldown: cb.cfg.Cooldown})
	}
}

// TimeUntilRetry returns how long until the next probe is allowed.
// Zero when closed.
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	var remaining time.Duration
	switch cb.state {
	case StateOpen:
		remaining = cb.cfg.Cooldown - time.Since(cb.openedAt)
	case StateHalfOpen:
		remaining = cb.cfg.HalfOpenTimeout - time.Since(cb.halfOpenStart)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns a JSON-friendly view for health endpoints
func (cb *CircuitBreaker) Snapshot() map[string]interface{} {
	retry := cb.TimeUntilRetry()
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]interface{}{
		"name":             cb.cfg.Name,
		"state":            cb.state.String(),
		"failures":         cb.failures,
		"threshold":        cb.cfg.Threshold,
		"retry_in_seconds": int(retry.Seconds()),
	}
}

func (cb *CircuitBreaker) transitionLocked(to State) Transition {
	t := Transition{
		Name:     cb.cfg.Name,
		From:     cb.state,
		To:       to,
		Failures: cb.failures,
		Cooldown: cb.cfg.Cooldown,
	}
	cb.state = to
	return t
}

func (cb *CircuitBreaker) notify(t Transition) {
	if cb.cfg.OnTransition != nil {
		cb.cfg.OnTransition(t)
	}
}
