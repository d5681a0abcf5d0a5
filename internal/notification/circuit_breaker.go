package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tphakala/safeguard-go/internal/errors"
	"github.com/tphakala/safeguard-go/internal/logger"
	"github.com/tphakala/safeguard-go/internal/observability/metrics"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed means requests flow normally.
	StateClosed CircuitState = iota
	// StateHalfOpen means a limited number of probe requests are allowed.
	StateHalfOpen
	// StateOpen means requests are rejected until the timeout elapses.
	StateOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitBreakerOpen is returned when the circuit breaker is open.
	ErrCircuitBreakerOpen = errors.Newf("circuit breaker is open").
				Component("notification").
				Category(errors.CategoryLimit).
				Build()
	// ErrTooManyRequests is returned when the half-open probe is already in flight.
	ErrTooManyRequests = errors.Newf("circuit breaker is half-open, too many requests").
				Component("notification").
				Category(errors.CategoryLimit).
				Build()
)

// CircuitBreakerConfig holds configuration for a circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
	// HalfOpenMaxRequests bounds probes while half-open.
	HalfOpenMaxRequests int
}

// DefaultCircuitBreakerConfig returns default circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:         5,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// Validate checks the configuration.
func (c CircuitBreakerConfig) Validate() error {
	if c.MaxFailures < 1 {
		return fmt.Errorf("max_failures must be at least 1, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}
	if c.HalfOpenMaxRequests < 1 {
		return fmt.Errorf("half_open_max_requests must be at least 1, got %d", c.HalfOpenMaxRequests)
	}
	return nil
}

// CircuitBreaker stops calling a provider after repeated failures and
// probes it again once the timeout has passed.
type CircuitBreaker struct {
	config           CircuitBreakerConfig
	provider         string
	metrics          *metrics.NotificationMetrics
	log              logger.Logger
	now              func() time.Time
	mu               sync.RWMutex
	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	lastStateChange  time.Time
	halfOpenRequests int
}

// NewCircuitBreaker creates a closed circuit breaker for provider. An invalid
// config is logged and used as given.
func NewCircuitBreaker(config CircuitBreakerConfig, provider string, m *metrics.NotificationMetrics, log logger.Logger) *CircuitBreaker {
	if log == nil {
		log = GetLogger()
	}
	if err := config.Validate(); err != nil {
		log.Warn("circuit breaker config validation failed",
			logger.String("provider", provider),
			logger.Error(err))
	}
	cb := &CircuitBreaker{
		config:   config,
		provider: provider,
		metrics:  m,
		log:      log,
		now:      time.Now,
		state:    StateClosed,
	}
	cb.lastStateChange = cb.now()
	m.SetCircuitState(provider, int(StateClosed))
	return cb
}

// Call runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeCall(); err != nil {
		state, failures := cb.State(), cb.Failures()
		return fmt.Errorf("circuit breaker rejected request (%v, %d consecutive failures): %w",
			state, failures, err)
	}
	err := fn(ctx)
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastStateChange) >= cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.halfOpenRequests = 1
			return nil
		}
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.HalfOpenMaxRequests {
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
		return nil
	default:
		return ErrCircuitBreakerOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.lastFailureTime = time.Time{}
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		return
	}
	// Cancellation is the caller giving up, not the provider failing.
	if errors.Is(err, context.Canceled) {
		return
	}

	cb.failures++
	cb.lastFailureTime = cb.now()
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	case StateOpen:
	}
}

// setState must be called with mu held.
func (cb *CircuitBreaker) setState(next CircuitState) {
	if cb.state == next {
		return
	}
	prev := cb.state
	now := cb.now()
	inPrevious := now.Sub(cb.lastStateChange)
	cb.state = next
	cb.lastStateChange = now
	if next != StateHalfOpen {
		cb.halfOpenRequests = 0
	}
	cb.metrics.SetCircuitState(cb.provider, int(next))

	cb.log.Info("circuit breaker state transition",
		logger.String("provider", cb.provider),
		logger.String("old_state", prev.String()),
		logger.String("new_state", next.String()),
		logger.Int("consecutive_failures", cb.failures),
		logger.Duration("time_in_previous_state", inPrevious))
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the number of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	cb.setState(StateClosed)
}

// IsHealthy reports whether the circuit is closed.
func (cb *CircuitBreaker) IsHealthy() bool {
	return cb.State() == StateClosed
}

// CircuitBreakerStats is a snapshot of a breaker.
type CircuitBreakerStats struct {
	State            CircuitState
	Failures         int
	LastFailureTime  time.Time
	LastStateChange  time.Time
	HalfOpenRequests int
}

// Stats returns a snapshot of the breaker.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return CircuitBreakerStats{
		State:            cb.state,
		Failures:         cb.failures,
		LastFailureTime:  cb.lastFailureTime,
		LastStateChange:  cb.lastStateChange,
		HalfOpenRequests: cb.halfOpenRequests,
	}
}
