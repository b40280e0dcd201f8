package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState represents the current state of the circuit breaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned without calling the protected function.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	FailureThreshold int           `json:"failure_threshold"` // consecutive failures before opening
	SuccessThreshold int           `json:"success_threshold"` // successes in half-open before closing
	Timeout          time.Duration `json:"timeout"`           // open period before a trial call
}

// CircuitBreaker stops calling a failing dependency for a cool-down period.
// The protected call runs outside the lock, so concurrent callers are not
// serialized.
type CircuitBreaker struct {
	name   string
	config BreakerConfig
	logger *logrus.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(name string, config BreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
		state:  BreakerClosed,
	}
}

// Execute runs fn unless the breaker is open
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		return ErrBreakerOpen
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == BreakerOpen && cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
		cb.setState(BreakerHalfOpen)
		cb.successes = 0
	}
	return cb.state != BreakerOpen
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		switch cb.state {
		case BreakerClosed:
			cb.failures = 0
		case BreakerHalfOpen:
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.failures = 0
				cb.setState(BreakerClosed)
			}
		}
		return
	}

	cb.failures++
	if cb.state == BreakerHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.openedAt = cb.now()
		cb.setState(BreakerOpen)
	}
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"state":           cb.state.String(),
		"failure_count":   cb.failures,
	}).WithError(err).Warn("Circuit breaker: failed execution")
}

func (cb *CircuitBreaker) setState(state BreakerState) {
	if cb.state == state {
		return
	}
	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from":            cb.state.String(),
		"to":              state.String(),
	}).Info("Circuit breaker state changed")
	cb.state = state
}
