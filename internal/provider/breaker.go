package provider

import (
	"sync"
	"time"
)

// BreakerState is the current state of a circuit breaker.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// CircuitBreaker guards one provider against repeated failures. While open,
// calls are refused without reaching the provider and classified retryable.
type CircuitBreaker struct {
	mu              sync.RWMutex
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	state           BreakerState
	maxFailures     int
	cooldown        time.Duration
	resetThreshold  int
}

// NewCircuitBreaker creates a breaker that opens after maxFailures
// consecutive failures, probes again after cooldown, and closes after
// resetThreshold consecutive successes in half-open state.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration, resetThreshold int) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:    maxFailures,
		cooldown:       cooldown,
		resetThreshold: resetThreshold,
		state:          BreakerClosed,
	}
}

// CanExecute reports whether a call may be attempted right now.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	switch cb.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		return time.Since(cb.lastFailureTime) >= cb.cooldown
	default:
		return false
	}
}

// OnSuccess records a successful call.
func (cb *CircuitBreaker) OnSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++

	switch cb.state {
	case BreakerHalfOpen:
		if cb.successCount >= cb.resetThreshold {
			cb.failureCount = 0
			cb.successCount = 0
			cb.state = BreakerClosed
		}
	case BreakerOpen:
		cb.state = BreakerHalfOpen
		cb.successCount = 1
	}
}

// OnFailure records a failed call.
func (cb *CircuitBreaker) OnFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case BreakerClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = BreakerOpen
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.successCount = 0
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
