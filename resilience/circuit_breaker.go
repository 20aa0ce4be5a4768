// Package resilience provides reconnection primitives shared by anything
// that talks to an external system over a connection that can drop: retry
// with backoff and jitter, and a circuit breaker that stops hammering a
// dependency once it looks persistently unhealthy.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by CircuitBreaker.Allow when the breaker is
// open and the caller should not attempt the call.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker trips after a run of consecutive failures, refuses calls
// for a cooldown period, then goes half-open: calls are allowed again, and
// the next recorded success closes it while the next recorded failure
// re-opens it. Half-open does not limit how many calls are let through.
type CircuitBreaker struct {
	failureThreshold int
	cooldown         time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	openedAt    time.Time
}

func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            stateClosed,
	}
}

// Allow reports whether a call should proceed, transitioning OPEN -> HALF_OPEN
// once the cooldown has elapsed.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
}

// RecordFailure increments the failure count and opens the breaker once
// the threshold is reached, or immediately re-opens from half-open.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// IsOpen reports whether the breaker is currently refusing calls.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.openedAt) < b.cooldown
}
