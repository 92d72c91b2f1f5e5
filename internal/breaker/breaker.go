// Package breaker implements a per-dependency circuit breaker: closed,
// open, and half-open states guarding calls to the vector store and the
// backend generator.
package breaker

import (
	"sync"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes a single breaker instance. Zero values fall back to
// conservative defaults in New.
type Config struct {
	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxInFlight int
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxInFlight <= 0 {
		c.HalfOpenMaxInFlight = 1
	}
	return c
}

// Breaker guards calls to a single dependency. It is safe for concurrent
// use. Unlike a middleware-style breaker that wraps a call, this one
// exposes Allow/RecordSuccess/RecordFailure directly so the pipeline can
// decide what "the call" means (a store round-trip, a backend call).
type Breaker struct {
	name string
	cfg  Config

	mu              sync.Mutex
	state           State
	failureCount    int
	lastFailureAt   time.Time
	halfOpenInFlight int
}

// New constructs a named breaker. The name is surface only (used in
// status snapshots and log lines) and does not affect behavior.
func New(name string, cfg Config) *Breaker {
	return &Breaker{
		name:  name,
		cfg:   cfg.withDefaults(),
		state: Closed,
	}
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state, first checking whether an OPEN
// breaker has waited out its recovery timeout and should advance to
// HALF_OPEN.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked()
	return b.state
}

func (b *Breaker) maybeRecoverLocked() {
	if b.state != Open {
		return
	}
	if b.lastFailureAt.IsZero() || time.Since(b.lastFailureAt) >= b.cfg.RecoveryTimeout {
		b.state = HalfOpen
		b.halfOpenInFlight = 0
	}
}

// Allow reports whether a call should be let through right now. In
// HALF_OPEN state it also reserves one of the limited in-flight slots;
// callers that are allowed through MUST eventually call RecordSuccess
// or RecordFailure to release that slot's effect on the state machine.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked()

	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		if b.halfOpenInFlight < b.cfg.HalfOpenMaxInFlight {
			b.halfOpenInFlight++
			return true
		}
		return false
	default: // Open
		return false
	}
}

// RecordSuccess clears the failure count and, if the breaker was
// probing in HALF_OPEN, closes it.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == HalfOpen {
		b.state = Closed
		b.halfOpenInFlight = 0
	}
	b.failureCount = 0
}

// RecordFailure counts a failure. A failure observed in HALF_OPEN trips
// the breaker straight back to OPEN; in CLOSED, the breaker opens once
// failureCount reaches FailureThreshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailureAt = time.Now()

	if b.state == HalfOpen {
		b.state = Open
		b.halfOpenInFlight = 0
		return
	}
	if b.failureCount >= b.cfg.FailureThreshold {
		b.state = Open
	}
}

// Status is a point-in-time snapshot suitable for /stats responses.
type Status struct {
	Name            string `json:"name"`
	State           State  `json:"state"`
	FailureCount    int    `json:"failure_count"`
	FailureThreshold int   `json:"failure_threshold"`
}

// Status returns a snapshot of the breaker's current condition.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maybeRecoverLocked()
	return Status{
		Name:             b.name,
		State:            b.state,
		FailureCount:     b.failureCount,
		FailureThreshold: b.cfg.FailureThreshold,
	}
}
