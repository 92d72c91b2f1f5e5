package breaker_test

import (
	"testing"
	"time"

	"github.com/micic-mihajlo/semantic-cache/internal/breaker"
)

func TestBreakerStartsClosed(t *testing.T) {
	b := breaker.New("store", breaker.Config{})
	if b.State() != breaker.Closed {
		t.Fatalf("expected initial state Closed, got %s", b.State())
	}
	if !b.Allow() {
		t.Fatalf("expected Allow() true when closed")
	}
}

func TestBreakerOpensAfterExactlyNConsecutiveFailures(t *testing.T) {
	b := breaker.New("store", breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Hour})

	b.RecordFailure()
	if b.State() != breaker.Closed {
		t.Fatalf("expected still Closed after 1 failure")
	}
	b.RecordFailure()
	if b.State() != breaker.Closed {
		t.Fatalf("expected still Closed after 2 failures")
	}
	b.RecordFailure()
	if b.State() != breaker.Open {
		t.Fatalf("expected Open after 3rd consecutive failure, got %s", b.State())
	}
	if b.Allow() {
		t.Fatalf("expected Allow() false when Open")
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := breaker.New("store", breaker.Config{FailureThreshold: 3, RecoveryTimeout: time.Hour})
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != breaker.Closed {
		t.Fatalf("expected Closed; success should have reset the streak, got %s", b.State())
	}
}

func TestBreakerTransitionsToHalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := breaker.New("backend", breaker.Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	if b.State() != breaker.Open {
		t.Fatalf("expected Open immediately after tripping")
	}

	time.Sleep(20 * time.Millisecond)
	if b.State() != breaker.HalfOpen {
		t.Fatalf("expected HalfOpen after recovery timeout elapsed, got %s", b.State())
	}
}

func TestBreakerHalfOpenFailureReturnsToOpen(t *testing.T) {
	b := breaker.New("backend", breaker.Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if b.State() != breaker.HalfOpen {
		t.Fatalf("expected HalfOpen probe window")
	}
	if !b.Allow() {
		t.Fatalf("expected the first half-open probe to be allowed")
	}
	b.RecordFailure()
	if b.State() != breaker.Open {
		t.Fatalf("expected failed probe to trip back to Open, got %s", b.State())
	}
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	b := breaker.New("backend", breaker.Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatalf("expected half-open probe to be allowed")
	}
	b.RecordSuccess()
	if b.State() != breaker.Closed {
		t.Fatalf("expected successful probe to close the breaker, got %s", b.State())
	}
}

func TestBreakerHalfOpenLimitsInFlightProbes(t *testing.T) {
	b := breaker.New("backend", breaker.Config{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond, HalfOpenMaxInFlight: 1})
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatalf("expected the first probe to be allowed")
	}
	if b.Allow() {
		t.Fatalf("expected a second concurrent probe to be rejected while the first is in flight")
	}
}

func TestBreakerStatusSnapshot(t *testing.T) {
	b := breaker.New("store", breaker.Config{FailureThreshold: 5})
	b.RecordFailure()
	status := b.Status()
	if status.Name != "store" || status.FailureCount != 1 || status.FailureThreshold != 5 {
		t.Fatalf("unexpected status: %+v", status)
	}
}
