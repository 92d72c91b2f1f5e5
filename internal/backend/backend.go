// Package backend wraps the single expensive call the cache is
// fronting: generate(query) -> text. It is breaker-gated and
// translates the backend's failure modes into the two kinds the
// pipeline's error taxonomy distinguishes.
package backend

import (
	"context"
	"errors"

	"github.com/micic-mihajlo/semantic-cache/internal/breaker"
)

// Generator produces a response for a query. Implementations are
// opaque to the cache — the backend may be any model, local or remote.
type Generator interface {
	Generate(ctx context.Context, query string) (string, error)
}

// ErrRateLimited and ErrBackendUnavailable are the two failure kinds
// the adapter surfaces; the pipeline maps these to their respective
// typed errors and HTTP status codes.
var (
	ErrRateLimited       = errors.New("backend rate limited")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrCircuitOpen        = errors.New("backend circuit open")
)

// BreakerGenerator wraps a Generator with circuit-breaker admission
// control, mirroring the way the vector store gates its own calls.
type BreakerGenerator struct {
	inner   Generator
	breaker *breaker.Breaker
}

// NewBreakerGenerator wraps inner with breaker-gated admission.
func NewBreakerGenerator(inner Generator, br *breaker.Breaker) *BreakerGenerator {
	return &BreakerGenerator{inner: inner, breaker: br}
}

// Generate checks breaker admission before calling through. A null or
// empty result from the inner generator is returned as the empty
// string, not as an error.
func (g *BreakerGenerator) Generate(ctx context.Context, query string) (string, error) {
	if !g.breaker.Allow() {
		return "", ErrCircuitOpen
	}

	answer, err := g.inner.Generate(ctx, query)
	if err != nil {
		g.breaker.RecordFailure()
		return "", err
	}
	g.breaker.RecordSuccess()
	return answer, nil
}

// EchoGenerator is a reference implementation used in tests and local
// runs without a configured backend: it fabricates a deterministic
// response so the pipeline's cache-miss path is exercisable end to end.
type EchoGenerator struct{}

func (EchoGenerator) Generate(_ context.Context, query string) (string, error) {
	return "echo: " + query, nil
}
