// Package pipeline implements the single request-processing entry
// point: classify, embed, search the vector cache, fall through to the
// backend on a miss, and persist the result.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/micic-mihajlo/semantic-cache/internal/backend"
	"github.com/micic-mihajlo/semantic-cache/internal/classifier"
	"github.com/micic-mihajlo/semantic-cache/internal/embedding"
	"github.com/micic-mihajlo/semantic-cache/internal/metrics"
	"github.com/micic-mihajlo/semantic-cache/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Metadata accompanies every response. Confidence is present only on
// cache hits.
type Metadata struct {
	Source     string   `json:"source"`
	Confidence *float64 `json:"confidence,omitempty"`
	Topic      string   `json:"topic,omitempty"`
}

// Result is the outcome of Process.
type Result struct {
	Response string   `json:"response"`
	Metadata Metadata `json:"metadata"`
}

// Pipeline wires the classifier, embedder, vector store, backend, and
// metrics registry into the request algorithm from the design's §4.6.
type Pipeline struct {
	Embedder embedding.Embedder
	Store    store.Store
	Backend  backend.Generator
	Metrics  *metrics.Registry
	Log      zerolog.Logger

	sf singleflight.Group
}

// Process runs the full classify -> embed -> search -> generate ->
// persist algorithm for a single query.
func (p *Pipeline) Process(ctx context.Context, query string, forceRefresh bool) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Reason: "query must not be empty or whitespace-only"}
	}

	t0 := time.Now()

	classification := classifier.Classify(query)
	p.Metrics.RecordClass(classification.Class)
	p.Metrics.RecordTopic(classification.Topic)

	emb, err := p.Embedder.Embed(ctx, query)
	if err != nil {
		p.Metrics.RecordError()
		return nil, err
	}

	if !forceRefresh {
		hit, searchErr := p.Store.Search(ctx, emb, classification.Threshold, classification.Topic)
		if searchErr != nil {
			p.Log.Warn().Err(searchErr).Msg("cache search failed, falling through to backend")
		}
		if hit != nil {
			elapsed := time.Since(t0).Seconds() * 1000
			p.Metrics.RecordCacheHit(elapsed)
			confidence := round4(1 - hit.Distance)
			topic := hit.Entry.Topic
			if topic == "" {
				topic = classification.Topic
			}
			return &Result{
				Response: hit.Entry.Response,
				Metadata: Metadata{
					Source:     "cache",
					Confidence: &confidence,
					Topic:      string(topic),
				},
			}, nil
		}
	}

	// Concurrent identical cold-cache queries are coalesced onto a single
	// backend call and a single store write, keyed by the same
	// content-addressed hash the store uses. This is a latency/cost
	// optimization the design permits but does not require (§9); it does
	// not change the response contract, since every waiter receives the
	// same Result the leader produced.
	resultAny, genErr, _ := p.sf.Do(sha256Hex(query), func() (interface{}, error) {
		answer, genErr := p.Backend.Generate(ctx, query)
		if genErr != nil {
			return nil, classifyBackendError(genErr)
		}

		if storeErr := p.Store.Store(ctx, store.CacheEntry{
			Query:     query,
			Response:  answer,
			Class:     classification.Class,
			Topic:     classification.Topic,
			CreatedAt: time.Now(),
			Embedding: emb,
		}, time.Duration(classification.TTLSecs)*time.Second); storeErr != nil {
			p.Log.Warn().Err(storeErr).Msg("cache store write failed")
		}

		return &Result{
			Response: answer,
			Metadata: Metadata{
				Source: "backend",
				Topic:  string(classification.Topic),
			},
		}, nil
	})
	if genErr != nil {
		p.Metrics.RecordError()
		return nil, genErr
	}

	elapsed := time.Since(t0).Seconds() * 1000
	p.Metrics.RecordCacheMiss(elapsed)

	return resultAny.(*Result), nil
}

func sha256Hex(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

func classifyBackendError(err error) error {
	switch {
	case errors.Is(err, backend.ErrRateLimited):
		return &RateLimitedError{Cause: err}
	case errors.Is(err, backend.ErrCircuitOpen):
		return &CircuitOpenError{Dependency: "backend"}
	default:
		return &BackendUnavailableError{Cause: err}
	}
}

func round4(v float64) float64 {
	const scale = 10000
	return float64(int64(v*scale+0.5)) / scale
}
