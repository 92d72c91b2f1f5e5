// Package store persists cache entries and serves vector similarity
// search over them. The Redis-backed implementation isolates every
// RediSearch call shape behind this package so the rest of the service
// depends only on the Store interface.
package store

import (
	"context"
	"time"

	"github.com/micic-mihajlo/semantic-cache/internal/classifier"
)

// CacheEntry is a single cached query/response pair.
type CacheEntry struct {
	Query     string
	Response  string
	Class     classifier.Class
	Topic     classifier.Topic
	CreatedAt time.Time
	Embedding []float32
}

// SearchResult is a successful similarity match.
type SearchResult struct {
	Entry    CacheEntry
	Distance float64
}

// Store persists cache entries and serves nearest-neighbor lookups over
// their embeddings. Implementations must never surface store failures
// to callers as errors that should fail the user's request: Search
// returns (nil, nil) on a miss OR on a degraded store, and Store writes
// are best-effort. The returned error is informational only, intended
// for logging at the call site.
type Store interface {
	// Search performs a topic-partitioned search (when topic is not
	// "general"), falling back to a global search when the partitioned
	// search has no eligible match. It returns nil when there is no
	// hit within threshold, when the store is unavailable, or on error.
	Search(ctx context.Context, embedding []float32, threshold float64, topic classifier.Topic) (*SearchResult, error)

	// Store writes/overwrites the entry at its content-addressed key
	// and sets the key to expire after ttl.
	Store(ctx context.Context, entry CacheEntry, ttl time.Duration) error

	Close() error
}
