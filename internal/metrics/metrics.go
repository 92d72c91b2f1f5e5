// Package metrics collects counters and latency sums for the cache
// pipeline and renders a zero-safe-division snapshot for /stats.
package metrics

import (
	"sync"

	"github.com/micic-mihajlo/semantic-cache/internal/classifier"
)

// Registry is a thread-safe metrics collector. The zero value is not
// usable; construct with New.
type Registry struct {
	mu sync.Mutex

	totalQueries int64
	cacheHits    int64
	cacheMisses  int64
	backendCalls int64
	errors       int64

	totalLatencyMs   float64
	cacheLatencyMs   float64
	backendLatencyMs float64

	classCounts map[classifier.Class]int64
	topicCounts map[classifier.Topic]int64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		classCounts: make(map[classifier.Class]int64),
		topicCounts: make(map[classifier.Topic]int64),
	}
}

// RecordCacheHit records a served-from-cache query and its latency.
func (r *Registry) RecordCacheHit(latencyMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalQueries++
	r.cacheHits++
	r.totalLatencyMs += latencyMs
	r.cacheLatencyMs += latencyMs
}

// RecordCacheMiss records a query that fell through to the backend and
// its end-to-end latency, including the backend round-trip.
func (r *Registry) RecordCacheMiss(latencyMs float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalQueries++
	r.cacheMisses++
	r.backendCalls++
	r.totalLatencyMs += latencyMs
	r.backendLatencyMs += latencyMs
}

// RecordClass tallies the freshness class assigned by the classifier.
func (r *Registry) RecordClass(c classifier.Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classCounts[c]++
}

// RecordTopic tallies the topic partition assigned by the classifier.
func (r *Registry) RecordTopic(t classifier.Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topicCounts[t]++
}

// RecordError increments the error counter. It does not affect
// total_queries: only RecordCacheHit and RecordCacheMiss count queries,
// so a request that fails (e.g. an embedding or backend error) is
// counted as an error and not as a query.
func (r *Registry) RecordError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

// LatencyStats is the averaged-latency section of a Snapshot.
type LatencyStats struct {
	AvgTotalMs   float64 `json:"avg_total_ms"`
	AvgCacheMs   float64 `json:"avg_cache_ms"`
	AvgBackendMs float64 `json:"avg_backend_ms"`
}

// Snapshot is a point-in-time, read-only view of the registry.
type Snapshot struct {
	TotalQueries   int64            `json:"total_queries"`
	CacheHits      int64            `json:"cache_hits"`
	CacheMisses    int64            `json:"cache_misses"`
	HitRatePercent float64          `json:"hit_rate_percent"`
	BackendCalls   int64            `json:"backend_calls"`
	Errors         int64            `json:"errors"`
	Latency        LatencyStats     `json:"latency"`
	Classes        map[string]int64 `json:"query_classes"`
	Topics         map[string]int64 `json:"topics"`
}

func safeDiv(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// Snapshot returns the current metrics. All rate and average fields are
// zero when their denominator is zero, never NaN or Inf.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	hitRate := safeDiv(float64(r.cacheHits)*100, float64(r.totalQueries))
	avgTotal := safeDiv(r.totalLatencyMs, float64(r.totalQueries))
	avgCache := safeDiv(r.cacheLatencyMs, float64(r.cacheHits))
	avgBackend := safeDiv(r.backendLatencyMs, float64(r.backendCalls))

	classes := make(map[string]int64, len(r.classCounts))
	for c, n := range r.classCounts {
		classes[string(c)] = n
	}
	topics := make(map[string]int64, len(r.topicCounts))
	for t, n := range r.topicCounts {
		topics[string(t)] = n
	}

	return Snapshot{
		TotalQueries:   r.totalQueries,
		CacheHits:      r.cacheHits,
		CacheMisses:    r.cacheMisses,
		HitRatePercent: round2(hitRate),
		BackendCalls:   r.backendCalls,
		Errors:         r.errors,
		Latency: LatencyStats{
			AvgTotalMs:   round2(avgTotal),
			AvgCacheMs:   round2(avgCache),
			AvgBackendMs: round2(avgBackend),
		},
		Classes: classes,
		Topics:  topics,
	}
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

// Reset zeroes every counter and histogram. Intended for test fixtures
// and admin tooling, not normal request handling.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalQueries = 0
	r.cacheHits = 0
	r.cacheMisses = 0
	r.backendCalls = 0
	r.errors = 0
	r.totalLatencyMs = 0
	r.cacheLatencyMs = 0
	r.backendLatencyMs = 0
	r.classCounts = make(map[classifier.Class]int64)
	r.topicCounts = make(map[classifier.Topic]int64)
}
