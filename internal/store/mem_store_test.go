package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/micic-mihajlo/semantic-cache/internal/classifier"
	"github.com/micic-mihajlo/semantic-cache/internal/store"
)

func TestMemStoreRoundTripSearchBySameVector(t *testing.T) {
	s := store.NewMemStore(0)
	ctx := context.Background()
	vec := []float32{1, 0, 0}

	err := s.Store(ctx, store.CacheEntry{
		Query:     "what is the capital of France",
		Response:  "Paris",
		Class:     classifier.Evergreen,
		Topic:     classifier.TopicGeography,
		CreatedAt: time.Now(),
		Embedding: vec,
	}, time.Hour)
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	res, err := s.Search(ctx, vec, 0.01, classifier.TopicGeography)
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if res == nil {
		t.Fatalf("expected a hit searching with the exact stored vector")
	}
	if res.Entry.Response != "Paris" {
		t.Fatalf("unexpected response: %q", res.Entry.Response)
	}
	if res.Distance > 1e-6 {
		t.Fatalf("expected ~0 distance for an identical vector, got %f", res.Distance)
	}
}

func TestMemStoreOverwriteDoesNotDuplicate(t *testing.T) {
	s := store.NewMemStore(0)
	ctx := context.Background()
	vec := []float32{1, 0, 0}

	for _, answer := range []string{"answer 1", "answer 2", "answer 3"} {
		_ = s.Store(ctx, store.CacheEntry{
			Query:     "same query",
			Response:  answer,
			Topic:     classifier.TopicGeneral,
			Embedding: vec,
		}, time.Hour)
	}

	res, _ := s.Search(ctx, vec, 0.01, classifier.TopicGeneral)
	if res == nil {
		t.Fatalf("expected a hit after repeated overwrite-store of the same query")
	}
	if res.Entry.Response != "answer 3" {
		t.Fatalf("expected the last write to replace earlier ones, got %q", res.Entry.Response)
	}
}

func TestMemStoreThresholdMonotonicity(t *testing.T) {
	s := store.NewMemStore(0)
	ctx := context.Background()

	_ = s.Store(ctx, store.CacheEntry{
		Query:     "q",
		Response:  "a",
		Topic:     classifier.TopicGeneral,
		Embedding: []float32{1, 0, 0},
	}, time.Hour)

	probe := []float32{0.7, 0.7, 0}

	if res, _ := s.Search(ctx, probe, 0.0001, classifier.TopicGeneral); res != nil {
		t.Fatalf("expected no hit at a very tight threshold")
	}
	if res, _ := s.Search(ctx, probe, 0.9, classifier.TopicGeneral); res == nil {
		t.Fatalf("expected a hit once the threshold is loose enough")
	}
}

func TestMemStorePartitionedSearchFallsBackToGlobal(t *testing.T) {
	s := store.NewMemStore(0)
	ctx := context.Background()
	vec := []float32{1, 0, 0}

	// Entry lives under "finance", but the query classifies as "sports".
	_ = s.Store(ctx, store.CacheEntry{
		Query:     "who won the match",
		Response:  "the home team",
		Topic:     classifier.TopicFinance,
		Embedding: vec,
	}, time.Hour)

	res, err := s.Search(ctx, vec, 0.01, classifier.TopicSports)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatalf("expected the partitioned miss to fall back to a global hit")
	}
	if res.Entry.Response != "the home team" {
		t.Fatalf("unexpected response from fallback search: %q", res.Entry.Response)
	}
}

func TestMemStoreExpiredEntryIsNotAHit(t *testing.T) {
	s := store.NewMemStore(0)
	ctx := context.Background()
	vec := []float32{1, 0, 0}

	_ = s.Store(ctx, store.CacheEntry{
		Query:     "time sensitive query",
		Response:  "stale",
		Topic:     classifier.TopicGeneral,
		Embedding: vec,
	}, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	res, _ := s.Search(ctx, vec, 0.01, classifier.TopicGeneral)
	if res != nil {
		t.Fatalf("expected expired entry to be invisible to search")
	}
}

func TestMemStoreShortestTTLFirstEviction(t *testing.T) {
	s := store.NewMemStore(1)
	ctx := context.Background()

	_ = s.Store(ctx, store.CacheEntry{
		Query:     "evergreen fact",
		Response:  "a",
		Topic:     classifier.TopicGeneral,
		Embedding: []float32{1, 0, 0},
	}, 604800*time.Second)

	_ = s.Store(ctx, store.CacheEntry{
		Query:     "time sensitive fact",
		Response:  "b",
		Topic:     classifier.TopicGeneral,
		Embedding: []float32{0, 1, 0},
	}, 300*time.Second)

	// Capacity is 1: once the second entry pushes the store over
	// capacity, the entry with the soonest expiry is evicted — here
	// that is the just-inserted short-TTL entry itself.
	res, _ := s.Search(ctx, []float32{0, 1, 0}, 0.01, classifier.TopicGeneral)
	if res != nil {
		t.Fatalf("expected the shortest-TTL entry to have been evicted")
	}

	res, _ = s.Search(ctx, []float32{1, 0, 0}, 0.01, classifier.TopicGeneral)
	if res == nil {
		t.Fatalf("expected the longer-TTL entry to survive eviction")
	}
}
