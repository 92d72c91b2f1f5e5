package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder produces a fixed-dimension, L2-normalized embedding for a
// text string. Implementations must be safe for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// HashEmbedder is a deterministic, dependency-free reference embedder.
// It projects a bag-of-words representation of the text into a fixed
// dimension via feature hashing, then L2-normalizes the result. It is
// not a real semantic model, but near-duplicate phrasings of the same
// question hash into overlapping buckets, so it reproduces the
// round-trip and threshold behavior the pipeline depends on.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a HashEmbedder producing vectors of the given
// dimension. dim must be positive; callers normally pass the
// deployment-wide EmbeddingDim constant (384 in the reference).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashEmbedder{dim: dim}
}

func (e *HashEmbedder) Dim() int { return e.dim }

// Embed is synchronous and CPU-bound; it does not block on I/O and is
// safe to call from multiple goroutines concurrently.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dim)

	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{""}
	}

	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		bucket := int(h.Sum32()) % e.dim
		if bucket < 0 {
			bucket += e.dim
		}
		vec[bucket] += 1

		// A second, shifted hash spreads signal across more buckets so
		// single-word overlap between two queries nudges cosine
		// similarity even when the exact bucket collides.
		h2 := fnv.New32a()
		_, _ = h2.Write([]byte(w + "#2"))
		bucket2 := int(h2.Sum32()) % e.dim
		if bucket2 < 0 {
			bucket2 += e.dim
		}
		vec[bucket2] += 0.5
	}

	normalize(vec)
	return vec, nil
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
}
