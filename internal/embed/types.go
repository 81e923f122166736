// Package embed turns chunk and query text into vectors.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per embedding call
	// while building an index.
	DefaultBatchSize = 100

	// MaxBatchSize caps a single request to bound memory.
	MaxBatchSize = 512

	// DefaultTimeout applies to one embedding request.
	DefaultTimeout = 60 * time.Second

	// DefaultCacheSize is the number of query embeddings kept in memory.
	DefaultCacheSize = 1000
)

// StaticDimensions is the vector size of the hash-based embedder.
const StaticDimensions = 256

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in order; the result has one vector per text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
