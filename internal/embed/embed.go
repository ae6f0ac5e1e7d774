// Package embed turns text into dense vectors for semantic retrieval.
//
// The pipeline depends only on the Embedder interface. The production
// implementation talks to an Ollama server; a deterministic static
// embedder serves offline operation and tests; a caching decorator avoids
// re-embedding repeated text.
package embed

import (
	"context"
	"math"
)

// Embedder produces embedding vectors for text.
type Embedder interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector width this embedder produces.
	Dimensions() int

	// ModelName identifies the underlying model.
	ModelName() string

	// Close releases any resources.
	Close() error
}

// normalize scales the vector to unit length in place and returns it.
// Zero vectors are returned unchanged.
func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
