package embed

import (
	"context"
	"encoding/binary"

	"github.com/weavelens/weavelens/internal/fingerprint"
)

// StaticEmbedder produces deterministic vectors derived from the text's
// hash. Identical text always yields the identical unit vector, so
// exact-match semantic lookups and the full pipeline work offline and in
// tests, at the cost of no real semantic similarity.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStatic creates a static embedder of the given width (0 = 64).
func NewStatic(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = 64
	}
	return &StaticEmbedder{dims: dims}
}

// Embed derives the vector from repeated hashing of the text.
func (s *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, s.dims)
	seed := []byte(fingerprint.Hash([]byte(text)))

	// Each hash round yields eight float32 components.
	buf := seed
	for i := 0; i < s.dims; i += 8 {
		buf = []byte(fingerprint.Hash(buf))
		for j := 0; j < 8 && i+j < s.dims; j++ {
			bits := binary.BigEndian.Uint32(buf[j*4 : j*4+4])
			vec[i+j] = float32(int32(bits)) / float32(1<<31)
		}
	}
	return normalize(vec), nil
}

// EmbedBatch embeds each text independently.
func (s *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := s.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the configured vector width.
func (s *StaticEmbedder) Dimensions() int { return s.dims }

// ModelName identifies the embedder.
func (s *StaticEmbedder) ModelName() string { return "static-hash" }

// Close is a no-op.
func (s *StaticEmbedder) Close() error { return nil }
