package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/weavelens/weavelens/internal/fingerprint"
)

// CachedEmbedder decorates another Embedder with an LRU cache keyed on the
// text's content hash. Rescans of unchanged corpora hit the cache instead
// of the embedding service.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCached wraps inner with a cache of the given size (0 = 1000 entries).
func NewCached(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1000
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector when present, otherwise delegates.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := fingerprint.Hash([]byte(text))
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch serves cached entries and delegates only the misses, in one
// inner batch call, preserving input order.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		keys[i] = fingerprint.Hash([]byte(t))
		if vec, ok := c.cache.Get(keys[i]); ok {
			out[i] = vec
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.cache.Add(keys[i], vecs[j])
	}
	return out, nil
}

// Dimensions delegates to the inner embedder.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelName delegates to the inner embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }
