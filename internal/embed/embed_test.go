package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorLength(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

func TestNormalize_UnitLength(t *testing.T) {
	vec := normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, vectorLength(vec), 1e-6)
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	vec := normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, vec)
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStatic(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "hello world")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "different text")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, vectorLength(a), 1e-6)
}

func TestStaticEmbedder_BatchOrder(t *testing.T) {
	e := NewStatic(16)
	ctx := context.Background()

	vecs, err := e.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	one, err := e.Embed(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, one, vecs[0])
}

func newOllamaFake(t *testing.T, dims int, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.Equal(t, "/api/embed", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vecs := make([][]float32, len(req.Input))
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[0] = float32(len(req.Input[i]))
			vecs[i] = vec
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	var calls atomic.Int64
	srv := newOllamaFake(t, 4, &calls)

	e, err := NewOllama(OllamaConfig{Host: srv.URL, Model: "test-model", BatchSize: 2})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.EqualValues(t, 2, calls.Load(), "3 texts with batch size 2 means 2 requests")
	assert.Equal(t, 4, e.Dimensions())

	for _, v := range vecs {
		assert.InDelta(t, 1.0, vectorLength(v), 1e-6)
	}
}

func TestOllamaEmbedder_RetriesThenFails(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	e, err := NewOllama(OllamaConfig{Host: srv.URL, Model: "test-model", Timeout: time.Second})
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestOllamaEmbedder_RequiresModel(t *testing.T) {
	_, err := NewOllama(OllamaConfig{})
	assert.Error(t, err)
}

func TestOllamaEmbedder_EmptyBatch(t *testing.T) {
	e, err := NewOllama(OllamaConfig{Model: "m"})
	require.NoError(t, err)

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

// countingEmbedder records how many texts reached the inner embedder.
type countingEmbedder struct {
	*StaticEmbedder
	embedded atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedded.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.embedded.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_AvoidsRepeatWork(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStatic(8)}
	cached, err := NewCached(inner, 10)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "repeated")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "repeated")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, inner.embedded.Load())
}

func TestCachedEmbedder_BatchPartialHit(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStatic(8)}
	cached, err := NewCached(inner, 10)
	require.NoError(t, err)
	ctx := context.Background()

	warm, err := cached.Embed(ctx, "warm")
	require.NoError(t, err)

	vecs, err := cached.EmbedBatch(ctx, []string{"cold1", "warm", "cold2"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, warm, vecs[1])
	assert.EqualValues(t, 3, inner.embedded.Load(), "warm entry must not reach the inner embedder again")
}
