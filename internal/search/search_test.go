package search

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavelens/weavelens/internal/embed"
	"github.com/weavelens/weavelens/internal/store"
)

// fakeStore serves canned hits and records requested sizes.
type fakeStore struct {
	vectorHits  []*store.Hit
	lexicalHits []*store.Hit
	vectorK     int
	lexicalK    int
}

func (f *fakeStore) ExistsByHash(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) UpsertDocument(context.Context, *store.Document) (string, bool, error) {
	return "", false, nil
}
func (f *fakeStore) UpsertChunks(context.Context, []*store.Chunk, [][]float32) error { return nil }
func (f *fakeStore) Ready(context.Context) error                                     { return nil }
func (f *fakeStore) Close() error                                                    { return nil }

func (f *fakeStore) QueryVector(_ context.Context, _ []float32, k int) ([]*store.Hit, error) {
	f.vectorK = k
	return f.vectorHits, nil
}

func (f *fakeStore) QueryLexical(_ context.Context, _ string, k int) ([]*store.Hit, error) {
	f.lexicalK = k
	return f.lexicalHits, nil
}

func hit(id string, score float64) *store.Hit {
	return &store.Hit{
		ChunkID:    id,
		DocumentID: strings.SplitN(id, ":", 2)[0],
		Text:       "text of " + id,
		SourcePath: "/docs/" + id,
		Score:      score,
	}
}

func newRetriever(f *fakeStore) *Retriever {
	return New(f, embed.NewStatic(8))
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHybrid, mode)

	mode, err = ParseMode("lexical")
	require.NoError(t, err)
	assert.Equal(t, ModeLexical, mode)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	r := newRetriever(&fakeStore{})
	_, err := r.Search(context.Background(), "   ", 5, ModeHybrid)
	assert.Error(t, err)
}

func TestSearch_SemanticMode(t *testing.T) {
	f := &fakeStore{vectorHits: []*store.Hit{hit("d1:0", 0.9)}}
	r := newRetriever(f)

	results, err := r.Search(context.Background(), "query", 5, ModeSemantic)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Semantic)
	assert.Equal(t, 5, f.vectorK)
}

func TestSearch_LexicalMode(t *testing.T) {
	f := &fakeStore{lexicalHits: []*store.Hit{hit("d1:0", 2.1)}}
	r := newRetriever(f)

	results, err := r.Search(context.Background(), "query", 5, ModeLexical)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Semantic)
}

func TestSearch_HybridMergesAndDeduplicates(t *testing.T) {
	f := &fakeStore{
		vectorHits: []*store.Hit{
			hit("d1:0", 0.95),
			hit("d2:0", 0.80),
		},
		lexicalHits: []*store.Hit{
			hit("d2:0", 3.0), // duplicate of a semantic hit
			hit("d3:0", 2.0),
		},
	}
	r := newRetriever(f)

	results, err := r.Search(context.Background(), "query", 5, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Semantic hits first by similarity; the duplicate keeps its
	// semantic score and position.
	assert.Equal(t, "d1:0", results[0].ChunkID)
	assert.Equal(t, "d2:0", results[1].ChunkID)
	assert.InDelta(t, 0.80, results[1].Score, 1e-9)
	assert.True(t, results[1].Semantic)
	assert.Equal(t, "d3:0", results[2].ChunkID)
	assert.False(t, results[2].Semantic)
}

func TestSearch_HybridOverFetches(t *testing.T) {
	f := &fakeStore{}
	r := newRetriever(f)

	_, err := r.Search(context.Background(), "query", 4, ModeHybrid)
	require.NoError(t, err)
	assert.Equal(t, 8, f.vectorK)
	assert.Equal(t, 8, f.lexicalK)
}

func TestSearch_HybridCapsAtK(t *testing.T) {
	f := &fakeStore{
		vectorHits: []*store.Hit{
			hit("d1:0", 0.9), hit("d2:0", 0.8), hit("d3:0", 0.7),
		},
		lexicalHits: []*store.Hit{
			hit("d4:0", 3.0), hit("d5:0", 2.0),
		},
	}
	r := newRetriever(f)

	results, err := r.Search(context.Background(), "query", 3, ModeHybrid)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearch_HybridDeterministicTieBreak(t *testing.T) {
	f := &fakeStore{
		lexicalHits: []*store.Hit{
			hit("d2:0", 1.5),
			hit("d1:0", 1.5),
		},
	}
	r := newRetriever(f)

	results, err := r.Search(context.Background(), "query", 5, ModeHybrid)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "d1:0", results[0].ChunkID)
	assert.Equal(t, "d2:0", results[1].ChunkID)
}

func TestAskContext_JoinsWithSeparator(t *testing.T) {
	f := &fakeStore{
		vectorHits: []*store.Hit{
			hit("d1:0", 0.9),
			hit("d2:0", 0.8),
		},
	}
	r := newRetriever(f)

	text, used, err := r.AskContext(context.Background(), "query", 5, 4000)
	require.NoError(t, err)
	assert.Equal(t, "text of d1:0\n\n---\n\ntext of d2:0", text)
	assert.Len(t, used, 2)
}

func TestAskContext_DropsOversizedChunksWhole(t *testing.T) {
	big := &store.Hit{ChunkID: "d1:0", DocumentID: "d1", Text: strings.Repeat("x", 100), Score: 0.9}
	small := &store.Hit{ChunkID: "d2:0", DocumentID: "d2", Text: "fits", Score: 0.8}
	f := &fakeStore{vectorHits: []*store.Hit{big, small}}
	r := newRetriever(f)

	text, used, err := r.AskContext(context.Background(), "query", 5, 50)
	require.NoError(t, err)
	assert.Equal(t, "fits", text)
	require.Len(t, used, 1)
	assert.Equal(t, "d2:0", used[0].ChunkID)
}

func TestAskContext_FewerResultsThanK(t *testing.T) {
	f := &fakeStore{vectorHits: []*store.Hit{hit("d1:0", 0.9)}}
	r := newRetriever(f)

	text, used, err := r.AskContext(context.Background(), "query", 5, 4000)
	require.NoError(t, err)
	assert.Equal(t, "text of d1:0", text)
	assert.Len(t, used, 1)
}
