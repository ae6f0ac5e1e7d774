package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavelens/weavelens/internal/config"
)

// testConfig is fully offline: static embeddings, in-memory store, no OCR.
func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Backend = "embedded"
	cfg.Store.DataDir = ""
	cfg.Embeddings.Provider = "static"
	cfg.Embeddings.Dimensions = 16
	cfg.OCR.Enabled = false
	cfg.Search.Timeout = 5 * time.Second
	return cfg
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(context.Background(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPipeline_ScanThenSearch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.txt"),
		[]byte("goroutines are lightweight threads managed by the runtime"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.txt"),
		[]byte("postgres uses write ahead logging for durability"), 0o644))

	p := newTestPipeline(t)
	ctx := context.Background()

	stats, err := p.Scan(ctx, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.FilesIndexed)

	results, err := p.Search(ctx, "postgres durability", 5, "lexical")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Text, "postgres")
}

func TestPipeline_AskContext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.txt"),
		[]byte("kubernetes schedules pods onto nodes"), 0o644))

	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.Scan(ctx, []string{dir})
	require.NoError(t, err)

	text, used, err := p.AskContext(ctx, "kubernetes pods", 5)
	require.NoError(t, err)
	assert.Contains(t, text, "kubernetes")
	assert.NotEmpty(t, used)
}

func TestPipeline_SearchRejectsUnknownMode(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.Search(context.Background(), "query", 5, "fuzzy")
	assert.Error(t, err)
}

func TestPipeline_ConfiguredRootsUsedByDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("configured root"), 0o644))

	cfg := testConfig()
	cfg.Paths.Roots = []string{dir}
	p, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	stats, err := p.Scan(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
}

func TestPipeline_Ready(t *testing.T) {
	p := newTestPipeline(t)
	assert.NoError(t, p.Ready(context.Background()))
}
