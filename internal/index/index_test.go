package index

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weavelens/weavelens/internal/embed"
	"github.com/weavelens/weavelens/internal/extract"
	"github.com/weavelens/weavelens/internal/store/embedded"
)

func newTestIndexer(t *testing.T, cfg Config) *Indexer {
	t.Helper()
	st, err := embedded.Open(embedded.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return New(st, embed.NewStatic(16), extract.New(extract.Config{}), cfg)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_EmptyRoots(t *testing.T) {
	ix := newTestIndexer(t, Config{})

	stats, err := ix.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
}

func TestRun_IndexesNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha document content")
	writeFile(t, dir, "b.md", "# beta\n\nmore content here")

	ix := newTestIndexer(t, Config{Workers: 2})
	stats, err := ix.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesSeen)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.ChunksIndexed)
	assert.Equal(t, 0, stats.Skipped)
}

func TestRun_RescanSkipsEverything(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "stable content")

	ix := newTestIndexer(t, Config{})
	first, err := ix.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Equal(t, 1, first.FilesIndexed)

	second, err := ix.Run(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Equal(t, 1, second.FilesSeen)
	assert.Equal(t, 0, second.FilesIndexed)
	assert.Equal(t, 0, second.ChunksIndexed)
	assert.Equal(t, 1, second.Skipped)
}

func TestRun_ContentDuplicatesCollapse(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.txt", "identical bytes")
	writeFile(t, dir, "copy/two.txt", "identical bytes")

	// Workers race on identical content; the hash constraint must let
	// exactly one create the document.
	ix := newTestIndexer(t, Config{Workers: 4})
	stats, err := ix.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesSeen)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestRun_EmptyFileSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.txt", "   \n\t  ")

	ix := newTestIndexer(t, Config{})
	stats, err := ix.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesSeen)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestRun_LongDocumentMultipleChunks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "long.txt", strings.Repeat("lorem ipsum dolor sit amet ", 200))

	ix := newTestIndexer(t, Config{MaxChars: 500, OverlapChars: 100})
	stats, err := ix.Run(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Greater(t, stats.ChunksIndexed, 5)
}

func TestRun_LockExcludesConcurrentRuns(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(t.TempDir(), "run.lock")
	writeFile(t, dir, "a.txt", "content")

	held := flock.New(lockPath)
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = held.Unlock() }()

	ix := newTestIndexer(t, Config{LockPath: lockPath})
	stats, err := ix.Run(context.Background(), []string{dir})
	require.Error(t, err)
	assert.Equal(t, &Stats{}, stats)
}

func TestRun_Cancellation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix := newTestIndexer(t, Config{})
	stats, err := ix.Run(ctx, []string{dir})
	assert.Error(t, err)
	assert.NotNil(t, stats)
}
