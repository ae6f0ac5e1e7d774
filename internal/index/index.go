// Package index runs the ingestion pipeline: scan, deduplicate, extract,
// chunk, embed, persist.
//
// Files fan out to a bounded worker pool. Content-identical files collapse
// to one document via the SHA-256 hash; per-file local failures degrade to
// a skip, while transient infrastructure failures abort the run.
package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/weavelens/weavelens/internal/chunk"
	"github.com/weavelens/weavelens/internal/embed"
	weaverrors "github.com/weavelens/weavelens/internal/errors"
	"github.com/weavelens/weavelens/internal/extract"
	"github.com/weavelens/weavelens/internal/fingerprint"
	"github.com/weavelens/weavelens/internal/scanner"
	"github.com/weavelens/weavelens/internal/store"
)


// Stats summarizes one ingestion run. Counters are per run, not global.
type Stats struct {
	// FilesSeen is how many candidate files the scan produced.
	FilesSeen int `json:"files_seen"`

	// FilesIndexed is how many new documents were created.
	FilesIndexed int `json:"files_indexed"`

	// ChunksIndexed is how many chunks were written for new documents.
	ChunksIndexed int `json:"chunks_indexed"`

	// Skipped counts duplicates, empty extractions and per-file failures.
	Skipped int `json:"skipped"`
}

// Config configures an Indexer.
type Config struct {
	// Workers bounds extraction/embedding concurrency (0 = NumCPU).
	Workers int

	// MaxFileSize is passed to the scanner (0 = scanner default).
	MaxFileSize int64

	// MaxChars and OverlapChars configure chunking.
	MaxChars     int
	OverlapChars int

	// LockPath, when set, is an advisory file lock taken for the run so
	// concurrent runs over the same data directory do not interleave.
	LockPath string
}

// Indexer executes ingestion runs against a store and an embedder.
type Indexer struct {
	store     store.Store
	embedder  embed.Embedder
	extractor *extract.Extractor
	cfg       Config
}

// New creates an Indexer.
func New(st store.Store, emb embed.Embedder, ex *extract.Extractor, cfg Config) *Indexer {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = chunk.DefaultMaxChars
	}
	if cfg.OverlapChars < 0 {
		cfg.OverlapChars = 0
	}
	return &Indexer{store: st, embedder: emb, extractor: ex, cfg: cfg}
}

// counters accumulate across workers without a lock.
type counters struct {
	indexed atomic.Int64
	chunks  atomic.Int64
	skipped atomic.Int64
}

// Run scans roots and indexes everything new. The returned stats are valid
// even when err is non-nil; on cancellation they reflect the work finished
// before the abort.
func (ix *Indexer) Run(ctx context.Context, roots []string) (*Stats, error) {
	if ix.cfg.LockPath != "" {
		lock := flock.New(ix.cfg.LockPath)
		locked, err := lock.TryLock()
		if err != nil {
			return &Stats{}, weaverrors.Wrap(weaverrors.KindIO, "acquire run lock", err)
		}
		if !locked {
			return &Stats{}, weaverrors.New(weaverrors.KindValidation, "another indexing run holds the lock")
		}
		defer func() { _ = lock.Unlock() }()
	}

	started := time.Now()
	files, err := scanner.Scan(ctx, roots, scanner.Options{MaxFileSize: ix.cfg.MaxFileSize})
	if err != nil {
		return &Stats{}, err
	}

	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Workers)

	for _, fi := range files {
		g.Go(func() error {
			return ix.indexFile(gctx, fi, &c)
		})
	}
	err = g.Wait()

	stats := &Stats{
		FilesSeen:     len(files),
		FilesIndexed:  int(c.indexed.Load()),
		ChunksIndexed: int(c.chunks.Load()),
		Skipped:       int(c.skipped.Load()),
	}

	slog.Info("indexing run finished",
		slog.Int("files_seen", stats.FilesSeen),
		slog.Int("files_indexed", stats.FilesIndexed),
		slog.Int("chunks_indexed", stats.ChunksIndexed),
		slog.Int("skipped", stats.Skipped),
		slog.Duration("elapsed", time.Since(started)))
	return stats, err
}

// indexFile processes one candidate. Local problems (unreadable file,
// empty extraction, duplicate content) increment skipped and return nil;
// only transient infrastructure errors propagate and stop the run.
func (ix *Indexer) indexFile(ctx context.Context, fi scanner.FileInfo, c *counters) error {
	data, err := os.ReadFile(fi.Path)
	if err != nil {
		slog.Warn("skipping unreadable file",
			slog.String("path", fi.Path),
			slog.String("error", err.Error()))
		c.skipped.Add(1)
		return nil
	}

	hash := fingerprint.Hash(data)
	exists, err := ix.store.ExistsByHash(ctx, hash)
	if err != nil {
		return weaverrors.StoreError("existence check", err)
	}
	if exists {
		c.skipped.Add(1)
		return nil
	}

	text, err := ix.extractor.Extract(ctx, fi.Path)
	if err != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Warn("extraction failed, skipping file",
			slog.String("path", fi.Path),
			slog.String("error", err.Error()))
		c.skipped.Add(1)
		return nil
	}
	if text == "" {
		c.skipped.Add(1)
		return nil
	}

	pieces := chunk.Split(text, ix.cfg.MaxChars, ix.cfg.OverlapChars)
	if len(pieces) == 0 {
		c.skipped.Add(1)
		return nil
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	docID := fingerprint.DocumentID(hash)
	doc := &store.Document{
		ID:          docID,
		ContentHash: hash,
		Path:        fi.Path,
		Title:       filepath.Base(fi.Path),
		SizeBytes:   fi.Size,
		CreatedAt:   time.Now().UTC(),
	}

	id, created, err := ix.store.UpsertDocument(ctx, doc)
	if err != nil {
		return weaverrors.StoreError("upsert document", err)
	}
	if !created {
		// A concurrent worker indexed identical content between the
		// existence check and the upsert. The winner owns the counts.
		c.skipped.Add(1)
		return nil
	}

	chunks := make([]*store.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = &store.Chunk{
			ID:         fingerprint.ChunkID(id, p.Order),
			DocumentID: id,
			Order:      p.Order,
			Text:       p.Text,
			TokenCount: p.TokenCount,
			SourcePath: fi.Path,
		}
	}
	if err := ix.store.UpsertChunks(ctx, chunks, vectors); err != nil {
		return weaverrors.StoreError("upsert chunks", err)
	}

	c.indexed.Add(1)
	c.chunks.Add(int64(len(chunks)))
	slog.Debug("indexed file",
		slog.String("path", fi.Path),
		slog.String("document", id),
		slog.Int("chunks", len(chunks)))
	return nil
}
