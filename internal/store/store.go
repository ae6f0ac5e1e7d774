// Package store defines the narrow persistence capability the pipeline
// depends on.
//
// The pipeline never owns an index structure itself; it talks to a Store
// through this interface. Two backends exist: an embedded local store
// (SQLite metadata + Bleve BM25 + HNSW vectors) and a Weaviate REST
// backend. The critical contract is idempotency: UpsertDocument keyed on
// ContentHash must be safe under concurrent duplicate inserts, because the
// existence check and the upsert are not atomic across callers.
package store

import (
	"context"
	"time"
)

// Document is one indexed source file, identified by its content hash.
// Documents are immutable once created and never deleted by the pipeline.
type Document struct {
	// ID is the store identity, derived from ContentHash.
	ID string

	// ContentHash is the SHA-256 of the raw file bytes. At most one
	// Document per hash ever exists.
	ContentHash string

	// Path is the last known file location.
	Path string

	// Title is the display name (base file name).
	Title string

	// SizeBytes is the raw file size.
	SizeBytes int64

	// CreatedAt is when the document was first indexed.
	CreatedAt time.Time
}

// Chunk is one retrievable text segment belonging to exactly one Document.
// The chunk set of a document is immutable once written.
type Chunk struct {
	// ID is the stable chunk identity, derived from (document ID, order).
	ID string

	// DocumentID is the owning document's identity.
	DocumentID string

	// Order is the zero-based, contiguous position within the document.
	Order int

	// Text is the chunk content.
	Text string

	// TokenCount is the whitespace token count of Text.
	TokenCount int

	// SourcePath is the owning document's path, denormalized for hits.
	SourcePath string
}

// Hit is one retrieval result.
type Hit struct {
	ChunkID    string
	DocumentID string
	Order      int
	Text       string
	SourcePath string

	// Score is the backend's native relevance. For vector queries it is a
	// similarity in [0,1] (higher is better, derived from distance); for
	// lexical queries it is the BM25 relevance (higher is better).
	Score float64
}

// Store is the persistence capability consumed by the indexer and
// retriever.
type Store interface {
	// ExistsByHash reports whether a document with the content hash is
	// already indexed. The result is advisory: a concurrent writer may
	// create the document between this check and an upsert.
	ExistsByHash(ctx context.Context, contentHash string) (bool, error)

	// UpsertDocument inserts the document if its content hash is new and
	// returns the document ID. The operation is idempotent on
	// ContentHash: on a duplicate it returns the existing ID with
	// created=false and writes nothing.
	UpsertDocument(ctx context.Context, doc *Document) (id string, created bool, err error)

	// UpsertChunks writes a document's chunk batch with optional
	// embedding vectors (nil vectors skips the vector index). vectors,
	// when non-nil, is parallel to chunks.
	UpsertChunks(ctx context.Context, chunks []*Chunk, vectors [][]float32) error

	// QueryVector returns up to k nearest chunks to the query vector,
	// best (highest similarity) first.
	QueryVector(ctx context.Context, vector []float32, k int) ([]*Hit, error)

	// QueryLexical returns up to k keyword-matching chunks, best score
	// first.
	QueryLexical(ctx context.Context, query string, k int) ([]*Hit, error)

	// Ready probes the backend, returning an error when it is unusable.
	Ready(ctx context.Context) error

	// Close releases the backend resources.
	Close() error
}
