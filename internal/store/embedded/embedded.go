// Package embedded implements store.Store locally: SQLite for document and
// chunk metadata, Bleve for BM25 lexical search, and an HNSW graph for
// vector search. It exists so weavelens can run with no external services
// and so tests have a real store without network fakes.
package embedded

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/coder/hnsw"
	_ "modernc.org/sqlite"

	"github.com/weavelens/weavelens/internal/store"
)

const (
	dbFileName     = "weavelens.db"
	bleveDirName   = "lexical.bleve"
	vectorFileName = "vectors.hnsw"
)

// Config configures the embedded store.
type Config struct {
	// Dir is the data directory. Empty means fully in-memory (no
	// persistence), which is what tests use.
	Dir string

	// Dimensions is the expected embedding dimensionality. Zero means
	// adopt the dimensionality of the first vector written.
	Dimensions int
}

// Store is the embedded store.Store implementation.
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	lexical bleve.Index
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
	dims    int
	dir     string
	closed  bool
}

var _ store.Store = (*Store)(nil)

// chunkDoc is the shape indexed into Bleve.
type chunkDoc struct {
	Text string `json:"text"`
}

// vectorMeta is the persisted ID mapping for the HNSW graph.
type vectorMeta struct {
	IDMap   map[string]uint64
	NextKey uint64
	Dims    int
}

// Open creates or opens the embedded store at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	s := &Store{
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		dims:   cfg.Dimensions,
		dir:    cfg.Dir,
	}

	if err := s.openDB(); err != nil {
		return nil, err
	}
	if err := s.openLexical(); err != nil {
		_ = s.db.Close()
		return nil, err
	}
	if err := s.openVectors(); err != nil {
		_ = s.lexical.Close()
		_ = s.db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) openDB() error {
	var dsn string
	if s.dir == "" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(s.dir, dbFileName) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps the in-memory database alive and
	// serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL UNIQUE,
	path         TEXT NOT NULL,
	title        TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	ord          INTEGER NOT NULL,
	text         TEXT NOT NULL,
	token_count  INTEGER NOT NULL,
	source_path  TEXT NOT NULL,
	UNIQUE (document_id, ord)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) openLexical() error {
	if s.dir == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return fmt.Errorf("create in-memory lexical index: %w", err)
		}
		s.lexical = idx
		return nil
	}

	path := filepath.Join(s.dir, bleveDirName)
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	s.lexical = idx
	return nil
}

func (s *Store) openVectors() error {
	s.graph = newGraph()

	if s.dir == "" {
		return nil
	}

	path := filepath.Join(s.dir, vectorFileName)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open vector index: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Import requires an io.ByteReader, which a bare *os.File is not.
	if err := s.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import vector index: %w", err)
	}

	meta, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("open vector metadata: %w", err)
	}
	defer func() { _ = meta.Close() }()

	var vm vectorMeta
	if err := gob.NewDecoder(meta).Decode(&vm); err != nil {
		return fmt.Errorf("decode vector metadata: %w", err)
	}

	s.idMap = vm.IDMap
	s.nextKey = vm.NextKey
	if s.dims == 0 {
		s.dims = vm.Dims
	}
	s.keyMap = make(map[uint64]string, len(vm.IDMap))
	for id, key := range vm.IDMap {
		s.keyMap[key] = id
	}
	return nil
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 64
	return g
}

// ExistsByHash reports whether a document with the hash is indexed.
func (s *Store) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE content_hash = ?`, contentHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return true, nil
}

// UpsertDocument inserts the document unless its content hash already
// exists. The UNIQUE constraint on content_hash makes the operation
// idempotent under concurrent duplicate inserts: exactly one caller
// creates the row, everyone else observes created=false.
func (s *Store) UpsertDocument(ctx context.Context, doc *store.Document) (string, bool, error) {
	res, err := s.db.ExecContext(ctx, `
INSERT INTO documents (id, content_hash, path, title, size_bytes, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (content_hash) DO NOTHING`,
		doc.ID, doc.ContentHash, doc.Path, doc.Title, doc.SizeBytes, doc.CreatedAt)
	if err != nil {
		return "", false, fmt.Errorf("upsert document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("upsert document: %w", err)
	}
	if n > 0 {
		return doc.ID, true, nil
	}

	var existing string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE content_hash = ?`, doc.ContentHash).Scan(&existing)
	if err != nil {
		return "", false, fmt.Errorf("resolve existing document: %w", err)
	}
	return existing, false, nil
}

// UpsertChunks writes the chunk batch to SQLite and the lexical index, and
// adds vectors to the HNSW graph when provided.
func (s *Store) UpsertChunks(ctx context.Context, chunks []*store.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (id, document_id, ord, text, token_count, source_path)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, c.DocumentID, c.Order, c.Text, c.TokenCount, c.SourcePath); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk batch: %w", err)
	}

	batch := s.lexical.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, chunkDoc{Text: c.Text}); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}
	if err := s.lexical.Batch(batch); err != nil {
		return fmt.Errorf("lexical batch: %w", err)
	}

	if vectors != nil {
		if err := s.addVectors(chunks, vectors); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) addVectors(chunks []*store.Chunk, vectors [][]float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range chunks {
		vec := vectors[i]
		if len(vec) == 0 {
			continue
		}
		if s.dims == 0 {
			s.dims = len(vec)
		}
		if len(vec) != s.dims {
			return fmt.Errorf("vector dimension mismatch for chunk %s: expected %d, got %d", c.ID, s.dims, len(vec))
		}

		// Re-inserting an existing ID orphans the old graph node rather
		// than deleting it; deletes near the entry point can corrupt the
		// graph in coder/hnsw.
		if oldKey, ok := s.idMap[c.ID]; ok {
			delete(s.keyMap, oldKey)
			delete(s.idMap, c.ID)
		}

		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, vec))
		s.idMap[c.ID] = key
		s.keyMap[key] = c.ID
	}
	return nil
}

// QueryVector returns the k nearest chunks by cosine similarity.
func (s *Store) QueryVector(ctx context.Context, vector []float32, k int) ([]*store.Hit, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("store is closed")
	}
	if s.graph.Len() == 0 {
		s.mu.RUnlock()
		return []*store.Hit{}, nil
	}
	if s.dims != 0 && len(vector) != s.dims {
		s.mu.RUnlock()
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dims, len(vector))
	}

	// Over-fetch to compensate for orphaned keys from re-inserts.
	nodes := s.graph.Search(vector, k+len(s.keyMap)/10+1)

	type scored struct {
		id    string
		score float64
	}
	picked := make([]scored, 0, k)
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue
		}
		distance := s.graph.Distance(vector, node.Value)
		picked = append(picked, scored{id: id, score: cosineScore(distance)})
		if len(picked) == k {
			break
		}
	}
	s.mu.RUnlock()

	ids := make([]string, len(picked))
	for i, p := range picked {
		ids[i] = p.id
	}
	rows, err := s.fetchChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]*store.Hit, 0, len(picked))
	for _, p := range picked {
		c, ok := rows[p.id]
		if !ok {
			continue
		}
		hits = append(hits, &store.Hit{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Order:      c.Order,
			Text:       c.Text,
			SourcePath: c.SourcePath,
			Score:      p.score,
		})
	}
	return hits, nil
}

// QueryLexical returns the k best BM25 matches for the query text.
func (s *Store) QueryLexical(ctx context.Context, query string, k int) ([]*store.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []*store.Hit{}, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("text")
	req := bleve.NewSearchRequest(match)
	req.Size = k

	result, err := s.lexical.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	scores := make(map[string]float64, len(result.Hits))
	for _, h := range result.Hits {
		ids = append(ids, h.ID)
		scores[h.ID] = h.Score
	}

	rows, err := s.fetchChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]*store.Hit, 0, len(ids))
	for _, id := range ids {
		c, ok := rows[id]
		if !ok {
			continue
		}
		hits = append(hits, &store.Hit{
			ChunkID:    c.ID,
			DocumentID: c.DocumentID,
			Order:      c.Order,
			Text:       c.Text,
			SourcePath: c.SourcePath,
			Score:      scores[id],
		})
	}
	return hits, nil
}

// fetchChunks loads chunk rows by ID, preserving none of the input order;
// callers re-order by their own ranking.
func (s *Store) fetchChunks(ctx context.Context, ids []string) (map[string]*store.Chunk, error) {
	out := make(map[string]*store.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, ord, text, token_count, source_path FROM chunks WHERE id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("fetch chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var c store.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Order, &c.Text, &c.TokenCount, &c.SourcePath); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out[c.ID] = &c
	}
	return out, rows.Err()
}

// DocumentCount returns the number of indexed documents.
func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// ChunkCount returns the number of indexed chunks.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Ready probes the SQLite connection.
func (s *Store) Ready(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close persists the vector index (when a data directory is configured)
// and releases all resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.dir != "" {
		if err := s.saveVectors(); err != nil {
			firstErr = err
		}
	}
	if err := s.lexical.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (s *Store) saveVectors() error {
	path := filepath.Join(s.dir, vectorFileName)

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("export vector index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}

	meta, err := os.Create(path + ".meta")
	if err != nil {
		return fmt.Errorf("create vector metadata: %w", err)
	}
	defer func() { _ = meta.Close() }()

	return gob.NewEncoder(meta).Encode(vectorMeta{
		IDMap:   s.idMap,
		NextKey: s.nextKey,
		Dims:    s.dims,
	})
}

// cosineScore maps a cosine distance in [0,2] to a similarity in [0,1].
func cosineScore(distance float32) float64 {
	score := 1 - float64(distance)/2
	if score < 0 {
		return 0
	}
	return score
}
