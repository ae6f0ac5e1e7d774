// Package weaviate implements store.Store against a Weaviate instance over
// its REST and GraphQL APIs.
//
// Object IDs are deterministic UUIDs derived from content: the same
// document or chunk always maps to the same Weaviate object, so repeated
// writes collapse onto one object instead of accumulating duplicates.
package weaviate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/weavelens/weavelens/internal/fingerprint"
	"github.com/weavelens/weavelens/internal/store"
)

const (
	classDocument = "WeavelensDocument"
	classChunk    = "WeavelensChunk"

	defaultTimeout = 30 * time.Second
)

// Config configures the Weaviate client.
type Config struct {
	// URL is the base URL, e.g. "http://localhost:8080".
	URL string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	// Timeout bounds each request (0 = 30s).
	Timeout time.Duration
}

// Store is the Weaviate-backed store.Store implementation.
type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ store.Store = (*Store)(nil)

// New creates a client and ensures the weavelens schema classes exist.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("weaviate URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	s := &Store{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}

	if err := s.ensureClass(ctx, classDocument, [][2]string{
		{"contentHash", "text"},
		{"path", "text"},
		{"title", "text"},
		{"sizeBytes", "int"},
		{"createdAt", "date"},
	}); err != nil {
		return nil, err
	}
	if err := s.ensureClass(ctx, classChunk, [][2]string{
		{"chunkId", "text"},
		{"documentId", "text"},
		{"ord", "int"},
		{"text", "text"},
		{"tokenCount", "int"},
		{"sourcePath", "text"},
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// objectUUID maps an arbitrary identity string to a stable UUID, using the
// first 128 bits of its SHA-256.
func objectUUID(identity string) string {
	h := fingerprint.Hash([]byte(identity))
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:32]
}

func (s *Store) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("weaviate request %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if out != nil && resp.StatusCode < 300 && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Store) ensureClass(ctx context.Context, class string, props [][2]string) error {
	code, err := s.do(ctx, http.MethodGet, "/v1/schema/"+class, nil, nil)
	if err != nil {
		return err
	}
	if code == http.StatusOK {
		return nil
	}

	properties := make([]map[string]any, 0, len(props))
	for _, p := range props {
		properties = append(properties, map[string]any{
			"name":     p[0],
			"dataType": []string{p[1]},
		})
	}
	payload := map[string]any{
		"class":      class,
		"vectorizer": "none",
		"properties": properties,
	}

	code, err = s.do(ctx, http.MethodPost, "/v1/schema", payload, nil)
	if err != nil {
		return err
	}
	// 422 means another client created the class concurrently.
	if code != http.StatusOK && code != http.StatusUnprocessableEntity {
		return fmt.Errorf("create class %s: status %d", class, code)
	}
	return nil
}

// ExistsByHash probes the deterministic document object for the hash.
func (s *Store) ExistsByHash(ctx context.Context, contentHash string) (bool, error) {
	code, err := s.do(ctx, http.MethodGet, "/v1/objects/"+classDocument+"/"+objectUUID(contentHash), nil, nil)
	if err != nil {
		return false, err
	}
	switch code {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("existence check: status %d", code)
	}
}

// UpsertDocument creates the document under its hash-derived UUID via a
// plain POST, so the create/exists decision is made atomically by the
// server: of any number of racing writers exactly one observes
// created=true. An existing object is left untouched, matching the
// embedded backend's insert-or-nothing semantics.
func (s *Store) UpsertDocument(ctx context.Context, doc *store.Document) (string, bool, error) {
	payload := map[string]any{
		"id":    objectUUID(doc.ContentHash),
		"class": classDocument,
		"properties": map[string]any{
			"contentHash": doc.ContentHash,
			"path":        doc.Path,
			"title":       doc.Title,
			"sizeBytes":   doc.SizeBytes,
			"createdAt":   doc.CreatedAt.UTC().Format(time.RFC3339),
		},
	}

	code, err := s.do(ctx, http.MethodPost, "/v1/objects", payload, nil)
	if err != nil {
		return "", false, err
	}
	switch code {
	case http.StatusOK:
		return doc.ID, true, nil
	case http.StatusUnprocessableEntity:
		// "id already exists": the duplicate's content is identical by
		// construction, only its metadata differs and is discarded.
		return doc.ID, false, nil
	default:
		return "", false, fmt.Errorf("upsert document: status %d", code)
	}
}

// UpsertChunks writes the chunk batch via the batch objects endpoint.
func (s *Store) UpsertChunks(ctx context.Context, chunks []*store.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if vectors != nil && len(vectors) != len(chunks) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	objects := make([]map[string]any, 0, len(chunks))
	for i, c := range chunks {
		obj := map[string]any{
			"id":    objectUUID(c.ID),
			"class": classChunk,
			"properties": map[string]any{
				"chunkId":    c.ID,
				"documentId": c.DocumentID,
				"ord":        c.Order,
				"text":       c.Text,
				"tokenCount": c.TokenCount,
				"sourcePath": c.SourcePath,
			},
		}
		if vectors != nil && len(vectors[i]) > 0 {
			obj["vector"] = vectors[i]
		}
		objects = append(objects, obj)
	}

	var result []struct {
		Result struct {
			Errors *struct {
				Error []struct {
					Message string `json:"message"`
				} `json:"error"`
			} `json:"errors"`
		} `json:"result"`
	}
	code, err := s.do(ctx, http.MethodPost, "/v1/batch/objects", map[string]any{"objects": objects}, &result)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("batch upsert chunks: status %d", code)
	}
	for _, r := range result {
		if r.Result.Errors != nil && len(r.Result.Errors.Error) > 0 {
			return fmt.Errorf("batch upsert chunks: %s", r.Result.Errors.Error[0].Message)
		}
	}
	return nil
}

// graphQLHit mirrors the fields selected by both query kinds.
type graphQLHit struct {
	ChunkID    string `json:"chunkId"`
	DocumentID string `json:"documentId"`
	Ord        int    `json:"ord"`
	Text       string `json:"text"`
	SourcePath string `json:"sourcePath"`
	Additional struct {
		Certainty *float64 `json:"certainty"`
		Score     *string  `json:"score"`
	} `json:"_additional"`
}

func (s *Store) runGraphQL(ctx context.Context, query string) ([]graphQLHit, error) {
	var resp struct {
		Data struct {
			Get map[string][]graphQLHit `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	code, err := s.do(ctx, http.MethodPost, "/v1/graphql", map[string]string{"query": query}, &resp)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("graphql query: status %d", code)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("graphql query: %s", resp.Errors[0].Message)
	}
	return resp.Data.Get[classChunk], nil
}

func toHits(raw []graphQLHit) []*store.Hit {
	hits := make([]*store.Hit, 0, len(raw))
	for _, r := range raw {
		var score float64
		if r.Additional.Certainty != nil {
			score = *r.Additional.Certainty
		} else if r.Additional.Score != nil {
			if v, err := strconv.ParseFloat(*r.Additional.Score, 64); err == nil {
				score = v
			}
		}
		hits = append(hits, &store.Hit{
			ChunkID:    r.ChunkID,
			DocumentID: r.DocumentID,
			Order:      r.Ord,
			Text:       r.Text,
			SourcePath: r.SourcePath,
			Score:      score,
		})
	}
	return hits
}

// QueryVector runs a nearVector search; the score is Weaviate's certainty,
// already a similarity in [0,1].
func (s *Store) QueryVector(ctx context.Context, vector []float32, k int) ([]*store.Hit, error) {
	vec, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("encode query vector: %w", err)
	}

	query := fmt.Sprintf(`{
  Get {
    %s(nearVector: {vector: %s}, limit: %d) {
      chunkId documentId ord text sourcePath
      _additional { certainty }
    }
  }
}`, classChunk, vec, k)

	raw, err := s.runGraphQL(ctx, query)
	if err != nil {
		return nil, err
	}
	return toHits(raw), nil
}

// QueryLexical runs a bm25 search over the chunk text.
func (s *Store) QueryLexical(ctx context.Context, query string, k int) ([]*store.Hit, error) {
	if strings.TrimSpace(query) == "" {
		return []*store.Hit{}, nil
	}

	gql := fmt.Sprintf(`{
  Get {
    %s(bm25: {query: %s, properties: ["text"]}, limit: %d) {
      chunkId documentId ord text sourcePath
      _additional { score }
    }
  }
}`, classChunk, strconv.Quote(query), k)

	raw, err := s.runGraphQL(ctx, gql)
	if err != nil {
		return nil, err
	}
	return toHits(raw), nil
}

// Ready probes the readiness endpoint.
func (s *Store) Ready(ctx context.Context) error {
	code, err := s.do(ctx, http.MethodGet, "/v1/.well-known/ready", nil, nil)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("weaviate not ready: status %d", code)
	}
	return nil
}

// Close is a no-op; the HTTP client holds no persistent resources.
func (s *Store) Close() error {
	return nil
}
