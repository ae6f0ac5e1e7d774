package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	weaverrors "github.com/weavelens/weavelens/internal/errors"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	defaultBatchSize  = 32
	maxAttempts       = 3
	baseBackoff       = 500 * time.Millisecond
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama base URL (empty = http://localhost:11434).
	Host string

	// Model is the embedding model name, e.g. "nomic-embed-text".
	Model string

	// Dimensions is the expected vector width (0 = adopt from the first
	// response).
	Dimensions int

	// BatchSize caps texts per request (0 = 32).
	BatchSize int

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// OllamaEmbedder produces embeddings via Ollama's /api/embed endpoint.
// Safe for concurrent use; indexing workers share one instance.
type OllamaEmbedder struct {
	host      string
	model     string
	batchSize int
	client    *http.Client

	mu   sync.Mutex
	dims int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllama creates an Ollama-backed embedder. It does not probe the
// server; the first Embed call surfaces connectivity errors.
func NewOllama(cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Model == "" {
		return nil, weaverrors.ValidationError("embedding model name is required")
	}
	host := cfg.Host
	if host == "" {
		host = defaultOllamaHost
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OllamaEmbedder{
		host:      strings.TrimRight(host, "/"),
		model:     cfg.Model,
		dims:      cfg.Dimensions,
		batchSize: batch,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the vector for one text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request-sized batches, preserving input order.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		vecs, err := e.request(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, weaverrors.EmbedderError("embedding request canceled", ctx.Err())
		}
		if attempt < maxAttempts {
			backoff := baseBackoff * time.Duration(1<<(attempt-1))
			slog.Warn("embedding request failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return nil, weaverrors.EmbedderError("embedding request canceled", ctx.Err())
			case <-time.After(backoff):
			}
		}
	}
	return nil, weaverrors.EmbedderError("embedding request failed after retries", lastErr)
}

func (e *OllamaEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Embeddings))
	}

	for i, vec := range parsed.Embeddings {
		if err := e.checkDims(vec); err != nil {
			return nil, fmt.Errorf("embedding at index %d: %w", i, err)
		}
		parsed.Embeddings[i] = normalize(vec)
	}
	return parsed.Embeddings, nil
}

// checkDims adopts the width of the first vector ever seen and rejects any
// later disagreement.
func (e *OllamaEmbedder) checkDims(vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = len(vec)
	}
	if len(vec) != e.dims {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", e.dims, len(vec))
	}
	return nil
}

// Dimensions returns the vector width, or 0 before the first response when
// not configured.
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dims
}

// ModelName returns the configured model name.
func (e *OllamaEmbedder) ModelName() string { return e.model }

// Close is a no-op.
func (e *OllamaEmbedder) Close() error { return nil }
