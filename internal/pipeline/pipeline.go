// Package pipeline wires configuration into a ready-to-use ingestion and
// retrieval facade.
//
// The pipeline owns its store and embedder handles; commands construct one
// pipeline, use it, and close it. Nothing here is a global.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/weavelens/weavelens/internal/config"
	"github.com/weavelens/weavelens/internal/embed"
	weaverrors "github.com/weavelens/weavelens/internal/errors"
	"github.com/weavelens/weavelens/internal/extract"
	"github.com/weavelens/weavelens/internal/index"
	"github.com/weavelens/weavelens/internal/search"
	"github.com/weavelens/weavelens/internal/store"
	"github.com/weavelens/weavelens/internal/store/embedded"
	"github.com/weavelens/weavelens/internal/store/weaviate"
)

// Pipeline bundles the ingestion and retrieval entry points over one store
// and one embedder.
type Pipeline struct {
	cfg       *config.Config
	store     store.Store
	embedder  embed.Embedder
	indexer   *index.Indexer
	retriever *search.Retriever
}

// New builds a pipeline from the validated configuration.
func New(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	emb, err := buildEmbedder(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	extractor := extract.New(extract.Config{
		OCR:            buildOCR(cfg),
		MinPageTextLen: cfg.OCR.MinPageTextLen,
		PDFZoom:        cfg.OCR.PDFZoom,
		RasterizerPath: cfg.OCR.RasterizerPath,
	})

	indexer := index.New(st, emb, extractor, index.Config{
		Workers:      cfg.Indexing.Workers,
		MaxFileSize:  cfg.Paths.MaxFileSizeBytes,
		MaxChars:     cfg.Chunking.MaxChars,
		OverlapChars: cfg.Chunking.OverlapChars,
		LockPath:     lockPath(cfg),
	})

	return &Pipeline{
		cfg:       cfg,
		store:     st,
		embedder:  emb,
		indexer:   indexer,
		retriever: search.New(st, emb),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case "weaviate":
		st, err := weaviate.New(ctx, weaviate.Config{
			URL:     cfg.Store.Weaviate.URL,
			APIKey:  cfg.Store.Weaviate.APIKey,
			Timeout: cfg.Store.Weaviate.Timeout,
		})
		if err != nil {
			return nil, weaverrors.StoreError("connect weaviate", err)
		}
		return st, nil
	default:
		st, err := embedded.Open(embedded.Config{
			Dir:        cfg.Store.DataDir,
			Dimensions: cfg.Embeddings.Dimensions,
		})
		if err != nil {
			return nil, weaverrors.StoreError("open embedded store", err)
		}
		return st, nil
	}
}

func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var inner embed.Embedder
	switch cfg.Embeddings.Provider {
	case "static":
		inner = embed.NewStatic(cfg.Embeddings.Dimensions)
	default:
		ollama, err := embed.NewOllama(embed.OllamaConfig{
			Host:       cfg.Embeddings.OllamaHost,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
			Timeout:    cfg.Embeddings.Timeout,
		})
		if err != nil {
			return nil, err
		}
		inner = ollama
	}

	return embed.NewCached(inner, cfg.Embeddings.CacheSize)
}

func buildOCR(cfg *config.Config) extract.OCREngine {
	if !cfg.OCR.Enabled {
		return extract.NoopOCR{}
	}
	return extract.NewTesseract(extract.TesseractConfig{
		Path:             cfg.OCR.TesseractPath,
		Languages:        cfg.OCR.Languages,
		FallbackLanguage: cfg.OCR.FallbackLanguage,
		Timeout:          cfg.OCR.Timeout,
	})
}

// lockPath places the run lock next to the embedded data; the remote
// backend needs no local exclusion.
func lockPath(cfg *config.Config) string {
	if cfg.Store.Backend != "embedded" || cfg.Store.DataDir == "" {
		return ""
	}
	return filepath.Join(cfg.Store.DataDir, "run.lock")
}

// Scan runs one ingestion pass over the configured roots. Extra roots,
// when given, replace the configured ones for this run.
func (p *Pipeline) Scan(ctx context.Context, roots []string) (*index.Stats, error) {
	if len(roots) == 0 {
		roots = p.cfg.Paths.Roots
	}
	return p.indexer.Run(ctx, roots)
}

// Search retrieves up to k results for the query. Zero k and empty mode
// fall back to the configured defaults.
func (p *Pipeline) Search(ctx context.Context, query string, k int, mode string) ([]search.Result, error) {
	if mode == "" {
		mode = p.cfg.Search.Mode
	}
	parsed, err := search.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = p.cfg.Search.MaxResults
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Search.Timeout)
	defer cancel()
	return p.retriever.Search(ctx, query, k, parsed)
}

// AskContext retrieves hybrid results and assembles the bounded context
// block for the query.
func (p *Pipeline) AskContext(ctx context.Context, query string, k int) (string, []search.Result, error) {
	if k <= 0 {
		k = p.cfg.Search.MaxResults
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Search.Timeout)
	defer cancel()
	return p.retriever.AskContext(ctx, query, k, p.cfg.Search.MaxContextChars)
}

// Ready probes the store backend.
func (p *Pipeline) Ready(ctx context.Context) error {
	return p.store.Ready(ctx)
}

// EmbedderModel reports the active embedding model name.
func (p *Pipeline) EmbedderModel() string {
	return p.embedder.ModelName()
}

// Store exposes the underlying store for status reporting.
func (p *Pipeline) Store() store.Store {
	return p.store
}

// Close releases the store and embedder.
func (p *Pipeline) Close() error {
	embErr := p.embedder.Close()
	if err := p.store.Close(); err != nil {
		return err
	}
	return embErr
}
