// Package config provides the weavelens configuration.
//
// Configuration is a single strongly-typed struct built once at startup:
// defaults, then an optional YAML file, then an enumerated set of
// WEAVELENS_* environment overrides. Validation happens once in Validate,
// not at call sites.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete weavelens configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	OCR        OCRConfig        `yaml:"ocr"`
	Store      StoreConfig      `yaml:"store"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Search     SearchConfig     `yaml:"search"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig configures the scan roots and limits.
type PathsConfig struct {
	// Roots are the directories or files to scan. Missing roots are
	// silently ignored at scan time.
	Roots []string `yaml:"roots"`

	// MaxFileSizeBytes is the largest file the scanner will yield.
	// Defaults to 100MB.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`
}

// ChunkingConfig configures the text chunker.
type ChunkingConfig struct {
	// MaxChars is the maximum chunk size in characters.
	MaxChars int `yaml:"max_chars"`

	// OverlapChars is the number of trailing characters shared with the
	// next chunk.
	OverlapChars int `yaml:"overlap_chars"`
}

// OCRConfig configures the OCR fallback for page-based and image files.
type OCRConfig struct {
	// Enabled selects the real OCR engine. When false a no-op engine is
	// used and OCR-only pages yield empty text.
	Enabled bool `yaml:"enabled"`

	// Languages is the tesseract language set tried first.
	Languages string `yaml:"languages"`

	// FallbackLanguage is tried when Languages fails.
	FallbackLanguage string `yaml:"fallback_language"`

	// MinPageTextLen is the text-layer length below which a PDF page is
	// sent to OCR.
	MinPageTextLen int `yaml:"min_page_text_len"`

	// PDFZoom is the rasterization zoom factor for OCR'd pages.
	PDFZoom float64 `yaml:"pdf_zoom"`

	// TesseractPath overrides the tesseract binary location.
	TesseractPath string `yaml:"tesseract_path"`

	// RasterizerPath overrides the pdftoppm binary location.
	RasterizerPath string `yaml:"rasterizer_path"`

	// Timeout bounds a single OCR invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig selects and configures the store backend.
type StoreConfig struct {
	// Backend is "embedded" (local SQLite + Bleve + HNSW) or "weaviate".
	Backend string `yaml:"backend"`

	// DataDir is the embedded store's data directory.
	DataDir string `yaml:"data_dir"`

	// Weaviate configures the remote store backend.
	Weaviate WeaviateConfig `yaml:"weaviate"`
}

// WeaviateConfig configures the Weaviate REST backend.
type WeaviateConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "ollama" or "static".
	Provider string `yaml:"provider"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// Dimensions is the embedding dimensionality (0 = auto-detect).
	Dimensions int `yaml:"dimensions"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size"`

	// Timeout bounds a single embedding request.
	Timeout time.Duration `yaml:"timeout"`

	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size"`
}

// SearchConfig configures the retriever.
type SearchConfig struct {
	// Mode is the default retrieval mode: "semantic", "lexical" or "hybrid".
	Mode string `yaml:"mode"`

	// MaxResults is the default k.
	MaxResults int `yaml:"max_results"`

	// MaxContextChars bounds the assembled answer context.
	MaxContextChars int `yaml:"max_context_chars"`

	// Timeout bounds a single store query.
	Timeout time.Duration `yaml:"timeout"`
}

// IndexingConfig configures the ingestion worker pool.
type IndexingConfig struct {
	// Workers is the number of concurrent file workers (0 = NumCPU).
	Workers int `yaml:"workers"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			MaxFileSizeBytes: 100 * 1024 * 1024,
		},
		Chunking: ChunkingConfig{
			MaxChars:     1200,
			OverlapChars: 200,
		},
		OCR: OCRConfig{
			Enabled:          true,
			Languages:        "rus+eng",
			FallbackLanguage: "eng",
			MinPageTextLen:   20,
			PDFZoom:          2.0,
			Timeout:          60 * time.Second,
		},
		Store: StoreConfig{
			Backend: "embedded",
			DataDir: defaultDataDir(),
			Weaviate: WeaviateConfig{
				URL:     "http://localhost:8080",
				Timeout: 15 * time.Second,
			},
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			OllamaHost: "http://localhost:11434",
			Model:      "nomic-embed-text",
			BatchSize:  32,
			Timeout:    60 * time.Second,
			CacheSize:  1000,
		},
		Search: SearchConfig{
			Mode:            "hybrid",
			MaxResults:      8,
			MaxContextChars: 4000,
			Timeout:         15 * time.Second,
		},
		Indexing: IndexingConfig{
			Workers: runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides enumerates every accepted environment variable and the
// field it maps to. There are no aliases: one name, one field.
func (c *Config) applyEnv() {
	if v := os.Getenv("WEAVELENS_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("WEAVELENS_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("WEAVELENS_WEAVIATE_URL"); v != "" {
		c.Store.Weaviate.URL = v
	}
	if v := os.Getenv("WEAVELENS_WEAVIATE_API_KEY"); v != "" {
		c.Store.Weaviate.APIKey = v
	}
	if v := os.Getenv("WEAVELENS_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("WEAVELENS_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("WEAVELENS_EMBED_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("WEAVELENS_OCR_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.OCR.Enabled = b
		}
	}
	if v := os.Getenv("WEAVELENS_OCR_LANGS"); v != "" {
		c.OCR.Languages = v
	}
	if v := os.Getenv("WEAVELENS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("WEAVELENS_INDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexing.Workers = n
		}
	}
}

// Validate checks the configuration for consistency. It is called once by
// Load; call sites may assume a validated config.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "embedded", "weaviate":
	default:
		return fmt.Errorf("store.backend must be \"embedded\" or \"weaviate\", got %q", c.Store.Backend)
	}

	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be \"ollama\" or \"static\", got %q", c.Embeddings.Provider)
	}

	switch c.Search.Mode {
	case "semantic", "lexical", "hybrid":
	default:
		return fmt.Errorf("search.mode must be \"semantic\", \"lexical\" or \"hybrid\", got %q", c.Search.Mode)
	}

	if c.Chunking.MaxChars <= 0 {
		return fmt.Errorf("chunking.max_chars must be positive, got %d", c.Chunking.MaxChars)
	}
	if c.Chunking.OverlapChars < 0 {
		return fmt.Errorf("chunking.overlap_chars must not be negative, got %d", c.Chunking.OverlapChars)
	}
	if c.Chunking.OverlapChars >= c.Chunking.MaxChars {
		return fmt.Errorf("chunking.overlap_chars (%d) must be smaller than max_chars (%d)",
			c.Chunking.OverlapChars, c.Chunking.MaxChars)
	}

	if c.OCR.MinPageTextLen < 0 {
		return fmt.Errorf("ocr.min_page_text_len must not be negative, got %d", c.OCR.MinPageTextLen)
	}
	if c.OCR.PDFZoom <= 0 {
		return fmt.Errorf("ocr.pdf_zoom must be positive, got %v", c.OCR.PDFZoom)
	}

	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	if c.Search.MaxContextChars <= 0 {
		return fmt.Errorf("search.max_context_chars must be positive, got %d", c.Search.MaxContextChars)
	}

	if c.Store.Backend == "weaviate" && c.Store.Weaviate.URL == "" {
		return fmt.Errorf("store.weaviate.url is required for the weaviate backend")
	}

	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weavelens"
	}
	return home + string(os.PathSeparator) + ".weavelens"
}
