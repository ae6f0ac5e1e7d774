// Package search retrieves indexed chunks and assembles bounded context
// blocks for downstream prompting.
//
// Hybrid mode runs the semantic and lexical queries side by side and
// merges them: duplicates collapse to the semantic copy, semantic hits
// rank first, and ties break deterministically so identical queries return
// identical results.
package search

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/weavelens/weavelens/internal/embed"
	weaverrors "github.com/weavelens/weavelens/internal/errors"
	"github.com/weavelens/weavelens/internal/store"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeSemantic Mode = "semantic"
	ModeLexical  Mode = "lexical"
	ModeHybrid   Mode = "hybrid"
)

const (
	// DefaultMaxResults caps a search when the caller passes k<=0.
	DefaultMaxResults = 8

	// DefaultMaxContextChars bounds an assembled context block.
	DefaultMaxContextChars = 4000

	// contextSeparator joins chunks inside a context block.
	contextSeparator = "\n\n---\n\n"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSemantic, ModeLexical, ModeHybrid:
		return Mode(s), nil
	case "":
		return ModeHybrid, nil
	default:
		return "", weaverrors.ValidationError("unknown search mode: " + s)
	}
}

// Result is one retrieval hit with its originating strategy.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Order      int     `json:"order"`
	Text       string  `json:"text"`
	SourcePath string  `json:"source_path"`
	Score      float64 `json:"score"`

	// Semantic marks hits that came from (or also appeared in) the
	// vector query.
	Semantic bool `json:"semantic"`
}

// Retriever runs queries against the store.
type Retriever struct {
	store    store.Store
	embedder embed.Embedder
}

// New creates a Retriever.
func New(st store.Store, emb embed.Embedder) *Retriever {
	return &Retriever{store: st, embedder: emb}
}

// Search returns up to k results for the query in the given mode.
func (r *Retriever) Search(ctx context.Context, query string, k int, mode Mode) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, weaverrors.ValidationError("query must not be empty")
	}
	if k <= 0 {
		k = DefaultMaxResults
	}

	switch mode {
	case ModeSemantic:
		hits, err := r.semantic(ctx, query, k)
		if err != nil {
			return nil, err
		}
		return toResults(hits, true), nil
	case ModeLexical:
		hits, err := r.store.QueryLexical(ctx, query, k)
		if err != nil {
			return nil, weaverrors.StoreError("lexical query", err)
		}
		return toResults(hits, false), nil
	case ModeHybrid, "":
		return r.hybrid(ctx, query, k)
	default:
		return nil, weaverrors.ValidationError("unknown search mode: " + string(mode))
	}
}

func (r *Retriever) semantic(ctx context.Context, query string, k int) ([]*store.Hit, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := r.store.QueryVector(ctx, vec, k)
	if err != nil {
		return nil, weaverrors.StoreError("vector query", err)
	}
	return hits, nil
}

// hybrid over-fetches both strategies so the merged, deduplicated list can
// still fill k results, then ranks semantic hits ahead of lexical-only
// ones.
func (r *Retriever) hybrid(ctx context.Context, query string, k int) ([]Result, error) {
	fetch := 2 * k

	var semHits, lexHits []*store.Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.semantic(gctx, query, fetch)
		if err != nil {
			return err
		}
		semHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := r.store.QueryLexical(gctx, query, fetch)
		if err != nil {
			return weaverrors.StoreError("lexical query", err)
		}
		lexHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make([]Result, 0, len(semHits)+len(lexHits))
	seen := make(map[string]int, len(semHits))

	for _, h := range semHits {
		seen[h.ChunkID] = len(merged)
		merged = append(merged, toResult(h, true))
	}
	for _, h := range lexHits {
		if i, ok := seen[h.ChunkID]; ok {
			// The semantic copy wins; remember that lexical agreed.
			merged[i].Semantic = true
			continue
		}
		seen[h.ChunkID] = len(merged)
		merged = append(merged, toResult(h, false))
	}

	// Semantic block first (by similarity), then lexical-only (by BM25).
	// ChunkID breaks score ties so ordering is stable across runs.
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Semantic != merged[j].Semantic {
			return merged[i].Semantic
		}
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ChunkID < merged[j].ChunkID
	})

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// AskContext retrieves hybrid results and joins their texts into one block
// of at most maxChars characters. A chunk that would overflow the budget
// is dropped whole; chunks are never truncated mid-text.
func (r *Retriever) AskContext(ctx context.Context, query string, k, maxChars int) (string, []Result, error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	results, err := r.Search(ctx, query, k, ModeHybrid)
	if err != nil {
		return "", nil, err
	}

	var (
		parts []string
		used  []Result
		total int
	)
	sepLen := len(contextSeparator)
	for _, res := range results {
		add := len(res.Text)
		if len(parts) > 0 {
			add += sepLen
		}
		if total+add > maxChars {
			continue
		}
		parts = append(parts, res.Text)
		used = append(used, res)
		total += add
	}

	return strings.Join(parts, contextSeparator), used, nil
}

func toResult(h *store.Hit, semantic bool) Result {
	return Result{
		ChunkID:    h.ChunkID,
		DocumentID: h.DocumentID,
		Order:      h.Order,
		Text:       h.Text,
		SourcePath: h.SourcePath,
		Score:      h.Score,
		Semantic:   semantic,
	}
}

func toResults(hits []*store.Hit, semantic bool) []Result {
	out := make([]Result, len(hits))
	for i, h := range hits {
		out[i] = toResult(h, semantic)
	}
	return out
}
