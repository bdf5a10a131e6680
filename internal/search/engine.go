package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"papersearch/internal/models"
	"papersearch/internal/storage"
	"papersearch/internal/vector"
)

const (
	DefaultMaxPapers           = 10
	DefaultMaxSnippetsPerPaper = 10
	DefaultEmbeddingLimit      = 100
	DefaultOverfetchFactor     = 10
	DefaultEfSearch            = 1000
)

const (
	opKeyword   = "keyword"
	opEmbedding = "embedding"
)

// Engine runs the lexical and vector retrieval pipelines against a corpus
// store. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	store     storage.Reader
	logger    *slog.Logger
	overfetch int
	efSearch  int
	window    int
}

// Option configures an Engine.
type Option func(*Engine) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// WithOverfetchFactor sets how many lexical candidates are fetched per
// requested paper before date filtering and ranking. Default is 10.
func WithOverfetchFactor(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("%w: overfetch factor %d", ErrInvalidOption, n)
		}
		e.overfetch = n
		return nil
	}
}

// WithEfSearch sets the ANN recall width applied to each vector query.
// Default is 1000.
func WithEfSearch(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("%w: ef_search %d", ErrInvalidOption, n)
		}
		e.efSearch = n
		return nil
	}
}

// WithWindowSize sets the snippet window in characters. Default is 400.
func WithWindowSize(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			return fmt.Errorf("%w: window size %d", ErrInvalidOption, n)
		}
		e.window = n
		return nil
	}
}

func New(store storage.Reader, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	e := &Engine{
		store:     store,
		logger:    slog.Default(),
		overfetch: DefaultOverfetchFactor,
		efSearch:  DefaultEfSearch,
		window:    DefaultWindowSize,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

type KeywordOptions struct {
	// MaxPapers caps the number of papers returned. Zero means 10.
	MaxPapers int
	// MaxSnippetsPerPaper caps occurrences per paper. Zero means 10.
	MaxSnippetsPerPaper int
	MinPublicationDate  *time.Time
}

type EmbeddingOptions struct {
	// Limit caps both the ANN candidate set and the result. Zero means 100.
	Limit              int
	MinPublicationDate *time.Time
}

// SearchByKeyword finds papers whose pages contain every token of query.
//
// Candidates are capped at MaxPapers times the overfetch factor before the date
// filter runs, so a selective date filter can yield fewer than MaxPapers papers
// even when more matching papers exist.
func (e *Engine) SearchByKeyword(ctx context.Context, query string, opts KeywordOptions) ([]models.KeywordResult, error) {
	maxPapers, maxSnippets := opts.MaxPapers, opts.MaxSnippetsPerPaper
	if maxPapers < 0 {
		return nil, invalid(opKeyword, query, "maxPapers must be positive, got %d", maxPapers)
	}
	if maxSnippets < 0 {
		return nil, invalid(opKeyword, query, "maxSnippetsPerPaper must be positive, got %d", maxSnippets)
	}
	if maxPapers == 0 {
		maxPapers = DefaultMaxPapers
	}
	if maxSnippets == 0 {
		maxSnippets = DefaultMaxSnippetsPerPaper
	}

	tokens := storage.ParseTokenQuery(query)
	if tokens.Empty() {
		return []models.KeywordResult{}, nil
	}

	candidates, err := e.store.MatchingPaperIDs(ctx, tokens, maxPapers*e.overfetch)
	if err != nil {
		e.logger.Error("keyword candidate lookup failed", "query", query, "err", err)
		return nil, retrieval(opKeyword, StageCandidates, query, err)
	}
	e.logger.Debug("keyword candidates", "query", query, "count", len(candidates))
	if len(candidates) == 0 {
		return []models.KeywordResult{}, nil
	}

	top, err := e.store.TopPapersByVotes(ctx, candidates, opts.MinPublicationDate, maxPapers)
	if err != nil {
		e.logger.Error("keyword ranking failed", "query", query, "err", err)
		return nil, retrieval(opKeyword, StageRank, query, err)
	}
	if len(top) == 0 {
		return []models.KeywordResult{}, nil
	}
	if len(top) > maxPapers {
		top = top[:maxPapers]
	}

	results := make([]models.KeywordResult, len(top))
	index := make(map[string]int, len(top))
	ids := make([]string, len(top))
	for i, p := range top {
		ids[i] = p.ID
		index[p.ID] = i
		results[i] = models.KeywordResult{
			UniversalID:     p.UniversalID,
			PaperTitle:      p.Title,
			Votes:           p.Votes,
			PublicationDate: p.PublicationDate,
			Occurrences:     []models.Occurrence{},
		}
	}

	pages, err := e.store.MatchingPages(ctx, ids, tokens)
	if err != nil {
		e.logger.Error("keyword page fetch failed", "query", query, "err", err)
		return nil, retrieval(opKeyword, StageSnippets, query, err)
	}
	for _, page := range pages {
		i, ok := index[page.PaperID]
		if !ok || len(results[i].Occurrences) >= maxSnippets {
			continue
		}
		for _, snippet := range Extract(page.Text, query, e.window) {
			if len(results[i].Occurrences) >= maxSnippets {
				break
			}
			results[i].Occurrences = append(results[i].Occurrences, models.Occurrence{
				PageNumber: page.PageNumber,
				Snippet:    snippet,
			})
		}
	}
	e.logger.Debug("keyword search done", "query", query, "papers", len(results), "pages", len(pages))
	return results, nil
}

// SearchByEmbedding returns the papers nearest to vec in ANN order, restricted
// to those passing the date filter. Filtered-out neighbours are not replaced,
// so fewer than Limit results is a normal outcome.
func (e *Engine) SearchByEmbedding(ctx context.Context, vec []float32, opts EmbeddingOptions) ([]models.SimilarPaper, error) {
	label := fmt.Sprintf("vector[%d]", len(vec))
	if err := vector.Validate(vec); err != nil {
		return nil, invalid(opEmbedding, label, "%w", err)
	}
	limit := opts.Limit
	if limit < 0 {
		return nil, invalid(opEmbedding, label, "limit must be positive, got %d", limit)
	}
	if limit == 0 {
		limit = DefaultEmbeddingLimit
	}

	var results []models.SimilarPaper
	err := e.store.WithRecall(ctx, e.efSearch, func(tx storage.VectorTx) error {
		hits, err := tx.NearestEmbeddings(ctx, vec, limit)
		if err != nil {
			return retrieval(opEmbedding, StageNearest, label, err)
		}
		if len(hits) == 0 {
			return nil
		}
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.PaperID
		}
		papers, err := tx.TopPapersByVotes(ctx, ids, opts.MinPublicationDate, 0)
		if err != nil {
			return retrieval(opEmbedding, StageHydrate, label, err)
		}
		results = assembleSimilar(hits, papers, limit)
		return nil
	})
	if err != nil {
		e.logger.Error("embedding search failed", "err", err)
		var se *Error
		if errors.As(err, &se) {
			return nil, se
		}
		return nil, retrieval(opEmbedding, StageRecall, label, err)
	}
	if results == nil {
		results = []models.SimilarPaper{}
	}
	e.logger.Debug("embedding search done", "results", len(results), "limit", limit)
	return results, nil
}

// assembleSimilar walks hits in ANN order and keeps those present in papers.
func assembleSimilar(hits []models.Neighbor, papers []models.Paper, limit int) []models.SimilarPaper {
	byID := make(map[string]models.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}
	out := make([]models.SimilarPaper, 0, len(papers))
	for _, h := range hits {
		p, ok := byID[h.PaperID]
		if !ok {
			continue
		}
		out = append(out, models.SimilarPaper{
			UniversalID:        p.UniversalID,
			Title:              p.Title,
			Abstract:           p.Abstract,
			PublicationDate:    p.PublicationDate,
			Votes:              p.Votes,
			SimilarityDistance: h.Distance,
		})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
