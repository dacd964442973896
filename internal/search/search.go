// Package search implements the hybrid search engine: four independent
// strategies (vector, lexical, fuzzy, hybrid) fanned out and merged, with
// filtering, sorting, cursor/page pagination, highlighting, suggestions,
// and response caching.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"manifold/internal/models"
	"manifold/internal/store"
)

// Embedder produces a single embedding. Satisfied by internal/aiclient.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Weights are the hybrid strategy's per-source contribution.
type Weights struct {
	Vector  float64
	Lexical float64
	Fuzzy   float64
}

// Config tunes the engine's defaults.
type Config struct {
	MinSimilarity   float64
	FuzzyThreshold  float64
	HybridWeights   Weights
	DefaultPageSize int
	MaxPageSize     int
	CacheTTL        time.Duration
}

// Engine answers SearchQuery with a merged, paginated, optionally
// highlighted SearchResult.
type Engine struct {
	cfg        Config
	embedder   Embedder
	vector     store.VectorStore
	relational store.RelationalStore
	cache      store.Cache

	mu          sync.Mutex
	recentQueries []string
}

// New constructs a search Engine.
func New(cfg Config, embedder Embedder, vector store.VectorStore, relational store.RelationalStore, cache store.Cache) *Engine {
	return &Engine{cfg: cfg, embedder: embedder, vector: vector, relational: relational, cache: cache}
}

// Search answers q, applying caching, strategy fan-out, filtering, sorting,
// pagination, highlighting, and suggestions per the query's flags.
func (e *Engine) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	if err := validateQuery(q, e.cfg.MaxPageSize); err != nil {
		return models.SearchResult{}, err
	}

	fingerprint := Fingerprint(q)
	if cached, ok := e.getCached(ctx, fingerprint); ok {
		return cached, nil
	}

	candidates, actualStrategy, err := e.runStrategy(ctx, q)
	if err != nil {
		return models.SearchResult{}, err
	}

	candidates = applyFilters(candidates, q.Filters)
	sortCandidates(candidates, q.Sort)

	page, nextCursor, total, err := paginate(candidates, q.Pagination)
	if err != nil {
		return models.SearchResult{}, err
	}

	hits := make([]models.SearchHit, 0, len(page))
	for _, c := range page {
		hit := models.SearchHit{Material: c.Material, Score: c.Score, SourceStrategy: actualStrategy}
		if q.Highlight && q.Text != "" {
			hit.Highlights = highlight(c.Material, q.Text)
		}
		hits = append(hits, hit)
	}

	result := models.SearchResult{Hits: hits, TotalCount: total, NextCursor: nextCursor}
	if q.IncludeSuggestions {
		result.Suggestions = e.suggestions(q.Text)
	}

	e.recordSuccessfulQuery(q.Text)
	e.setCached(ctx, fingerprint, result)
	return result, nil
}

func validateQuery(q models.SearchQuery, maxPageSize int) error {
	ps := q.Pagination.PageSize
	if ps == 0 {
		ps = 20
	}
	if ps < 1 || ps > maxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d", maxPageSize)
	}
	if q.Pagination.Page < 0 {
		return fmt.Errorf("page must be >= 0")
	}
	if q.FuzzyThreshold < 0 || q.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in [0,1]")
	}
	if q.FuzzyThreshold == 0 && q.Strategy == models.StrategyFuzzy {
		return fmt.Errorf("fuzzy_threshold of 0 is rejected; use a value in (0,1]")
	}
	return nil
}

// candidate is an internal scored match carrying its source strategy,
// merged across strategies by material id.
type candidate struct {
	Material models.Material
	Score    float64
	Source   models.SearchStrategy
}

func (e *Engine) runStrategy(ctx context.Context, q models.SearchQuery) ([]candidate, models.SearchStrategy, error) {
	switch q.Strategy {
	case models.StrategyLexical:
		c, err := e.lexical(ctx, q)
		return c, models.StrategyLexical, err
	case models.StrategyFuzzy:
		c, err := e.fuzzy(ctx, q)
		return c, models.StrategyFuzzy, err
	case models.StrategyHybrid:
		c, err := e.hybrid(ctx, q)
		return c, models.StrategyHybrid, err
	default:
		c, err := e.vectorSearch(ctx, q)
		if err != nil {
			return nil, "", err
		}
		if len(c) == 0 {
			// Automatic one-shot fallback: vector yielded nothing, retry as
			// lexical and report the strategy actually used.
			c2, err := e.lexical(ctx, q)
			return c2, models.StrategyLexical, err
		}
		return c, models.StrategyVector, nil
	}
}

func (e *Engine) vectorSearch(ctx context.Context, q models.SearchQuery) ([]candidate, error) {
	if q.Text == "" {
		return nil, nil
	}
	vec, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	matches, err := e.vector.Search(ctx, "materials", vec, 200, nil)
	if err != nil {
		return nil, err
	}
	minSim := minSimilarityOf(q.Filters, e.cfg.MinSimilarity)
	out := make([]candidate, 0, len(matches))
	for _, m := range matches {
		score := store.ToUnitScore(m.Score)
		if score < minSim {
			continue
		}
		mat, err := e.relational.GetMaterial(ctx, m.ID)
		if err != nil || mat == nil {
			continue
		}
		out = append(out, candidate{Material: *mat, Score: score, Source: models.StrategyVector})
	}
	return out, nil
}

func (e *Engine) lexical(ctx context.Context, q models.SearchQuery) ([]candidate, error) {
	if q.Text == "" {
		return nil, nil
	}
	fields := searchFieldsOf(q.Filters)
	mats, scores, err := e.relational.SearchMaterialsLexical(ctx, q.Text, fields, 0.3, 200)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, len(mats))
	for i, m := range mats {
		out[i] = candidate{Material: m, Score: scores[i], Source: models.StrategyLexical}
	}
	return out, nil
}

func (e *Engine) fuzzy(ctx context.Context, q models.SearchQuery) ([]candidate, error) {
	if q.Text == "" {
		return nil, nil
	}
	threshold := q.FuzzyThreshold
	if threshold == 0 {
		threshold = e.cfg.FuzzyThreshold
	}
	// Fuzzy matching needs a candidate pool; reuse the lexical pass as a
	// coarse pre-filter since materials can number in the tens of thousands.
	pool, _, err := e.relational.SearchMaterialsLexical(ctx, q.Text, nil, 0.0, 500)
	if err != nil {
		return nil, err
	}
	out := make([]candidate, 0, len(pool))
	for _, m := range pool {
		score := fuzzyScore(q.Text, m)
		if score >= threshold {
			out = append(out, candidate{Material: m, Score: score, Source: models.StrategyFuzzy})
		}
	}
	return out, nil
}

func (e *Engine) hybrid(ctx context.Context, q models.SearchQuery) ([]candidate, error) {
	var vecResults, lexResults, fuzzyResults []candidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := e.vectorSearch(gctx, q)
		vecResults = r
		return err
	})
	g.Go(func() error {
		r, err := e.lexical(gctx, q)
		lexResults = r
		return err
	})
	g.Go(func() error {
		r, err := e.fuzzy(gctx, q)
		fuzzyResults = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := e.cfg.HybridWeights
	combined := make(map[string]*candidate)
	apply := func(results []candidate, weight float64, src models.SearchStrategy) {
		for _, c := range results {
			weighted := c.Score * weight
			if existing, ok := combined[c.Material.ID]; ok {
				existing.Score += weighted
				if c.Score > existing.Score {
					existing.Source = src
				}
			} else {
				cp := c
				cp.Score = weighted
				cp.Source = src
				combined[c.Material.ID] = &cp
			}
		}
	}
	apply(vecResults, weights.Vector, models.StrategyVector)
	apply(lexResults, weights.Lexical, models.StrategyLexical)
	apply(fuzzyResults, weights.Fuzzy, models.StrategyFuzzy)

	out := make([]candidate, 0, len(combined))
	for _, c := range combined {
		out = append(out, *c)
	}
	return out, nil
}

func searchFieldsOf(filters []models.Filter) []string {
	for _, f := range filters {
		if f.Field == "search_fields" {
			if vals, ok := f.Value.([]any); ok {
				out := make([]string, 0, len(vals))
				for _, v := range vals {
					if s, ok := v.(string); ok {
						out = append(out, s)
					}
				}
				return out
			}
		}
	}
	return nil
}

// Fingerprint computes the canonical cache key for a query: a SHA-256 hash
// over strategy, text, filters, sort, and pagination, base64url-encoded
// under the "search:" namespace.
func Fingerprint(q models.SearchQuery) string {
	b, _ := json.Marshal(struct {
		Strategy   models.SearchStrategy
		Text       string
		Filters    []models.Filter
		Sort       []models.SortField
		Pagination models.Pagination
	}{q.Strategy, strings.ToLower(strings.TrimSpace(q.Text)), q.Filters, q.Sort, q.Pagination})
	sum := sha256.Sum256(b)
	return "search:" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func (e *Engine) getCached(ctx context.Context, key string) (models.SearchResult, bool) {
	if e.cache == nil {
		return models.SearchResult{}, false
	}
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil || !ok {
		return models.SearchResult{}, false
	}
	var result models.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return models.SearchResult{}, false
	}
	return result, true
}

func (e *Engine) setCached(ctx context.Context, key string, result models.SearchResult) {
	if e.cache == nil {
		return
	}
	b, err := json.Marshal(result)
	if err != nil {
		return
	}
	ttl := e.cfg.CacheTTL
	if ttl == 0 {
		ttl = 300 * time.Second
	}
	_ = e.cache.Set(ctx, key, b, ttl)
}

// InvalidateOnWrite conservatively invalidates every cached search
// response, since computing the precise set of affected filter
// combinations is not worth the complexity at this scale.
func (e *Engine) InvalidateOnWrite(ctx context.Context) {
	if e.cache == nil {
		return
	}
	_, _ = e.cache.ClearNamespace(ctx, "search:")
}

func (e *Engine) recordSuccessfulQuery(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recentQueries = append([]string{text}, e.recentQueries...)
	if len(e.recentQueries) > 50 {
		e.recentQueries = e.recentQueries[:50]
	}
}

func (e *Engine) suggestions(prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	out := make([]string, 0, 10)
	seen := make(map[string]bool)
	for _, q := range e.recentQueries {
		if prefix != "" && !strings.HasPrefix(strings.ToLower(q), prefix) {
			continue
		}
		if seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
		if len(out) >= 10 {
			break
		}
	}
	return out
}

// minSimilarityOf returns the query's explicit min_similarity filter value
// if present, otherwise def.
func minSimilarityOf(filters []models.Filter, def float64) float64 {
	for _, f := range filters {
		if f.Field == "min_similarity" {
			if v, ok := f.Value.(float64); ok {
				return v
			}
		}
	}
	return def
}
