// Package aiclient provides a multi-provider embedding abstraction with an
// LRU cache, bounded concurrency, and a deterministic fallback vector when
// every provider is unavailable.
package aiclient

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"manifold/internal/config"
)

// Provider embeds a single batch of already-normalized text.
type Provider interface {
	Name() string
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client is the AI client abstraction (embed / embed_batch / health_check)
// fronting an ordered list of providers, an LRU embedding cache, and a
// concurrency semaphore.
type Client struct {
	providers     []Provider
	dimension     int
	maxBatchSize  int
	cache         *lruCache
	sem           *semaphore.Weighted
	mu            sync.Mutex
	usedFallback  bool
}

// New constructs a Client from configuration, registering whichever
// providers have credentials configured, in priority order
// OpenAI -> Anthropic -> GenAI.
func New(cfg config.EmbeddingConfig) *Client {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIModel))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey, cfg.AnthropicModel))
	}
	if cfg.GenAIKey != "" {
		providers = append(providers, NewGenAIProvider(cfg.GenAIKey, cfg.GenAIModel))
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	cacheSize := cfg.CacheSize
	if cacheSize < 128 {
		cacheSize = 128
	}

	return &Client{
		providers:    providers,
		dimension:    cfg.Dimension,
		maxBatchSize: maxOr(cfg.BatchSize, 50),
		cache:        newLRUCache(cacheSize, cfg.CacheTTL),
		sem:          semaphore.NewWeighted(int64(maxConcurrent)),
	}
}

func maxOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// normalize trims, collapses internal whitespace, and casefolds text
// before it is hashed for the cache key or sent to a provider.
func normalize(text string) string {
	fields := strings.Fields(text)
	return strings.ToLower(strings.Join(fields, " "))
}

// Embed returns the embedding for a single piece of text, consulting the
// cache first.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds a slice of texts, splitting into provider-sized
// batches and serving cache hits without contacting a provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	var misses []int
	var missTexts []string

	for i, t := range texts {
		norm := normalize(t)
		if v, ok := c.cache.get(norm); ok {
			results[i] = v
			continue
		}
		misses = append(misses, i)
		missTexts = append(missTexts, norm)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire embedding semaphore: %w", err)
	}
	defer c.sem.Release(1)

	for start := 0; start < len(missTexts); start += c.maxBatchSize {
		end := start + c.maxBatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		chunk := missTexts[start:end]
		vecs, err := c.embedChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		for j, v := range vecs {
			idx := misses[start+j]
			if err := c.validateDimension(v); err != nil {
				return nil, err
			}
			results[idx] = v
			c.cache.put(missTexts[start+j], v)
		}
	}
	return results, nil
}

func (c *Client) validateDimension(v []float32) error {
	if c.dimension > 0 && len(v) != c.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, configured %d", len(v), c.dimension)
	}
	return nil
}

// embedChunk tries each provider in order, falling back to a deterministic
// hash-based vector if every provider fails.
func (c *Client) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, p := range c.providers {
		pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		vecs, err := p.EmbedBatch(pctx, texts)
		cancel()
		if err == nil {
			return vecs, nil
		}
		lastErr = err
	}
	c.mu.Lock()
	c.usedFallback = true
	c.mu.Unlock()
	dim := c.dimension
	if dim <= 0 {
		dim = 1536
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = FallbackVector(t, dim)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedding providers configured")
	}
	return out, nil
}

// UsedFallback reports whether any embedding served since construction had
// to fall back to the deterministic hash vector. Downstream stages
// configured for strictness can refuse to persist such embeddings.
func (c *Client) UsedFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedFallback
}

// HealthCheck probes the first configured provider with a short embedding.
func (c *Client) HealthCheck(ctx context.Context) error {
	if len(c.providers) == 0 {
		return fmt.Errorf("no embedding providers configured")
	}
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.providers[0].EmbedBatch(pctx, []string{"health check"})
	return err
}
