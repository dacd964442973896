// Package reference manages the three vector-backed reference collections
// (colors, units, materials) used as nearest-neighbor targets during
// normalization and SKU assignment.
package reference

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"manifold/internal/apierr"
	"manifold/internal/store"
)

// Kind names one of the three reference collections.
type Kind string

const (
	KindColor    Kind = "reference_colors"
	KindUnit     Kind = "reference_units"
	KindMaterial Kind = "reference_materials"
)

// Entry is one record in a reference collection.
type Entry struct {
	ID        string
	Name      string
	Aliases   []string
	SKU       string // only meaningful for KindMaterial
	Embedding []float32
}

// Embedder produces embeddings for reference entry text. Satisfied by
// internal/aiclient.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Collections owns the three reference collections and serializes writes
// to each with a per-collection mutex, since canonical-name uniqueness is
// enforced with a read-then-write precheck that must not race.
type Collections struct {
	vector   store.VectorStore
	embedder Embedder

	mu map[Kind]*sync.Mutex
}

// New constructs a Collections manager over the given vector store.
func New(vector store.VectorStore, embedder Embedder) *Collections {
	return &Collections{
		vector:   vector,
		embedder: embedder,
		mu: map[Kind]*sync.Mutex{
			KindColor:    {},
			KindUnit:     {},
			KindMaterial: {},
		},
	}
}

// EnsureCollections creates the three backing vector collections if absent.
func (c *Collections) EnsureCollections(ctx context.Context, dimensions int, distance string) error {
	for _, k := range []Kind{KindColor, KindUnit, KindMaterial} {
		if err := c.vector.EnsureCollection(ctx, string(k), dimensions, distance); err != nil {
			return fmt.Errorf("ensure collection %s: %w", k, err)
		}
	}
	return nil
}

func embeddingText(name string, aliases []string) string {
	parts := append([]string{name}, aliases...)
	return strings.Join(parts, " ")
}

// Add inserts a new entry, enforcing canonical-name uniqueness within the
// collection via a per-collection mutex guarding a read-then-write
// precheck.
func (c *Collections) Add(ctx context.Context, kind Kind, name string, aliases []string, sku string) (*Entry, error) {
	mu := c.mu[kind]
	mu.Lock()
	defer mu.Unlock()

	if existing, err := c.findByName(ctx, kind, name); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, apierr.Conflict("a %s entry named %q already exists", kind, name)
	}

	vec, err := c.embedder.Embed(ctx, embeddingText(name, aliases))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, err, "embed reference entry")
	}

	id := uuid.NewString()
	payload := map[string]any{"name": name, "aliases": aliases}
	if kind == KindMaterial {
		payload["sku"] = sku
	}
	if err := c.vector.Upsert(ctx, string(kind), []store.VectorPoint{{ID: id, Vector: vec, Payload: payload}}); err != nil {
		return nil, err
	}
	return &Entry{ID: id, Name: name, Aliases: aliases, SKU: sku, Embedding: vec}, nil
}

// Delete removes an entry by id only; resolving by name is never a
// destructive fallback, only an explicit lookup helper (see ResolveByName).
func (c *Collections) Delete(ctx context.Context, kind Kind, id string) error {
	return c.vector.Delete(ctx, string(kind), id)
}

// ResolveByName looks up an entry's id by canonical name, returning
// apierr.NotFound on miss. Intended for callers that must support
// legacy name-keyed delete requests without performing the delete
// themselves.
func (c *Collections) ResolveByName(ctx context.Context, kind Kind, name string) (*Entry, error) {
	e, err := c.findByName(ctx, kind, name)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apierr.NotFound("no %s entry named %q", kind, name)
	}
	return e, nil
}

func (c *Collections) findByName(ctx context.Context, kind Kind, name string) (*Entry, error) {
	// Reference collections are small and read-mostly; a zero-vector probe
	// with an equality filter on name is cheaper than maintaining a
	// parallel index.
	dim := 1536
	probe := make([]float32, dim)
	matches, err := c.vector.Search(ctx, string(kind), probe, 1, &store.VectorFilter{Eq: map[string]any{"name": name}})
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return toEntry(matches[0].ID, matches[0].Payload), nil
}

// NearestMatch is the scored nearest-neighbor result of a normalization or
// SKU-assignment lookup, with ties on cosine score broken lexicographically
// by name for determinism.
type NearestMatch struct {
	Entry Entry
	Score float64 // mapped to [0,1]
}

// Nearest returns up to limit nearest matches to queryVec in kind, sorted
// by score descending and, for ties, by name ascending.
func (c *Collections) Nearest(ctx context.Context, kind Kind, queryVec []float32, limit int) ([]NearestMatch, error) {
	matches, err := c.vector.Search(ctx, string(kind), queryVec, limit, nil)
	if err != nil {
		return nil, err
	}
	out := make([]NearestMatch, 0, len(matches))
	for _, m := range matches {
		e := toEntry(m.ID, m.Payload)
		out = append(out, NearestMatch{Entry: *e, Score: store.ToUnitScore(m.Score)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entry.Name < out[j].Entry.Name
	})
	return out, nil
}

func toEntry(id string, payload map[string]any) *Entry {
	e := &Entry{ID: id}
	if n, ok := payload["name"].(string); ok {
		e.Name = n
	}
	if sku, ok := payload["sku"].(string); ok {
		e.SKU = sku
	}
	if aliases, ok := payload["aliases"].([]any); ok {
		for _, a := range aliases {
			if s, ok := a.(string); ok {
				e.Aliases = append(e.Aliases, s)
			}
		}
	} else if aliases, ok := payload["aliases"].([]string); ok {
		e.Aliases = aliases
	}
	return e
}
