// Package normalize implements the RAG normalization stage: canonicalizing
// color and parsed unit by embedding-nearest-neighbor lookup against the
// reference collections.
package normalize

import (
	"context"
	"strings"

	"manifold/internal/reference"
)

// Embedder produces a single embedding. Satisfied by internal/aiclient.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Thresholds holds the per-kind cosine cutoffs below which the raw value
// is retained instead of being replaced by a canonical match.
type Thresholds struct {
	Color float64
	Unit  float64
}

// Field is the normalization outcome for a single raw string.
type Field struct {
	Raw                string
	Canonical          string
	CanonicalID        string
	Score              float64
	NormalizationFailed bool
}

// Stage normalizes color and parsed-unit strings against the reference
// collections. It never mutates the reference collections itself.
type Stage struct {
	collections *reference.Collections
	embedder    Embedder
	thresholds  Thresholds
}

// New constructs a normalization Stage.
func New(collections *reference.Collections, embedder Embedder, thresholds Thresholds) *Stage {
	return &Stage{collections: collections, embedder: embedder, thresholds: thresholds}
}

// NormalizeColor canonicalizes a raw color string. An empty raw string
// returns a zero Field without contacting the embedder or reference store.
func (s *Stage) NormalizeColor(ctx context.Context, raw string) (Field, error) {
	return s.normalize(ctx, reference.KindColor, raw, s.thresholds.Color)
}

// NormalizeUnit canonicalizes a raw parsed-unit string.
func (s *Stage) NormalizeUnit(ctx context.Context, raw string) (Field, error) {
	return s.normalize(ctx, reference.KindUnit, raw, s.thresholds.Unit)
}

func (s *Stage) normalize(ctx context.Context, kind reference.Kind, raw string, threshold float64) (Field, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Field{}, nil
	}

	vec, err := s.embedder.Embed(ctx, raw)
	if err != nil {
		return Field{}, err
	}

	matches, err := s.collections.Nearest(ctx, kind, vec, 1)
	if err != nil {
		return Field{}, err
	}

	field := Field{Raw: raw}
	if len(matches) == 0 || matches[0].Score < threshold {
		field.NormalizationFailed = true
		field.Canonical = raw
		if len(matches) > 0 {
			field.Score = matches[0].Score
		}
		return field, nil
	}

	field.Canonical = matches[0].Entry.Name
	field.CanonicalID = matches[0].Entry.ID
	field.Score = matches[0].Score
	return field, nil
}
