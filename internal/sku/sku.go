// Package sku implements the SKU assignment stage: building a combined
// embedding from name + parsed unit + color, searching the materials
// reference collection, and self-seeding unmatched materials.
package sku

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"manifold/internal/models"
	"manifold/internal/reference"
)

// Embedder produces a single embedding. Satisfied by internal/aiclient.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Confidence labels the strength of an SKU match. The zero value means a
// confident match; ConfidenceLow marks a weak one.
type Confidence string

const ConfidenceLow Confidence = "low"

// Thresholds holds the confident/weak cutoffs for SKU assignment.
type Thresholds struct {
	Confident float64
	Weak      float64
}

// Result is the outcome of attempting to assign an SKU to an enriched
// material.
type Result struct {
	SKU             string
	Confidence      Confidence // "" for a confident match, "low" for a weak one
	SelfSeeded      bool
	CombinedText    string
	TopScore        float64
}

// Stage assigns canonical SKUs by nearest-neighbor search against the
// materials reference collection, falling back to self-seeding when no
// candidate is a good enough match.
type Stage struct {
	collections *reference.Collections
	embedder    Embedder
	thresholds  Thresholds
	topK        int
}

// New constructs an SKU assignment Stage.
func New(collections *reference.Collections, embedder Embedder, thresholds Thresholds) *Stage {
	return &Stage{collections: collections, embedder: embedder, thresholds: thresholds, topK: 5}
}

func combinedText(name, parsedUnit, color string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, parsedUnit, color} {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Assign builds the combined embedding and either assigns a canonical SKU
// or self-seeds the enriched material into the materials reference so it
// becomes a future match candidate. A self-seeded reference entry takes the
// material's name as its reference name. The combined embedding is returned
// alongside the Result.
func (s *Stage) Assign(ctx context.Context, name, parsedUnit, color string) (Result, []float32, error) {
	text := combinedText(name, parsedUnit, color)
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return Result{}, nil, err
	}

	matches, err := s.collections.Nearest(ctx, reference.KindMaterial, vec, s.topK)
	if err != nil {
		return Result{}, nil, err
	}

	result := Result{CombinedText: text}
	if len(matches) > 0 {
		result.TopScore = matches[0].Score
	}

	switch {
	case len(matches) > 0 && matches[0].Score >= s.thresholds.Confident:
		result.SKU = matches[0].Entry.SKU
	case len(matches) > 0 && matches[0].Score >= s.thresholds.Weak:
		result.SKU = matches[0].Entry.SKU
		result.Confidence = ConfidenceLow
	default:
		seeded, err := s.selfSeed(ctx, name, text)
		if err != nil {
			return Result{}, nil, err
		}
		result.SKU = seeded
		result.SelfSeeded = true
	}

	return result, vec, nil
}

// selfSeed writes a freshly generated SKU and reference entry for an
// enriched material that had no good match, so later ingests of the same
// material can find it.
func (s *Stage) selfSeed(ctx context.Context, name, combinedText string) (string, error) {
	sku := "SKU-" + uuid.NewString()[:8]
	if _, err := s.collections.Add(ctx, reference.KindMaterial, name, nil, sku); err != nil {
		return "", err
	}
	return sku, nil
}

// ApplyTo mutates a Material in place with the assignment outcome,
// returning whether the result should be treated as sku_confidence=low for
// the API response.
func ApplyTo(m *models.Material, r Result) (lowConfidence bool) {
	m.SKU = r.SKU
	return r.Confidence == ConfidenceLow
}
