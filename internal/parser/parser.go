// Package parser implements the AI-prompted extraction of color, parsed
// unit, and unit coefficient from a raw supplier row.
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// RawItem is the parser's input: a free-text product name and an optional
// unit string as supplied by the source row.
type RawItem struct {
	Name string
	Unit string
}

// Result is the parser's output. Confidence fields are in [0, 1];
// non-parseable inputs surface Confidence below lowConfidenceThreshold but
// are still passed through with Color/ParsedUnit/Coefficient left at their
// zero values and the original RawItem preserved by the caller.
type Result struct {
	Color           string
	ParsedUnit      string
	UnitCoefficient float64
	Confidence      float64
	LowConfidence   bool
}

const lowConfidenceThreshold = 0.4

const systemPrompt = `You extract structured attributes from a construction-materials supplier row.
Given a product name and an optional unit string, return JSON with exactly these fields:
{"color": string or null, "parsed_unit": string or null, "unit_coefficient": number or null, "confidence": number between 0 and 1}
"color" is the color mentioned in the name, in the source language, or null if none.
"parsed_unit" is the canonical-looking unit abbreviation implied by the name and unit field (e.g. "кг", "шт", "м2"), or null if it cannot be determined.
"unit_coefficient" is a multiplier implied by the name (e.g. "мешок 25кг" implies a coefficient tied to the base unit), or null if not applicable.
"confidence" reflects how sure you are of parsed_unit and color jointly.
Respond with JSON only, no prose.`

// Stage runs the single-prompt extraction against an OpenAI-compatible
// chat endpoint. It never produces embeddings; embeddings are produced
// downstream, after normalization, so they reflect the canonical form.
type Stage struct {
	client *openai.Client
	model  string
}

// New constructs a Stage. apiKey is the OpenAI API key; model names the chat
// model used for extraction and defaults to gpt-4o-mini when empty.
func New(apiKey, model string) *Stage {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Stage{client: &client, model: model}
}

type rawResult struct {
	Color           *string  `json:"color"`
	ParsedUnit      *string  `json:"parsed_unit"`
	UnitCoefficient *float64 `json:"unit_coefficient"`
	Confidence      float64  `json:"confidence"`
}

// Parse extracts color, parsed unit, and unit coefficient from a raw item.
func (s *Stage) Parse(ctx context.Context, item RawItem) (Result, error) {
	userPrompt := fmt.Sprintf("name: %q\nunit: %q", item.Name, item.Unit)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("parser chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("parser: empty response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	var raw rawResult
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		// Non-parseable model output: surface as low confidence rather than
		// an error, since the item must still flow downstream.
		return Result{LowConfidence: true}, nil
	}

	out := Result{Confidence: raw.Confidence}
	if raw.Color != nil {
		out.Color = strings.TrimSpace(*raw.Color)
	}
	if raw.ParsedUnit != nil {
		out.ParsedUnit = strings.TrimSpace(*raw.ParsedUnit)
	}
	if raw.UnitCoefficient != nil {
		out.UnitCoefficient = *raw.UnitCoefficient
	}
	out.LowConfidence = out.Confidence < lowConfidenceThreshold
	return out, nil
}
