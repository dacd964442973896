package aiclient

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"

	"google.golang.org/genai"

	"manifold/internal/observability"
)

// OpenAIProvider embeds text via the OpenAI embeddings endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(observability.NewHTTPClient(nil)),
	)
	return &OpenAIProvider{client: &client, model: model}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: p.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = float64SliceToFloat32(d.Embedding)
	}
	return out, nil
}

func float64SliceToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// AnthropicProvider is registered as a fallback embedding source. Anthropic
// does not publish a first-party embeddings endpoint as of this writing;
// this adapter is wired so a self-hosted or future embeddings model can be
// dropped in behind the same provider contract without further plumbing.
// Until then it reports itself unavailable so the client moves on to the
// next configured provider.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	client := anthropic.NewClient(
		anthropicoption.WithAPIKey(apiKey),
		anthropicoption.WithHTTPClient(observability.NewHTTPClient(nil)),
	)
	return &AnthropicProvider{client: &client, model: model}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("anthropic: no embeddings endpoint configured")
}

// GenAIProvider embeds text via the Google GenAI embedding model.
type GenAIProvider struct {
	apiKey string
	model  string
}

func NewGenAIProvider(apiKey, model string) *GenAIProvider {
	return &GenAIProvider{apiKey: apiKey, model: model}
}

func (p *GenAIProvider) Name() string { return "genai" }

func (p *GenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: p.apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	resp, err := client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}
