/*
generator.go - Text-generation collaborator

PURPOSE:
  The classifier depends on a minimal generate function; the concrete
  Gemini adapter lives here behind it. Temperature is pinned to 0 so the
  same message yields the same resolution, which is what makes caching
  sound. No retries at this layer - a failed call is a soft miss and the
  pipeline falls back to the rule-based result.
*/
package classify

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// TextGenerator produces model text for a system prompt and user content.
// Implementations must respect ctx cancellation and deadlines.
type TextGenerator interface {
	Generate(ctx context.Context, system, content string) (string, error)
}

// =============================================================================
// GEMINI ADAPTER
// =============================================================================

// DefaultModelName is the Gemini model used for fallback classification.
const DefaultModelName = "gemini-2.0-flash"

// GeminiGenerator adapts the Google GenAI client to TextGenerator.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator. The client reads
// credentials from the environment (GEMINI_API_KEY).
func NewGeminiGenerator(ctx context.Context, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generator: create client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate runs one deterministic completion.
func (g *GeminiGenerator) Generate(ctx context.Context, system, content string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: content}},
		},
	}
	config := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr[float32](0),
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generator: generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini generator: empty response")
	}
	return text, nil
}
