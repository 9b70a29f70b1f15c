package textgen

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGenerator calls the Gemini API through the official genai SDK.
// Responses are requested as application/json since every caller parses JSON.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGemini builds a Gemini generator. An empty baseURL uses the SDK default.
func NewGemini(ctx context.Context, apiKey, model, baseURL string) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Name() string {
	return "gemini"
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens:  int32(maxTokens),
		Temperature:      genai.Ptr[float32](0.2),
		ResponseMIMEType: "application/json",
		// Thinking tokens count against MaxOutputTokens; the prompts here are lookups.
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
