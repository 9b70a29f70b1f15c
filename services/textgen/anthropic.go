package textgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel   = "claude-3-5-haiku-latest"
	defaultAnthropicTimeout = 30 * time.Second
	anthropicMaxRetries     = 1
)

// AnthropicGenerator calls the Anthropic Messages API through the official SDK.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropic builds an Anthropic generator. An empty baseURL uses the SDK default.
func NewAnthropic(apiKey, model, baseURL string, timeout time.Duration) *AnthropicGenerator {
	if model == "" {
		model = defaultAnthropicModel
	}
	if timeout <= 0 {
		timeout = defaultAnthropicTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(anthropicMaxRetries),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}

	return &AnthropicGenerator{client: anthropic.NewClient(opts...), model: model}
}

func (a *AnthropicGenerator) Name() string {
	return "anthropic"
}

func (a *AnthropicGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
