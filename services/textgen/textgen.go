// Package textgen wraps the external text-generation services used for title
// extraction and recommendations behind one small interface.
package textgen

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Generator produces free-form text for a prompt. Callers must treat the
// output as untrusted, even when JSON was requested.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

var ErrEmptyResponse = errors.New("text generator returned an empty response")

// Config selects and configures a Generator.
type Config struct {
	Provider string // "gemini" (default) or "anthropic"

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string

	// HTTPTimeout bounds each Anthropic request when the caller's context has no deadline.
	HTTPTimeout time.Duration
}

// New returns the configured Generator, or nil when the selected provider has
// no credential. A nil Generator means the capability is not configured.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, nil
		}
		return NewAnthropic(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL, cfg.HTTPTimeout), nil
	default:
		if cfg.GeminiAPIKey == "" {
			return nil, nil
		}
		gen, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL)
		if err != nil {
			return nil, err
		}
		return gen, nil
	}
}

// StripCodeFence removes one wrapping markdown code fence (```json ... ```)
// that chat models like to add around JSON payloads.
func StripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
