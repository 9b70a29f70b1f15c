package main

import (
	"context"
	"fmt"
	"karaokelover/config"
	"karaokelover/services/identity"
	"karaokelover/services/lyrics"
	"karaokelover/services/providers"
	"karaokelover/services/providers/ailyrics"
	"karaokelover/services/providers/lrclib"
	"karaokelover/services/recommend"
	"karaokelover/services/textgen"
	"karaokelover/services/youtube"
)

// textGenerator returns nil when no AI credential is configured
func textGenerator(ctx context.Context, conf config.Config) (textgen.Generator, error) {
	gen, err := textgen.New(ctx, textgen.Config{
		Provider:         conf.AI.Provider,
		GeminiAPIKey:     conf.AI.GeminiAPIKey,
		GeminiModel:      conf.AI.GeminiModel,
		GeminiBaseURL:    conf.AI.GeminiBaseURL,
		AnthropicAPIKey:  conf.AI.AnthropicAPIKey,
		AnthropicModel:   conf.AI.AnthropicModel,
		AnthropicBaseURL: conf.AI.AnthropicBaseURL,
		HTTPTimeout:      conf.AI.RecommendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("text generation unavailable: %w", err)
	}
	return gen, nil
}

func newIdentityResolver(conf config.Config, gen textgen.Generator, noAI bool) *identity.Resolver {
	if gen == nil || noAI || conf.AI.DisableTitleExtraction {
		return identity.NewResolver(nil)
	}
	return identity.NewResolver(identity.NewAIExtractor(gen, identity.AIExtractorConfig{
		Timeout:   conf.AI.ExtractTimeout,
		MaxTokens: conf.AI.ExtractMaxTokens,
	}))
}

func newLyricsResolver(conf config.Config) *lyrics.Resolver {
	sources := []providers.Provider{lrclib.NewProvider(lrclib.NewClient(lrclib.Config{
		BaseURL:   conf.LRCLib.BaseURL,
		Timeout:   conf.LRCLib.Timeout,
		UserAgent: conf.LRCLib.UserAgent,
	}))}
	if p := ailyrics.NewProvider(ailyrics.Config{
		WebhookURL: conf.AILyrics.WebhookURL,
		Secret:     conf.AILyrics.WebhookSecret,
		Timeout:    conf.AILyrics.Timeout,
	}); p != nil {
		sources = append(sources, p)
	}
	return lyrics.NewResolver(sources...)
}

func newRecommender(conf config.Config, gen textgen.Generator) *recommend.Generator {
	return recommend.NewGenerator(gen, recommend.Config{
		Timeout:   conf.AI.RecommendTimeout,
		MaxTokens: conf.AI.RecommendMaxTokens,
	})
}

func newYouTubeClient(ctx context.Context, conf config.Config) (*youtube.Client, error) {
	return youtube.NewClient(ctx, youtube.Config{
		APIKey:  conf.YouTube.APIKey,
		Timeout: conf.YouTube.Timeout,
	}, nil)
}
