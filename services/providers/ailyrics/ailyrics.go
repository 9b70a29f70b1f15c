// Package ailyrics asks an external AI lyrics webhook for lyrics when the
// lyrics database has nothing. The webhook is configured by URL and optional
// shared secret.
package ailyrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"karaokelover/logcolors"
	"karaokelover/services/providers"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// ProviderName is the identifier for the AI lyrics provider
	ProviderName = string(providers.SourceAI)

	// SecretHeader carries the shared webhook secret
	SecretHeader = "X-Webhook-Secret"

	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config holds webhook settings. An empty URL means not configured.
type Config struct {
	WebhookURL string
	Secret     string
	Timeout    time.Duration
}

type request struct {
	Artist string `json:"artist"`
	Song   string `json:"song"`
}

type response struct {
	Lyrics string `json:"lyrics"`
	Artist string `json:"artist"`
	Song   string `json:"song"`
}

// AILyricsProvider implements providers.Provider against the webhook
type AILyricsProvider struct {
	url        string
	secret     string
	timeout    time.Duration
	httpClient *http.Client
}

// NewProvider returns nil when no webhook URL is configured
func NewProvider(cfg Config) *AILyricsProvider {
	if cfg.WebhookURL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &AILyricsProvider{
		url:        cfg.WebhookURL,
		secret:     cfg.Secret,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

// Name returns the provider identifier
func (p *AILyricsProvider) Name() string {
	return ProviderName
}

// FetchLyrics posts {artist, song} to the webhook
func (p *AILyricsProvider) FetchLyrics(ctx context.Context, song, artist string) (*providers.LyricsResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	payload, err := json.Marshal(request{Artist: artist, Song: song})
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.secret != "" {
		req.Header.Set(SecretHeader, p.secret)
	}

	log.Debugf("%s Requesting lyrics: %s - %s", logcolors.LogAILyrics, artist, song)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "webhook request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to read response", err)
	}
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return nil, providers.NewProviderError(ProviderName, fmt.Sprintf("webhook returned %d", resp.StatusCode), providers.ErrLyricsNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providers.NewProviderError(ProviderName, fmt.Sprintf("webhook returned %d", resp.StatusCode), nil)
	}

	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, providers.NewProviderError(ProviderName, "failed to decode response", err)
	}

	lyrics := strings.TrimSpace(data.Lyrics)
	if lyrics == "" {
		return nil, providers.NewProviderError(ProviderName, "webhook returned empty lyrics", providers.ErrLyricsNotFound)
	}

	log.Infof("%s Generated lyrics for %s - %s (%d chars)", logcolors.LogAILyrics, artist, song, len(lyrics))

	return &providers.LyricsResult{
		Lyrics: lyrics,
		Artist: providers.FirstNonEmpty(strings.TrimSpace(data.Artist), artist),
		Song:   providers.FirstNonEmpty(strings.TrimSpace(data.Song), song),
		Source: providers.SourceAI,
	}, nil
}
