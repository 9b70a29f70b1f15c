package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"karaokelover/services/textgen"
)

const (
	defaultExtractTimeout   = 8 * time.Second
	defaultExtractMaxTokens = 150
)

const extractPrompt = `Extract the performing artist and the song title from this YouTube karaoke video title.
Ignore words such as karaoke, instrumental, lyrics, official, HD, audio, and any channel names.
Respond with ONLY a JSON object of the form {"artist": "...", "song": "..."}.
Use null for "artist" if it cannot be determined. No markdown, no explanation.

Title: %s`

// AIExtractorConfig bounds a single extraction call.
type AIExtractorConfig struct {
	Timeout   time.Duration
	MaxTokens int
}

// AIExtractor asks a text generator to pull artist and song out of a title.
type AIExtractor struct {
	gen       textgen.Generator
	timeout   time.Duration
	maxTokens int
}

func NewAIExtractor(gen textgen.Generator, cfg AIExtractorConfig) *AIExtractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultExtractTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultExtractMaxTokens
	}
	return &AIExtractor{gen: gen, timeout: cfg.Timeout, maxTokens: cfg.MaxTokens}
}

func (e *AIExtractor) Name() string {
	return "ai:" + e.gen.Name()
}

// Extract returns either an identity or an *ExtractionError.
func (e *AIExtractor) Extract(ctx context.Context, rawTitle string) (SongIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	text, err := e.gen.Generate(ctx, fmt.Sprintf(extractPrompt, rawTitle), e.maxTokens)
	if err != nil {
		if errors.Is(err, textgen.ErrEmptyResponse) {
			return SongIdentity{}, newExtractionError(KindInvalidJSON, err)
		}
		return SongIdentity{}, newExtractionError(KindNetwork, err)
	}

	return parseExtraction(text, rawTitle)
}

// parseExtraction decodes the model output strictly. An empty or missing song
// falls back to rawTitle verbatim, not to the normalizer.
func parseExtraction(text, rawTitle string) (SongIdentity, error) {
	payload := []byte(textgen.StripCodeFence(text))
	if !json.Valid(payload) {
		return SongIdentity{}, newExtractionError(KindInvalidJSON, fmt.Errorf("response is not valid JSON: %.80q", text))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil || fields == nil {
		return SongIdentity{}, newExtractionError(KindMissingField, errors.New("response is not a JSON object"))
	}

	rawArtist, hasArtist := fields["artist"]
	rawSong, hasSong := fields["song"]
	if !hasArtist && !hasSong {
		return SongIdentity{}, newExtractionError(KindMissingField, errors.New(`response has neither "artist" nor "song"`))
	}

	artist, err := optionalString(rawArtist)
	if err != nil {
		return SongIdentity{}, newExtractionError(KindInvalidJSON, fmt.Errorf("artist: %w", err))
	}
	song, err := optionalString(rawSong)
	if err != nil {
		return SongIdentity{}, newExtractionError(KindInvalidJSON, fmt.Errorf("song: %w", err))
	}

	if song == "" {
		song = rawTitle
	}
	return SongIdentity{Artist: artist, Song: song}, nil
}

// optionalString decodes a JSON string or null. Absent values decode to "".
func optionalString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return strings.TrimSpace(*s), nil
}
