// Package recommend suggests similar karaoke songs using a text generator.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"karaokelover/logcolors"
	"karaokelover/services/identity"
	"karaokelover/services/textgen"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// MaxItems caps the number of recommendations returned
	MaxItems = 5

	defaultTimeout   = 15 * time.Second
	defaultMaxTokens = 600
)

const recommendPrompt = `Suggest exactly %d songs that are similar to %s and are popular for karaoke.
Do not include the song itself.
Respond with ONLY a JSON array of objects, each with "artist" and "song" string fields.
Example: [{"artist": "Queen", "song": "Don't Stop Me Now"}]
No markdown, no explanation.`

// Item is a single recommended song
type Item struct {
	Artist string `json:"artist"`
	Song   string `json:"song"`
}

// Config bounds a single recommendation call
type Config struct {
	Timeout   time.Duration
	MaxTokens int
}

// Generator produces recommendations. A nil text generator means the
// capability is not configured.
type Generator struct {
	gen       textgen.Generator
	timeout   time.Duration
	maxTokens int
}

func NewGenerator(gen textgen.Generator, cfg Config) *Generator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Generator{gen: gen, timeout: cfg.Timeout, maxTokens: cfg.MaxTokens}
}

// Enabled reports whether a text generator is configured
func (g *Generator) Enabled() bool {
	return g != nil && g.gen != nil
}

// Recommend never fails: any problem yields an empty, non-nil slice.
func (g *Generator) Recommend(ctx context.Context, id identity.SongIdentity) []Item {
	if !g.Enabled() {
		return []Item{}
	}

	items, err := g.generate(ctx, id)
	if err != nil {
		log.Warnf("%s No recommendations for %q: %v", logcolors.LogRecommend, id.SearchQuery(), err)
		return []Item{}
	}

	log.Debugf("%s %d recommendations for %q", logcolors.LogRecommend, len(items), id.SearchQuery())
	return items
}

func (g *Generator) generate(ctx context.Context, id identity.SongIdentity) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.gen.Generate(ctx, fmt.Sprintf(recommendPrompt, MaxItems, describe(id)), g.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.gen.Name(), err)
	}
	return parseItems(text)
}

// parseItems decodes a strict JSON array of {artist, song} objects. Entries
// without a song are dropped before the cap is applied.
func parseItems(text string) ([]Item, error) {
	var raw []Item
	if err := json.Unmarshal([]byte(textgen.StripCodeFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("invalid recommendation payload: %w", err)
	}

	items := make([]Item, 0, MaxItems)
	for _, it := range raw {
		it.Artist = strings.TrimSpace(it.Artist)
		it.Song = strings.TrimSpace(it.Song)
		if it.Song == "" {
			continue
		}
		items = append(items, it)
		if len(items) == MaxItems {
			break
		}
	}
	return items, nil
}

func describe(id identity.SongIdentity) string {
	if id.HasArtist() {
		return fmt.Sprintf("%q by %s", id.Song, id.Artist)
	}
	return fmt.Sprintf("%q", id.Song)
}
