package lrclib

import (
	"context"
	"fmt"
	"karaokelover/logcolors"
	"karaokelover/services/providers"

	log "github.com/sirupsen/logrus"
)

// ProviderName is the identifier for the LRCLib provider
const ProviderName = string(providers.SourceLRCLib)

// Searcher is the part of Client the provider needs
type Searcher interface {
	Search(ctx context.Context, query string) ([]Record, error)
}

// LRCLibProvider implements providers.Provider on top of LRCLib search
type LRCLibProvider struct {
	client Searcher
}

// NewProvider creates a new LRCLib provider instance
func NewProvider(client Searcher) *LRCLibProvider {
	return &LRCLibProvider{client: client}
}

// Name returns the provider identifier
func (p *LRCLibProvider) Name() string {
	return ProviderName
}

// FetchLyrics searches "artist song" (or just the song) and returns the first
// record with plain lyrics. Later records are never compared against it, even
// if they match the title better.
func (p *LRCLibProvider) FetchLyrics(ctx context.Context, song, artist string) (*providers.LyricsResult, error) {
	query := song
	if artist != "" {
		query = artist + " " + song
	}

	records, err := p.client.Search(ctx, query)
	if err != nil {
		return nil, providers.NewProviderError(ProviderName, "search failed", err)
	}

	best, idx := FirstWithPlainLyrics(records)
	if best == nil {
		return nil, providers.NewProviderError(ProviderName,
			fmt.Sprintf("no plain lyrics in %d results for %q", len(records), query), providers.ErrLyricsNotFound)
	}

	log.Infof("%s Using result %d/%d: %s - %s", logcolors.LogLRCLib, idx+1, len(records), best.ArtistName, best.TrackName)

	return &providers.LyricsResult{
		Lyrics: best.PlainLyrics,
		Artist: providers.FirstNonEmpty(best.ArtistName, artist),
		Song:   providers.FirstNonEmpty(best.TrackName, song),
		Source: providers.SourceLRCLib,
	}, nil
}

// FirstWithPlainLyrics returns the first record carrying plain lyrics and its index
func FirstWithPlainLyrics(records []Record) (*Record, int) {
	for i := range records {
		if records[i].HasPlainLyrics() {
			return &records[i], i
		}
	}
	return nil, -1
}
