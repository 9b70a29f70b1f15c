// Package lyrics resolves lyrics for an identity by walking an ordered chain
// of lyrics sources.
package lyrics

import (
	"context"
	"errors"
	"karaokelover/logcolors"
	"karaokelover/services/identity"
	"karaokelover/services/providers"

	log "github.com/sirupsen/logrus"
)

// ErrNotFound is returned once every source in the chain came up empty.
var ErrNotFound = errors.New("lyrics not found")

// Resolver tries each source in order and returns the first lyrics found.
// A failing source only advances the chain; it never aborts resolution.
type Resolver struct {
	chain []providers.Provider
}

// NewResolver builds a chain. The primary source goes first, followed by
// any fallbacks. Nil entries are skipped.
func NewResolver(sources ...providers.Provider) *Resolver {
	chain := make([]providers.Provider, 0, len(sources))
	for _, p := range sources {
		if p != nil {
			chain = append(chain, p)
		}
	}
	return &Resolver{chain: chain}
}

// Sources returns the names of the configured sources in chain order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.chain))
	for i, p := range r.chain {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns the first lyrics found for id, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, id identity.SongIdentity) (*providers.LyricsResult, error) {
	for _, p := range r.chain {
		result, err := p.FetchLyrics(ctx, id.Song, id.Artist)
		if err != nil {
			if providers.IsNotFound(err) {
				log.Infof("%s %s had no lyrics for %q", logcolors.LogFallback, logcolors.Source(p.Name()), id.SearchQuery())
			} else {
				log.Warnf("%s %s failed for %q: %v", logcolors.LogFallback, logcolors.Source(p.Name()), id.SearchQuery(), err)
			}
			continue
		}
		if result == nil || result.Lyrics == "" {
			continue
		}

		log.Infof("%s Found lyrics for %q via %s", logcolors.LogLyrics, id.SearchQuery(), logcolors.Source(p.Name()))
		return result, nil
	}

	return nil, ErrNotFound
}
