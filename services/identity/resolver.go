package identity

import (
	"context"
	"karaokelover/logcolors"

	log "github.com/sirupsen/logrus"
)

// Strategy names the stage that produced an identity.
type Strategy string

const (
	StrategyAI         Strategy = "ai"         // extractor succeeded
	StrategyNormalizer Strategy = "normalizer" // no extractor configured
	StrategyFallback   Strategy = "fallback"   // extractor failed, normalizer used
)

// Resolver tries the extractor first and falls back to the normalizer on any
// failure. There is exactly one fallback level and outputs are never merged.
type Resolver struct {
	extractor  MetadataExtractor
	normalizer *Normalizer
}

// NewResolver builds a resolver. A nil extractor means AI extraction is not
// configured and every title goes straight to the normalizer.
func NewResolver(extractor MetadataExtractor) *Resolver {
	return &Resolver{extractor: extractor, normalizer: NewNormalizer()}
}

// Resolve never fails.
func (r *Resolver) Resolve(ctx context.Context, rawTitle string) SongIdentity {
	id, _ := r.ResolveWithStrategy(ctx, rawTitle)
	return id
}

// ResolveWithStrategy is Resolve plus the stage that produced the identity.
func (r *Resolver) ResolveWithStrategy(ctx context.Context, rawTitle string) (SongIdentity, Strategy) {
	if r.extractor == nil {
		return r.normalizer.Normalize(rawTitle), StrategyNormalizer
	}

	id, err := r.extractor.Extract(ctx, rawTitle)
	if err != nil {
		log.Warnf("%s %s failed for %q (%s), using normalizer: %v",
			logcolors.LogFallback, r.extractor.Name(), rawTitle, FailureKindOf(err), err)
		return r.normalizer.Normalize(rawTitle), StrategyFallback
	}

	log.Debugf("%s %s resolved %q -> artist=%q song=%q",
		logcolors.LogIdentity, r.extractor.Name(), rawTitle, id.Artist, id.Song)
	return id, StrategyAI
}

// AIEnabled reports whether an extractor is configured.
func (r *Resolver) AIEnabled() bool {
	return r.extractor != nil
}
