// Package identity turns noisy video titles into an (artist, song) pair.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// SongIdentity is the best-effort artist/song pair for a video title.
// Artist is empty when no separator was found or the extractor declined to supply one.
type SongIdentity struct {
	Artist string `json:"artist"`
	Song   string `json:"song"`
}

// HasArtist reports whether an artist was identified.
func (s SongIdentity) HasArtist() bool {
	return s.Artist != ""
}

// SearchQuery returns "artist song", or just the song when the artist is unknown.
func (s SongIdentity) SearchQuery() string {
	if s.HasArtist() {
		return s.Artist + " " + s.Song
	}
	return s.Song
}

// MetadataExtractor extracts a SongIdentity from a raw title. Implementations
// report failure through the returned error only and never panic.
type MetadataExtractor interface {
	Name() string
	Extract(ctx context.Context, rawTitle string) (SongIdentity, error)
}

// FailureKind classifies why an extraction attempt failed.
type FailureKind string

const (
	KindNetwork      FailureKind = "network"
	KindInvalidJSON  FailureKind = "invalid_json"
	KindMissingField FailureKind = "missing_field"
)

// ExtractionError is the failure variant of an extraction outcome.
type ExtractionError struct {
	Kind FailureKind
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extraction failed (%s)", e.Kind)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

func newExtractionError(kind FailureKind, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Err: err}
}

// FailureKindOf returns the kind of an extraction failure, or "" if err is not one.
func FailureKindOf(err error) FailureKind {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Kind
	}
	return ""
}
