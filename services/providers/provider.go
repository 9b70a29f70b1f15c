package providers

import (
	"context"
)

// Provider is a single lyrics source in the resolution chain
type Provider interface {
	// Name returns the source identifier reported in results ("lrclib", "ai")
	Name() string

	// FetchLyrics looks up plain lyrics for the song.
	// Parameters:
	//   - ctx: context for cancellation; providers apply their own timeout on top
	//   - song: song title
	//   - artist: artist name (optional, can be empty)
	// Returns:
	//   - *LyricsResult: non-nil only when lyrics text was found
	//   - error: ErrLyricsNotFound (wrapped) when the source answered without lyrics,
	//     any other error for transport or decoding failures
	FetchLyrics(ctx context.Context, song, artist string) (*LyricsResult, error)
}

// Source identifies where a LyricsResult came from
type Source string

const (
	SourceLRCLib Source = "lrclib"
	SourceAI     Source = "ai"
)
