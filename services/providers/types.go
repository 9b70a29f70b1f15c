package providers

import (
	"errors"
)

var ErrLyricsNotFound = errors.New("lyrics not found")

// LyricsResult is the standardized result from any lyrics provider
type LyricsResult struct {
	Lyrics string `json:"lyrics"`
	Artist string `json:"artist"`
	Song   string `json:"song"`
	Source Source `json:"source"`
}

// ProviderError represents an error from a provider with additional context
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}

// IsNotFound reports whether err means the source answered but had no lyrics
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLyricsNotFound)
}

// FirstNonEmpty returns the first argument that is not the empty string
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
