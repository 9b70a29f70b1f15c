package lrclib

// Record is one entry of an LRCLib /api/search response.
// Missing or null lyric fields decode to the empty string.
type Record struct {
	ID           int     `json:"id"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// HasPlainLyrics reports whether the record carries usable plain lyrics text
func (r Record) HasPlainLyrics() bool {
	return r.PlainLyrics != ""
}
