// Package trending keeps the homepage's list of trending songs in a flat JSON file.
package trending

import (
	"encoding/json"
	"errors"
	"fmt"
	"karaokelover/logcolors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// MaxSongs bounds the list accepted from the webhook
const MaxSongs = 50

var ErrInvalidList = errors.New("invalid trending list")

// Song is a trending entry
type Song struct {
	Artist string `json:"artist"`
	Song   string `json:"song"`
}

// Store is the in-memory copy of the trending file
type Store struct {
	path  string
	mu    sync.RWMutex
	songs []Song
}

func NewStore(path string) *Store {
	return &Store{path: path, songs: []Song{}}
}

// Load reads the file. A missing file is an empty list.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Infof("%s No trending file at %s, starting empty", logcolors.LogTrending, s.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read trending file: %w", err)
	}

	var songs []Song
	if err := json.Unmarshal(data, &songs); err != nil {
		return fmt.Errorf("failed to parse trending file: %w", err)
	}
	songs, err = Validate(songs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.songs = songs
	s.mu.Unlock()

	log.Infof("%s Loaded %d trending songs", logcolors.LogTrending, len(songs))
	return nil
}

// Songs returns a copy of the current list
func (s *Store) Songs() []Song {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Song, len(s.songs))
	copy(out, s.songs)
	return out
}

// Replace validates songs, writes them to disk and swaps the in-memory list.
// The file is replaced atomically via rename.
func (s *Store) Replace(songs []Song) error {
	songs, err := Validate(songs)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(songs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode trending list: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create trending directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write trending file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace trending file: %w", err)
	}

	s.songs = songs
	log.Infof("%s Replaced trending list (%d songs)", logcolors.LogTrending, len(songs))
	return nil
}

// Validate trims entries and rejects lists with blank songs or too many entries
func Validate(songs []Song) ([]Song, error) {
	if len(songs) > MaxSongs {
		return nil, fmt.Errorf("%w: %d songs exceeds limit of %d", ErrInvalidList, len(songs), MaxSongs)
	}
	out := make([]Song, 0, len(songs))
	for i, s := range songs {
		s.Artist = strings.TrimSpace(s.Artist)
		s.Song = strings.TrimSpace(s.Song)
		if s.Song == "" {
			return nil, fmt.Errorf("%w: entry %d has no song", ErrInvalidList, i)
		}
		out = append(out, s)
	}
	return out, nil
}
