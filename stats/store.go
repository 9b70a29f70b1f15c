package stats

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"karaokelover/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var (
	countersBucket = []byte("counters")
	metaBucket     = []byte("meta")

	firstStartedKey = []byte("first_started")
	lastSavedKey    = []byte("last_saved")
)

// Store persists counters in a dedicated BoltDB file, one key per counter,
// so counters added in later releases start at zero and removed ones are ignored.
type Store struct {
	db    *bolt.DB
	stats *Stats

	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewStore opens the stats database at path. A nil stats argument binds the
// store to the global instance.
func NewStore(path string, s *Stats) (*Store, error) {
	if s == nil {
		s = Get()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{countersBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create stats buckets: %w", err)
	}

	log.Infof("%s Stats store initialized at %s", logcolors.LogStats, path)
	return &Store{db: db, stats: s, stop: make(chan struct{})}, nil
}

// Load applies persisted counters and the first start time to the bound stats.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.stats.counters()
	restored := 0
	var firstStarted time.Time

	err := s.db.View(func(tx *bolt.Tx) error {
		err := tx.Bucket(countersBucket).ForEach(func(k, v []byte) error {
			counter, ok := live[string(k)]
			if !ok || len(v) != 8 {
				return nil
			}
			counter.Store(int64(binary.BigEndian.Uint64(v)))
			restored++
			return nil
		})
		if err != nil {
			return err
		}
		if raw := tx.Bucket(metaBucket).Get(firstStartedKey); raw != nil {
			return firstStarted.UnmarshalText(raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if restored == 0 {
		return nil
	}

	if !firstStarted.IsZero() {
		s.stats.setStartTime(firstStarted)
	}
	log.Infof("%s Restored %d counters (total requests: %d, first started: %s)",
		logcolors.LogStats, restored, s.stats.TotalRequests.Load(), firstStarted.Format(time.RFC3339))
	return nil
}

// Save writes every counter and the start time in a single transaction.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	started, err := s.stats.startTime().MarshalText()
	if err != nil {
		return fmt.Errorf("failed to encode start time: %w", err)
	}
	saved, _ := time.Now().MarshalText()

	err = s.db.Update(func(tx *bolt.Tx) error {
		counters := tx.Bucket(countersBucket)
		for name, counter := range s.stats.counters() {
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(counter.Load()))
			if err := counters.Put([]byte(name), buf[:]); err != nil {
				return err
			}
		}

		meta := tx.Bucket(metaBucket)
		if err := meta.Put(firstStartedKey, started); err != nil {
			return err
		}
		return meta.Put(lastSavedKey, saved)
	})
	if err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}
	return nil
}

// StartAutoSave saves on every tick until Close. Non-positive intervals disable it.
func (s *Store) StartAutoSave(interval time.Duration) {
	if interval <= 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Save(); err != nil {
					log.Warnf("%s Auto-save failed: %v", logcolors.LogStats, err)
				}
			}
		}
	}()
	log.Infof("%s Auto-saving every %v", logcolors.LogStats, interval)
}

// Close stops auto-save, writes a final snapshot and closes the database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	if err := s.Save(); err != nil {
		log.Warnf("%s Final save failed: %v", logcolors.LogStats, err)
	} else {
		log.Infof("%s Stats saved on shutdown", logcolors.LogStats)
	}
	return s.db.Close()
}
