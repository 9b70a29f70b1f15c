package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"karaokelover/logcolors"
	"karaokelover/utils"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const bucketName = "search"

// PersistentCache wraps BoltDB with an in-memory map for fast reads.
// Entries expire after the TTL they were stored with.
type PersistentCache struct {
	db       *bolt.DB
	memCache sync.Map
	dbPath   string
	now      func() time.Time
}

// CacheEntry is the stored form of a value; Value is encoded with utils.Pack
type CacheEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"` // unix seconds
}

func (e CacheEntry) expired(now time.Time) bool {
	return e.ExpiresAt > 0 && now.Unix() >= e.ExpiresAt
}

// NewPersistentCache opens (or creates) the cache database at dbPath
func NewPersistentCache(dbPath string) (*PersistentCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	pc := &PersistentCache{db: db, dbPath: dbPath, now: time.Now}

	if err := pc.loadToMemory(); err != nil {
		log.Warnf("%s Failed to preload cache to memory: %v", logcolors.LogCacheInit, err)
	}

	log.Infof("%s Persistent cache initialized at %s", logcolors.LogCacheInit, dbPath)
	return pc, nil
}

// loadToMemory loads live entries into memory and drops expired ones from disk
func (pc *PersistentCache) loadToMemory() error {
	loaded, purged, err := pc.sweep(true)
	if err != nil {
		return err
	}
	log.Infof("%s Loaded %d entries from disk (%d expired entries purged)", logcolors.LogCacheInit, loaded, purged)
	return nil
}

// PurgeExpired removes expired and unreadable entries from memory and disk
// and returns how many were removed
func (pc *PersistentCache) PurgeExpired() (int, error) {
	_, purged, err := pc.sweep(false)
	return purged, err
}

// StartPurging runs PurgeExpired every interval until ctx is done
func (pc *PersistentCache) StartPurging(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := pc.PurgeExpired()
				if err != nil {
					log.Warnf("%s Expired entry purge failed: %v", logcolors.LogCache, err)
				} else if n > 0 {
					log.Debugf("%s Purged %d expired entries", logcolors.LogCache, n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// sweep walks the bucket once, deleting stale entries. With load set, live
// entries are copied into memory.
func (pc *PersistentCache) sweep(load bool) (loaded, purged int, err error) {
	now := pc.now()

	err = pc.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		var stale [][]byte

		err := b.ForEach(func(k, v []byte) error {
			var entry CacheEntry
			if err := json.Unmarshal(v, &entry); err != nil || entry.expired(now) {
				stale = append(stale, append([]byte(nil), k...))
				return nil
			}
			if load {
				pc.memCache.Store(string(k), entry)
				loaded++
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			pc.memCache.Delete(string(k))
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return loaded, purged, nil
}

// Get returns the decoded value for key if present and not expired
func (pc *PersistentCache) Get(key string) (string, bool) {
	v, ok := pc.memCache.Load(key)
	if !ok {
		return "", false
	}
	entry := v.(CacheEntry)

	if entry.expired(pc.now()) {
		if err := pc.Delete(key); err != nil {
			log.Warnf("%s Failed to delete expired key %s: %v", logcolors.LogCache, key, err)
		}
		return "", false
	}

	value, err := utils.Unpack(entry.Value)
	if err != nil {
		log.Errorf("%s Error decoding cache value for key %s: %v", logcolors.LogCache, key, err)
		return "", false
	}
	return string(value), true
}

// Set stores value under key for ttl. A non-positive ttl never expires.
func (pc *PersistentCache) Set(key, value string, ttl time.Duration) error {
	packed, err := utils.Pack([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encode value for key %s: %w", key, err)
	}

	entry := CacheEntry{Value: packed}
	if ttl > 0 {
		entry.ExpiresAt = pc.now().Add(ttl).Unix()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	pc.memCache.Store(key, entry)
	return pc.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	})
}

// Delete removes a key from cache
func (pc *PersistentCache) Delete(key string) error {
	pc.memCache.Delete(key)
	return pc.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Clear removes all entries from cache
func (pc *PersistentCache) Clear() error {
	pc.memCache.Range(func(key, _ interface{}) bool {
		pc.memCache.Delete(key)
		return true
	})

	return pc.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns entry count and on-disk size
func (pc *PersistentCache) Stats() (count int, sizeBytes int64) {
	pc.memCache.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	if info, err := os.Stat(pc.dbPath); err == nil {
		sizeBytes = info.Size()
	}
	return count, sizeBytes
}

// Close closes the underlying database
func (pc *PersistentCache) Close() error {
	return pc.db.Close()
}
