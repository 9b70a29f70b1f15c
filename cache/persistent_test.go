package cache

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// setupTestCache creates a temporary cache for testing
func setupTestCache(t *testing.T) (*PersistentCache, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "nested", "test_cache.db")
	cache, err := NewPersistentCache(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test cache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	return cache, dbPath
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)

	value := `{"results":[{"video_id":"abc123"}]}`
	if err := cache.Set("search:adele hello", value, time.Hour); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}

	got, found := cache.Get("search:adele hello")
	if !found {
		t.Fatal("Expected to find the key")
	}
	if got != value {
		t.Errorf("Expected %q, got %q", value, got)
	}

	if _, found := cache.Get("search:missing"); found {
		t.Error("Expected missing key to be a miss")
	}
}

func TestValuesAreStoredCompressed(t *testing.T) {
	cache, _ := setupTestCache(t)

	value := strings.Repeat(`{"title":"Adele - Hello (Karaoke Version)"}`, 50)
	cache.Set("k", value, 0)

	raw, _ := cache.memCache.Load("k")
	stored := raw.(CacheEntry).Value
	if stored == value || len(stored) >= len(value) {
		t.Errorf("Expected compressed storage, got %d bytes for %d byte value", len(stored), len(value))
	}
}

func TestExpiry(t *testing.T) {
	cache, _ := setupTestCache(t)

	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	cache.Set("short", "v", time.Minute)
	cache.Set("forever", "v", 0)

	now = now.Add(2 * time.Minute)

	if _, found := cache.Get("short"); found {
		t.Error("Expected expired entry to be a miss")
	}
	if _, found := cache.Get("forever"); !found {
		t.Error("Expected entry without TTL to survive")
	}
	if count, _ := cache.Stats(); count != 1 {
		t.Errorf("Expected expired entry to be deleted, count=%d", count)
	}
}

func TestPurgeExpired(t *testing.T) {
	cache, dbPath := setupTestCache(t)

	// real time as the base so the hour-long entry is still live after reopen
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set("search:never repeated", "[]", time.Minute)
	cache.Set("search:abba", "[]", time.Hour)
	cache.Set("search:pinned", "[]", 0)

	now = now.Add(10 * time.Minute)

	purged, err := cache.PurgeExpired()
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("Expected 1 purged entry, got %d", purged)
	}
	if _, ok := cache.memCache.Load("search:never repeated"); ok {
		t.Error("Expected expired entry to leave memory without being read")
	}
	if count, _ := cache.Stats(); count != 2 {
		t.Errorf("Expected 2 live entries, got %d", count)
	}
	cache.Close()

	reopened, err := NewPersistentCache(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer reopened.Close()
	if count, _ := reopened.Stats(); count != 2 {
		t.Errorf("Expected purge to reach disk, got %d entries after reopen", count)
	}
}

func TestStartPurging(t *testing.T) {
	cache, _ := setupTestCache(t)
	cache.Set("search:stale", "[]", time.Nanosecond)
	cache.Set("search:live", "[]", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cache.StartPurging(ctx, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if count, _ := cache.Stats(); count == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if count, _ := cache.Stats(); count != 1 {
		t.Errorf("Expected background purge to leave 1 entry, got %d", count)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	cache, dbPath := setupTestCache(t)
	cache.Set("live", "value", time.Hour)
	cache.Set("stale", "value", time.Nanosecond)
	cache.Close()

	reopened, err := NewPersistentCache(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen cache: %v", err)
	}
	defer reopened.Close()

	if got, found := reopened.Get("live"); !found || got != "value" {
		t.Errorf("Expected live entry after reopen, got %q found=%v", got, found)
	}
	if count, size := reopened.Stats(); count != 1 || size == 0 {
		t.Errorf("Expected 1 entry with non-zero size, got count=%d size=%d", count, size)
	}
}

func TestDeleteAndClear(t *testing.T) {
	cache, _ := setupTestCache(t)

	cache.Set("a", "1", 0)
	cache.Set("b", "2", 0)
	cache.Set("c", "3", 0)

	if err := cache.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found := cache.Get("a"); found {
		t.Error("Expected deleted key to be a miss")
	}

	if err := cache.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if count, _ := cache.Stats(); count != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", count)
	}
	if _, found := cache.Get("b"); found {
		t.Error("Expected cleared key to be a miss")
	}
}
