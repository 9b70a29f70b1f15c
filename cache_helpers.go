package main

import (
	"encoding/json"
	"karaokelover/logcolors"
	"karaokelover/services/youtube"
	"karaokelover/stats"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const searchCachePrefix = "search:"

// searchCacheKey builds the cache key for a search so that casing and
// whitespace differences share one entry
func searchCacheKey(query string) string {
	return searchCachePrefix + youtube.NormalizeQuery(query)
}

func getCachedSearch(key string) ([]youtube.Video, bool) {
	if searchCache == nil {
		return nil, false
	}

	raw, ok := searchCache.Get(key)
	if !ok {
		return nil, false
	}

	var videos []youtube.Video
	if err := json.Unmarshal([]byte(raw), &videos); err != nil {
		log.Warnf("%s Dropping unreadable entry %s: %v", logcolors.LogCache, key, err)
		searchCache.Delete(key)
		return nil, false
	}
	return videos, true
}

func setCachedSearch(key string, videos []youtube.Video) {
	if searchCache == nil {
		return
	}

	data, err := json.Marshal(videos)
	if err != nil {
		log.Errorf("%s Failed to marshal search results: %v", logcolors.LogCache, err)
		return
	}
	if err := searchCache.Set(key, string(data), conf.YouTube.SearchCacheTTL); err != nil {
		log.Errorf("%s Failed to store %s: %v", logcolors.LogCache, key, err)
	}
}

func getCacheStatus(w http.ResponseWriter, r *http.Request) {
	s := stats.Get()
	resp := CacheStatusResponse{
		HitRate: s.SearchCacheHitRate(),
		Hits:    s.SearchCacheHits.Load(),
		Misses:  s.SearchCacheMisses.Load(),
	}
	if searchCache != nil {
		count, size := searchCache.Stats()
		resp.NumberOfKeys = count
		resp.SizeInKB = size / 1024
	}
	Respond(w, r).JSON(resp)
}

func clearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		Respond(w, r).ErrorMessage(http.StatusMethodNotAllowed, "Use POST to clear the cache")
		return
	}
	if searchCache == nil {
		Respond(w, r).ErrorMessage(http.StatusServiceUnavailable, "Search cache is not available")
		return
	}

	count, _ := searchCache.Stats()
	if err := searchCache.Clear(); err != nil {
		log.Errorf("%s Failed to clear cache: %v", logcolors.LogCache, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, err.Error())
		return
	}

	log.Infof("%s Cleared %d search entries", logcolors.LogCache, count)
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Search cache cleared",
		"cleared": count,
	})
}
