package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds all server statistics with atomic counters
type Stats struct {
	// Server info
	StartTime time.Time

	// Request counters
	TotalRequests          atomic.Int64
	SearchRequests         atomic.Int64
	LyricsRequests         atomic.Int64
	IdentifyRequests       atomic.Int64
	RecommendationRequests atomic.Int64
	TrendingRequests       atomic.Int64
	StatsRequests          atomic.Int64
	HealthRequests         atomic.Int64
	OtherRequests          atomic.Int64

	// Lyrics resolution
	LyricsFromLRCLib atomic.Int64
	LyricsFromAI     atomic.Int64
	LyricsNotFound   atomic.Int64

	// Title extraction strategies
	ExtractionAI         atomic.Int64
	ExtractionNormalizer atomic.Int64
	ExtractionFallback   atomic.Int64

	// Recommendations
	RecommendationsServed atomic.Int64
	RecommendationsEmpty  atomic.Int64

	// Search cache
	SearchCacheHits   atomic.Int64
	SearchCacheMisses atomic.Int64
	SearchUnavailable atomic.Int64

	// Rate limiting
	RateLimitExceeded atomic.Int64

	// Response status codes
	Status2xx atomic.Int64
	Status4xx atomic.Int64
	Status5xx atomic.Int64

	// Response time tracking (microseconds)
	totalResponseTime atomic.Int64
	responseCount     atomic.Int64
	maxResponseTime   atomic.Int64

	mu sync.RWMutex
}

var global = &Stats{
	StartTime: time.Now(),
}

// Get returns the global stats instance
func Get() *Stats {
	return global
}

// RecordRequest records a request to a specific endpoint
func (s *Stats) RecordRequest(endpoint string) {
	s.TotalRequests.Add(1)
	switch endpoint {
	case "/api/search":
		s.SearchRequests.Add(1)
	case "/api/lyrics":
		s.LyricsRequests.Add(1)
	case "/api/identify":
		s.IdentifyRequests.Add(1)
	case "/api/recommendations":
		s.RecommendationRequests.Add(1)
	case "/api/trending":
		s.TrendingRequests.Add(1)
	case "/stats":
		s.StatsRequests.Add(1)
	case "/health":
		s.HealthRequests.Add(1)
	default:
		s.OtherRequests.Add(1)
	}
}

// RecordLyricsSource records which source answered a lyrics request
func (s *Stats) RecordLyricsSource(source string) {
	switch source {
	case "lrclib":
		s.LyricsFromLRCLib.Add(1)
	case "ai":
		s.LyricsFromAI.Add(1)
	}
}

// RecordLyricsNotFound records a lyrics request that exhausted every source
func (s *Stats) RecordLyricsNotFound() {
	s.LyricsNotFound.Add(1)
}

// RecordExtraction records the identity strategy used for a title
func (s *Stats) RecordExtraction(strategy string) {
	switch strategy {
	case "ai":
		s.ExtractionAI.Add(1)
	case "normalizer":
		s.ExtractionNormalizer.Add(1)
	case "fallback":
		s.ExtractionFallback.Add(1)
	}
}

// RecordRecommendations records a recommendation response by its size
func (s *Stats) RecordRecommendations(count int) {
	if count == 0 {
		s.RecommendationsEmpty.Add(1)
		return
	}
	s.RecommendationsServed.Add(1)
}

// RecordSearchCache records a search cache lookup
func (s *Stats) RecordSearchCache(hit bool) {
	if hit {
		s.SearchCacheHits.Add(1)
		return
	}
	s.SearchCacheMisses.Add(1)
}

// RecordSearchUnavailable records a search rejected by the open circuit
func (s *Stats) RecordSearchUnavailable() {
	s.SearchUnavailable.Add(1)
}

// RecordRateLimitExceeded records a request rejected with 429
func (s *Stats) RecordRateLimitExceeded() {
	s.RateLimitExceeded.Add(1)
}

// RecordStatusCode records a response status code
func (s *Stats) RecordStatusCode(code int) {
	switch {
	case code >= 200 && code < 300:
		s.Status2xx.Add(1)
	case code >= 400 && code < 500:
		s.Status4xx.Add(1)
	case code >= 500:
		s.Status5xx.Add(1)
	}
}

// RecordResponseTime records a response time
func (s *Stats) RecordResponseTime(duration time.Duration) {
	us := duration.Microseconds()

	s.totalResponseTime.Add(us)
	s.responseCount.Add(1)

	for {
		current := s.maxResponseTime.Load()
		if us <= current || s.maxResponseTime.CompareAndSwap(current, us) {
			break
		}
	}
}

// Uptime returns the time since the first recorded start
func (s *Stats) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return time.Since(s.StartTime)
}

func (s *Stats) startTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.StartTime
}

func (s *Stats) setStartTime(t time.Time) {
	s.mu.Lock()
	s.StartTime = t
	s.mu.Unlock()
}

// SearchCacheHitRate returns the search cache hit rate as a percentage
func (s *Stats) SearchCacheHitRate() float64 {
	hits := s.SearchCacheHits.Load()
	total := hits + s.SearchCacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// AvgResponseTime returns the average response time
func (s *Stats) AvgResponseTime() time.Duration {
	count := s.responseCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(s.totalResponseTime.Load()/count) * time.Microsecond
}

// MaxResponseTime returns the maximum response time
func (s *Stats) MaxResponseTime() time.Duration {
	return time.Duration(s.maxResponseTime.Load()) * time.Microsecond
}

// Reset zeroes every counter and restarts the uptime clock
func (s *Stats) Reset() {
	for _, c := range s.counters() {
		c.Store(0)
	}
	s.setStartTime(time.Now())
}

// counters maps persisted names to the atomic counters they back
func (s *Stats) counters() map[string]*atomic.Int64 {
	return map[string]*atomic.Int64{
		"total_requests":          &s.TotalRequests,
		"search_requests":         &s.SearchRequests,
		"lyrics_requests":         &s.LyricsRequests,
		"identify_requests":       &s.IdentifyRequests,
		"recommendation_requests": &s.RecommendationRequests,
		"trending_requests":       &s.TrendingRequests,
		"stats_requests":          &s.StatsRequests,
		"health_requests":         &s.HealthRequests,
		"other_requests":          &s.OtherRequests,
		"lyrics_lrclib":           &s.LyricsFromLRCLib,
		"lyrics_ai":               &s.LyricsFromAI,
		"lyrics_not_found":        &s.LyricsNotFound,
		"extraction_ai":           &s.ExtractionAI,
		"extraction_normalizer":   &s.ExtractionNormalizer,
		"extraction_fallback":     &s.ExtractionFallback,
		"recommendations_served":  &s.RecommendationsServed,
		"recommendations_empty":   &s.RecommendationsEmpty,
		"search_cache_hits":       &s.SearchCacheHits,
		"search_cache_misses":     &s.SearchCacheMisses,
		"search_unavailable":      &s.SearchUnavailable,
		"rate_limit_exceeded":     &s.RateLimitExceeded,
		"status_2xx":              &s.Status2xx,
		"status_4xx":              &s.Status4xx,
		"status_5xx":              &s.Status5xx,
		"total_response_time":     &s.totalResponseTime,
		"response_count":          &s.responseCount,
		"max_response_time":       &s.maxResponseTime,
	}
}

// Snapshot returns a point-in-time snapshot of all stats
func (s *Stats) Snapshot() map[string]interface{} {
	uptime := s.Uptime()

	return map[string]interface{}{
		"server": map[string]interface{}{
			"start_time":     s.startTime().Format(time.RFC3339),
			"uptime":         uptime.Round(time.Second).String(),
			"uptime_seconds": int64(uptime.Seconds()),
		},
		"requests": map[string]interface{}{
			"total":           s.TotalRequests.Load(),
			"search":          s.SearchRequests.Load(),
			"lyrics":          s.LyricsRequests.Load(),
			"identify":        s.IdentifyRequests.Load(),
			"recommendations": s.RecommendationRequests.Load(),
			"trending":        s.TrendingRequests.Load(),
			"stats":           s.StatsRequests.Load(),
			"health":          s.HealthRequests.Load(),
			"other":           s.OtherRequests.Load(),
		},
		"lyrics": map[string]interface{}{
			"lrclib":    s.LyricsFromLRCLib.Load(),
			"ai":        s.LyricsFromAI.Load(),
			"not_found": s.LyricsNotFound.Load(),
		},
		"extraction": map[string]interface{}{
			"ai":         s.ExtractionAI.Load(),
			"normalizer": s.ExtractionNormalizer.Load(),
			"fallback":   s.ExtractionFallback.Load(),
		},
		"recommendations": map[string]interface{}{
			"served": s.RecommendationsServed.Load(),
			"empty":  s.RecommendationsEmpty.Load(),
		},
		"search_cache": map[string]interface{}{
			"hits":        s.SearchCacheHits.Load(),
			"misses":      s.SearchCacheMisses.Load(),
			"hit_rate":    s.SearchCacheHitRate(),
			"unavailable": s.SearchUnavailable.Load(),
		},
		"rate_limiting": map[string]interface{}{
			"exceeded": s.RateLimitExceeded.Load(),
		},
		"responses": map[string]interface{}{
			"2xx": s.Status2xx.Load(),
			"4xx": s.Status4xx.Load(),
			"5xx": s.Status5xx.Load(),
		},
		"response_times": map[string]interface{}{
			"avg": s.AvgResponseTime().String(),
			"max": s.MaxResponseTime().String(),
		},
	}
}
