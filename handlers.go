package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"karaokelover/circuitbreaker"
	"karaokelover/logcolors"
	"karaokelover/middleware"
	"karaokelover/services/notifier"
	"karaokelover/services/recommend"
	"karaokelover/services/trending"
	"karaokelover/services/youtube"
	"karaokelover/stats"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const maxTrendingBody = 64 << 10

func searchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "Query is required")
		return
	}

	key := searchCacheKey(query)
	if videos, ok := getCachedSearch(key); ok {
		stats.Get().RecordSearchCache(true)
		log.Infof("%s %q (%d results)", logcolors.LogCacheHit, query, len(videos))
		Respond(w, r).SetCacheStatus("HIT").JSON(SearchResponse{Results: videos})
		return
	}
	stats.Get().RecordSearchCache(false)

	if middleware.IsCacheOnly(r.Context()) {
		log.Warnf("%s Cache-only mode but no cache found for: %s", logcolors.LogRateLimit, query)
		Respond(w, r).SetCacheStatus("MISS").RetryAfter(time.Minute).ErrorMessage(http.StatusTooManyRequests,
			"Rate limit exceeded. This search is not cached, please try again later.")
		return
	}

	if videoSearch == nil {
		Respond(w, r).SetCacheStatus("MISS").ErrorMessage(http.StatusServiceUnavailable, "Search is not configured")
		return
	}

	videos, err := searchOnce(r.Context(), key, query)
	if errors.Is(err, youtube.ErrUnavailable) {
		stats.Get().RecordSearchUnavailable()
		Respond(w, r).SetCacheStatus("MISS").RetryAfter(retryAfter()).ErrorMessage(http.StatusServiceUnavailable,
			"Search is temporarily unavailable, please try again later")
		return
	}
	if err != nil {
		log.Errorf("%s Search failed for %q: %v", logcolors.LogSearch, query, err)
		reportError(r, err)
		Respond(w, r).SetCacheStatus("MISS").ErrorMessage(http.StatusInternalServerError, err.Error())
		return
	}

	Respond(w, r).SetCacheStatus("MISS").JSON(SearchResponse{Results: videos})
}

// searchOnce runs one upstream search per normalized query at a time.
// Concurrent callers for the same key wait for the first and share its result.
func searchOnce(ctx context.Context, key, query string) ([]youtube.Video, error) {
	req := &InFlightRequest{}
	req.wg.Add(1)

	actual, loaded := inFlightSearches.LoadOrStore(key, req)
	if loaded {
		leader := actual.(*InFlightRequest)
		log.Debugf("%s Waiting for in-flight search %q", logcolors.LogSearch, query)
		leader.wg.Wait()
		return leader.result, leader.err
	}

	defer func() {
		inFlightSearches.Delete(key)
		req.wg.Done()
	}()

	req.result, req.err = videoSearch.Search(context.WithoutCancel(ctx), query)
	if req.err == nil {
		setCachedSearch(key, req.result)
	}
	return req.result, req.err
}

func retryAfter() time.Duration {
	if searchBreaker == nil {
		return time.Minute
	}
	if d := searchBreaker.TimeUntilRetry(); d > time.Second {
		return d
	}
	return time.Second
}

func lyricsHandler(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "title is required")
		return
	}

	id, strategy := identityResolver.ResolveWithStrategy(r.Context(), title)
	stats.Get().RecordExtraction(string(strategy))
	if id.Song == "" {
		id.Song = title
	}

	result, err := lyricsResolver.Resolve(r.Context(), id)
	if err != nil {
		stats.Get().RecordLyricsNotFound()
		log.Infof("%s No lyrics for %q (artist=%q song=%q)", logcolors.LogLyrics, title, id.Artist, id.Song)
		Respond(w, r).ErrorMessage(http.StatusNotFound, "Lyrics not found")
		return
	}

	stats.Get().RecordLyricsSource(string(result.Source))
	log.Infof("%s %q served from %s", logcolors.LogLyrics, title, logcolors.Source(string(result.Source)))
	Respond(w, r).JSON(result)
}

func identifyHandler(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if title == "" {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "title is required")
		return
	}

	id, strategy := identityResolver.ResolveWithStrategy(r.Context(), title)
	stats.Get().RecordExtraction(string(strategy))

	Respond(w, r).JSON(IdentifyResponse{Artist: id.Artist, Song: id.Song, Strategy: strategy})
}

func recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	song := strings.TrimSpace(r.URL.Query().Get("song"))
	if song == "" {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "song is required")
		return
	}

	items := []recommend.Item{}
	if recommender.Enabled() {
		id, strategy := identityResolver.ResolveWithStrategy(r.Context(), song)
		stats.Get().RecordExtraction(string(strategy))
		if id.Song == "" {
			id.Song = song
		}
		items = recommender.Recommend(r.Context(), id)
	}

	stats.Get().RecordRecommendations(len(items))
	Respond(w, r).JSON(RecommendationsResponse{Recommendations: items})
}

func getTrending(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(TrendingResponse{Songs: trendingStore.Songs()})
}

func updateTrending(w http.ResponseWriter, r *http.Request) {
	var body TrendingResponse
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxTrendingBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if body.Songs == nil {
		Respond(w, r).ErrorMessage(http.StatusBadRequest, "songs is required")
		return
	}

	if err := trendingStore.Replace(body.Songs); err != nil {
		if errors.Is(err, trending.ErrInvalidList) {
			Respond(w, r).ErrorMessage(http.StatusBadRequest, err.Error())
			return
		}
		log.Errorf("%s Failed to replace trending list: %v", logcolors.LogTrending, err)
		reportError(r, err)
		Respond(w, r).ErrorMessage(http.StatusInternalServerError, "Failed to save trending list")
		return
	}

	songs := trendingStore.Songs()
	notifier.PublishTrendingUpdated(len(songs))
	Respond(w, r).JSON(TrendingResponse{Songs: songs})
}

func getHealthStatus(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"uptime": stats.Get().Uptime().Round(time.Second).String(),
		"capabilities": map[string]interface{}{
			"ai_extraction":   identityResolver.AIEnabled(),
			"recommendations": recommender.Enabled(),
			"lyrics_sources":  lyricsResolver.Sources(),
			"search":          videoSearch != nil,
			"search_cache":    searchCache != nil,
		},
	}

	if searchBreaker != nil {
		health["circuit_breaker"] = searchBreaker.State().String()
		if searchBreaker.State() == circuitbreaker.StateOpen {
			health["status"] = "degraded"
			health["circuit_breaker_retry_in"] = searchBreaker.TimeUntilRetry().Round(time.Second).String()
		}
	}

	if sourceMonitor != nil {
		sources := sourceMonitor.Status()
		health["sources"] = sources
		for _, s := range sources {
			if !s.Healthy {
				health["status"] = "degraded"
			}
		}
	}

	Respond(w, r).JSON(health)
}

func getStats(w http.ResponseWriter, r *http.Request) {
	snapshot := stats.Get().Snapshot()

	if searchCache != nil {
		count, size := searchCache.Stats()
		snapshot["cache_storage"] = map[string]interface{}{
			"keys":    count,
			"size_kb": size / 1024,
		}
	}
	if searchBreaker != nil {
		snapshot["circuit_breaker"] = searchBreaker.Snapshot()
	}

	Respond(w, r).JSON(snapshot)
}

func getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	if searchBreaker == nil {
		Respond(w, r).ErrorMessage(http.StatusNotFound, "Search is not configured")
		return
	}

	status := searchBreaker.Snapshot()
	status["config"] = map[string]interface{}{
		"threshold": conf.YouTube.CircuitBreakerThreshold,
		"cooldown":  conf.YouTube.CircuitBreakerCooldown.String(),
	}
	Respond(w, r).JSON(status)
}

func resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		Respond(w, r).ErrorMessage(http.StatusMethodNotAllowed, "Use POST to reset the circuit breaker")
		return
	}
	if searchBreaker == nil {
		Respond(w, r).ErrorMessage(http.StatusNotFound, "Search is not configured")
		return
	}

	searchBreaker.Reset()
	Respond(w, r).JSON(map[string]interface{}{
		"message": "Circuit breaker reset to CLOSED state",
	})
}

func testNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		Respond(w, r).ErrorMessage(http.StatusMethodNotAllowed, "Use POST to send test notifications")
		return
	}
	if len(alertNotifiers) == 0 {
		Respond(w, r).Error(http.StatusBadRequest, map[string]interface{}{
			"error": "No notifiers configured. Please configure at least one notifier in your .env file.",
			"help": map[string]string{
				"telegram": "Set NOTIFIER_TELEGRAM_BOT_TOKEN and NOTIFIER_TELEGRAM_CHAT_ID",
				"ntfy":     "Set NOTIFIER_NTFY_TOPIC",
			},
		})
		return
	}

	subject := "🧪 Test: Karaoke Lover alerts"
	message := fmt.Sprintf(
		"✅ Your notification setup is working correctly.\n\n"+
			"Lyrics sources: %s\n"+
			"AI extraction:  %v\n"+
			"Search:         %v",
		strings.Join(lyricsResolver.Sources(), ", "), identityResolver.AIEnabled(), videoSearch != nil)

	results := make(map[string]interface{})
	failCount := 0
	for _, n := range alertNotifiers {
		name := getNotifierTypeName(n)
		if err := n.Send(subject, message); err != nil {
			results[name] = map[string]string{"status": "failed", "error": err.Error()}
			failCount++
			log.Errorf("%s %s failed: %v", logcolors.LogNotifier, name, err)
		} else {
			results[name] = map[string]string{"status": "success"}
		}
	}

	response := map[string]interface{}{
		"message":    "Test notifications sent",
		"total":      len(alertNotifiers),
		"successful": len(alertNotifiers) - failCount,
		"failed":     failCount,
		"results":    results,
	}
	if failCount > 0 {
		Respond(w, r).Error(http.StatusPartialContent, response)
		return
	}
	Respond(w, r).JSON(response)
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		Respond(w, r).ErrorMessage(http.StatusNotFound, "Not found")
		return
	}

	index := filepath.Join(conf.Server.StaticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		http.ServeFile(w, r, index)
		return
	}

	Respond(w, r).JSON(map[string]interface{}{
		"help": "Search karaoke videos with /api/search?q=, then fetch lyrics for a video title with /api/lyrics?title=",
		"endpoints": map[string]string{
			"/api/search?q=":             "YouTube karaoke search",
			"/api/lyrics?title=":         "Plain lyrics for a karaoke video title",
			"/api/identify?title=":       "Artist and song parsed from a video title",
			"/api/recommendations?song=": "Similar songs to sing next",
			"/api/trending":              "Trending songs",
			"/health":                    "Service health",
		},
	})
}

func sitemapHandler(w http.ResponseWriter, r *http.Request) {
	loc := conf.Server.SiteURL
	if !strings.HasSuffix(loc, "/") {
		loc += "/"
	}

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url>
    <loc>%s</loc>
    <changefreq>weekly</changefreq>
    <priority>1.0</priority>
  </url>
</urlset>
`, xmlEscape(loc))
}

func xmlEscape(s string) string {
	var b strings.Builder
	xmlEscaper.WriteString(&b, s)
	return b.String()
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)
