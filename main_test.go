package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"karaokelover/cache"
	"karaokelover/circuitbreaker"
	"karaokelover/middleware"
	"karaokelover/services/identity"
	"karaokelover/services/lyrics"
	"karaokelover/services/notifier"
	"karaokelover/services/providers"
	"karaokelover/services/recommend"
	"karaokelover/services/trending"
	"karaokelover/services/youtube"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// setupTestServices swaps every package-level service for a test double and
// restores the originals when the test ends
func setupTestServices(t *testing.T) {
	t.Helper()

	origIdentity, origLyrics, origRecommender := identityResolver, lyricsResolver, recommender
	origSearch, origBreaker, origCache := videoSearch, searchBreaker, searchCache
	origTrending, origMonitor, origNotifiers := trendingStore, sourceMonitor, alertNotifiers
	t.Cleanup(func() {
		identityResolver, lyricsResolver, recommender = origIdentity, origLyrics, origRecommender
		videoSearch, searchBreaker, searchCache = origSearch, origBreaker, origCache
		trendingStore, sourceMonitor, alertNotifiers = origTrending, origMonitor, origNotifiers
	})

	tmpDir := t.TempDir()
	pc, err := cache.NewPersistentCache(filepath.Join(tmpDir, "search_cache.db"))
	if err != nil {
		t.Fatalf("Failed to create test cache: %v", err)
	}
	t.Cleanup(func() { pc.Close() })

	identityResolver = identity.NewResolver(nil)
	lyricsResolver = lyrics.NewResolver()
	recommender = nil
	videoSearch = nil
	searchBreaker = nil
	searchCache = pc
	trendingStore = trending.NewStore(filepath.Join(tmpDir, "trending.json"))
	sourceMonitor = nil
	alertNotifiers = nil
}

type fakeSearcher struct {
	calls   atomic.Int32
	videos  []youtube.Video
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]youtube.Video, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	return f.videos, f.err
}

type stubProvider struct {
	name      string
	result    *providers.LyricsResult
	err       error
	gotSong   string
	gotArtist string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) FetchLyrics(_ context.Context, song, artist string) (*providers.LyricsResult, error) {
	s.gotSong, s.gotArtist = song, artist
	return s.result, s.err
}

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(context.Context, string, int) (string, error) {
	return g.text, g.err
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (r *recordingNotifier) Send(subject, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, subject)
	return r.err
}

var testVideos = []youtube.Video{
	{VideoID: "abc123", Title: "Adele - Hello (Karaoke Version)", Channel: "Sing King"},
	{VideoID: "def456", Title: "Adele - Hello [Karaoke]", Channel: "KaraFun"},
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response body %q: %v", w.Body.String(), err)
	}
}

func TestSearchHandler_MissingQuery(t *testing.T) {
	setupTestServices(t)

	for _, target := range []string{"/api/search", "/api/search?q=", "/api/search?q=%20%20"} {
		w := httptest.NewRecorder()
		searchHandler(w, httptest.NewRequest("GET", target, nil))

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, w.Code, http.StatusBadRequest)
		}
	}
}

func TestSearchHandler_CachesResults(t *testing.T) {
	setupTestServices(t)
	searcher := &fakeSearcher{videos: testVideos}
	videoSearch = searcher

	w := httptest.NewRecorder()
	searchHandler(w, httptest.NewRequest("GET", "/api/search?q=Adele+Hello", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("X-Cache-Status = %q, want MISS", got)
	}
	var first SearchResponse
	decodeBody(t, w, &first)
	if len(first.Results) != len(testVideos) {
		t.Fatalf("got %d results, want %d", len(first.Results), len(testVideos))
	}

	// Casing and spacing differences share the cache entry
	w = httptest.NewRecorder()
	searchHandler(w, httptest.NewRequest("GET", "/api/search?q=%20adele%20%20HELLO", nil))

	if got := w.Header().Get("X-Cache-Status"); got != "HIT" {
		t.Errorf("X-Cache-Status = %q, want HIT", got)
	}
	var second SearchResponse
	decodeBody(t, w, &second)
	if len(second.Results) != len(testVideos) || second.Results[0].VideoID != "abc123" {
		t.Errorf("cached results = %+v, want %+v", second.Results, testVideos)
	}
	if calls := searcher.calls.Load(); calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
}

func TestSearchHandler_CachedTierServesOnlyHits(t *testing.T) {
	setupTestServices(t)
	searcher := &fakeSearcher{videos: testVideos}
	videoSearch = searcher

	// One normal request per IP, then the cached tier takes over
	limiter := middleware.NewIPRateLimiter(0.001, 1, 100, 100)
	handler := middleware.RateLimit(limiter, nil)(http.HandlerFunc(searchHandler))

	tests := []struct {
		name        string
		query       string
		statusCode  int
		cacheStatus string
		tier        string
	}{
		{"fresh search on normal tier", "adele hello", http.StatusOK, "MISS", middleware.TierNormal},
		{"uncached search on cached tier", "queen bohemian rhapsody", http.StatusTooManyRequests, "MISS", middleware.TierCached},
		{"cached search on cached tier", "Adele Hello", http.StatusOK, "HIT", middleware.TierCached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/search?q="+strings.ReplaceAll(tt.query, " ", "+"), nil)
			r.RemoteAddr = "192.0.2.10:5000"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}
			if got := w.Header().Get("X-Cache-Status"); got != tt.cacheStatus {
				t.Errorf("X-Cache-Status = %q, want %q", got, tt.cacheStatus)
			}
			if got := w.Header().Get("X-RateLimit-Type"); got != tt.tier {
				t.Errorf("X-RateLimit-Type = %q, want %q", got, tt.tier)
			}
		})
	}

	if calls := searcher.calls.Load(); calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
}

func TestSearchHandler_Failures(t *testing.T) {
	tests := []struct {
		name       string
		searcher   videoSearcher
		statusCode int
		retryAfter string
	}{
		{"not configured", nil, http.StatusServiceUnavailable, ""},
		{"circuit open", &fakeSearcher{err: youtube.ErrUnavailable}, http.StatusServiceUnavailable, "60"},
		{"upstream error", &fakeSearcher{err: errors.New("quotaExceeded")}, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestServices(t)
			videoSearch = tt.searcher

			w := httptest.NewRecorder()
			searchHandler(w, httptest.NewRequest("GET", "/api/search?q=hello", nil))

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}
			if got := w.Header().Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}

			var resp ErrorResponse
			decodeBody(t, w, &resp)
			if resp.Error == "" {
				t.Error("expected an error message")
			}
			if _, ok := getCachedSearch(searchCacheKey("hello")); ok {
				t.Error("failed search must not be cached")
			}
		})
	}
}

func TestSearchOnce_SharesInFlightResult(t *testing.T) {
	setupTestServices(t)
	searcher := &fakeSearcher{
		videos:  testVideos,
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
	videoSearch = searcher

	const callers = 5
	key := searchCacheKey("adele hello")
	results := make([][]youtube.Video, callers)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = searchOnce(context.Background(), key, "adele hello")
	}()
	<-searcher.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = searchOnce(context.Background(), key, "adele hello")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(searcher.release)
	wg.Wait()

	if calls := searcher.calls.Load(); calls != 1 {
		t.Errorf("upstream calls = %d, want 1", calls)
	}
	for i, res := range results {
		if len(res) != len(testVideos) {
			t.Errorf("caller %d got %d results, want %d", i, len(res), len(testVideos))
		}
	}
}

func TestLyricsHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		provider   *stubProvider
		statusCode int
		wantSong   string
		wantArtist string
	}{
		{
			name:       "missing title",
			target:     "/api/lyrics",
			provider:   &stubProvider{name: "lrclib"},
			statusCode: http.StatusBadRequest,
		},
		{
			name:   "found",
			target: "/api/lyrics?title=" + "Adele+-+Hello+(Karaoke+Version)",
			provider: &stubProvider{name: "lrclib", result: &providers.LyricsResult{
				Lyrics: "Hello, it's me", Artist: "Adele", Song: "Hello", Source: providers.SourceLRCLib,
			}},
			statusCode: http.StatusOK,
			wantSong:   "Hello",
			wantArtist: "Adele",
		},
		{
			name:       "not found",
			target:     "/api/lyrics?title=Toto+-+Africa",
			provider:   &stubProvider{name: "lrclib", err: providers.ErrLyricsNotFound},
			statusCode: http.StatusNotFound,
			wantSong:   "Africa",
			wantArtist: "Toto",
		},
		{
			name:       "all-noise title is used verbatim",
			target:     "/api/lyrics?title=Karaoke+Lyrics",
			provider:   &stubProvider{name: "lrclib", err: providers.ErrLyricsNotFound},
			statusCode: http.StatusNotFound,
			wantSong:   "Karaoke Lyrics",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestServices(t)
			lyricsResolver = lyrics.NewResolver(tt.provider)

			w := httptest.NewRecorder()
			lyricsHandler(w, httptest.NewRequest("GET", tt.target, nil))

			if w.Code != tt.statusCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.statusCode)
			}
			if tt.provider.gotSong != tt.wantSong || tt.provider.gotArtist != tt.wantArtist {
				t.Errorf("provider got (%q, %q), want (%q, %q)",
					tt.provider.gotSong, tt.provider.gotArtist, tt.wantSong, tt.wantArtist)
			}

			if tt.statusCode == http.StatusOK {
				var result providers.LyricsResult
				decodeBody(t, w, &result)
				if result.Lyrics != "Hello, it's me" || result.Source != providers.SourceLRCLib {
					t.Errorf("result = %+v", result)
				}
			}
		})
	}
}

func TestIdentifyHandler(t *testing.T) {
	setupTestServices(t)

	w := httptest.NewRecorder()
	identifyHandler(w, httptest.NewRequest("GET", "/api/identify?title=Queen+-+Don%27t+Stop+Me+Now+(Karaoke+Version)", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp IdentifyResponse
	decodeBody(t, w, &resp)

	want := IdentifyResponse{Artist: "Queen", Song: "Don't Stop Me Now", Strategy: identity.StrategyNormalizer}
	if resp != want {
		t.Errorf("response = %+v, want %+v", resp, want)
	}

	w = httptest.NewRecorder()
	identifyHandler(w, httptest.NewRequest("GET", "/api/identify", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing title: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestRecommendationsHandler(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		generator  *stubGenerator
		statusCode int
		wantCount  int
	}{
		{"missing song", "/api/recommendations", nil, http.StatusBadRequest, 0},
		{"not configured", "/api/recommendations?song=Hello", nil, http.StatusOK, 0},
		{
			name:   "generated",
			target: "/api/recommendations?song=Adele+-+Hello",
			generator: &stubGenerator{text: "```json\n" +
				`[{"artist":"Adele","song":"Someone Like You"},{"artist":"Sam Smith","song":"Stay With Me"}]` +
				"\n```"},
			statusCode: http.StatusOK,
			wantCount:  2,
		},
		{"generator failure", "/api/recommendations?song=Hello", &stubGenerator{err: errors.New("boom")}, http.StatusOK, 0},
		{"unparseable output", "/api/recommendations?song=Hello", &stubGenerator{text: "Sure! Here are some songs"}, http.StatusOK, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestServices(t)
			if tt.generator != nil {
				recommender = recommend.NewGenerator(tt.generator, recommend.Config{Timeout: time.Second})
			}

			w := httptest.NewRecorder()
			recommendationsHandler(w, httptest.NewRequest("GET", tt.target, nil))

			if w.Code != tt.statusCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.statusCode)
			}
			if tt.statusCode != http.StatusOK {
				return
			}

			// The list is always present, never null
			if !strings.Contains(w.Body.String(), `"recommendations":[`) {
				t.Errorf("body = %s, want a recommendations array", w.Body.String())
			}
			var resp RecommendationsResponse
			decodeBody(t, w, &resp)
			if len(resp.Recommendations) != tt.wantCount {
				t.Errorf("got %d recommendations, want %d", len(resp.Recommendations), tt.wantCount)
			}
		})
	}
}

func TestTrendingHandlers(t *testing.T) {
	setupTestServices(t)
	update := middleware.WebhookAuth("webhook-secret")(updateTrending)

	w := httptest.NewRecorder()
	getTrending(w, httptest.NewRequest("GET", "/api/trending", nil))
	if !strings.Contains(w.Body.String(), `"songs":[]`) {
		t.Errorf("empty trending body = %s", w.Body.String())
	}

	tests := []struct {
		name       string
		secret     string
		body       string
		statusCode int
	}{
		{"wrong secret", "nope", `{"songs":[{"artist":"Adele","song":"Hello"}]}`, http.StatusUnauthorized},
		{"invalid json", "webhook-secret", `{"songs":`, http.StatusBadRequest},
		{"unknown field", "webhook-secret", `{"songs":[],"extra":true}`, http.StatusBadRequest},
		{"missing songs", "webhook-secret", `{}`, http.StatusBadRequest},
		{"blank song", "webhook-secret", `{"songs":[{"artist":"Adele","song":"  "}]}`, http.StatusBadRequest},
		{"valid list", "webhook-secret", `{"songs":[{"artist":"Adele","song":"Hello"},{"artist":"Toto","song":"Africa"}]}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/api/trending", bytes.NewBufferString(tt.body))
			r.Header.Set(middleware.WebhookSecretHeader, tt.secret)
			w := httptest.NewRecorder()
			update(w, r)

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.statusCode, w.Body.String())
			}
		})
	}

	w = httptest.NewRecorder()
	getTrending(w, httptest.NewRequest("GET", "/api/trending", nil))
	var resp TrendingResponse
	decodeBody(t, w, &resp)
	if len(resp.Songs) != 2 || resp.Songs[1].Song != "Africa" {
		t.Errorf("trending = %+v, want the replaced list", resp.Songs)
	}
}

func TestGetHealthStatus(t *testing.T) {
	setupTestServices(t)

	w := httptest.NewRecorder()
	getHealthStatus(w, httptest.NewRequest("GET", "/health", nil))

	var health map[string]interface{}
	decodeBody(t, w, &health)
	if health["status"] != "ok" {
		t.Errorf("status = %v, want ok", health["status"])
	}
	caps, ok := health["capabilities"].(map[string]interface{})
	if !ok {
		t.Fatalf("capabilities missing: %v", health)
	}
	if caps["search"] != false || caps["ai_extraction"] != false || caps["recommendations"] != false {
		t.Errorf("capabilities = %v, want everything optional disabled", caps)
	}

	searchBreaker = circuitbreaker.New(circuitbreaker.Config{Name: "youtube", Threshold: 1, Cooldown: time.Minute})
	searchBreaker.RecordFailure()

	w = httptest.NewRecorder()
	getHealthStatus(w, httptest.NewRequest("GET", "/health", nil))
	health = nil
	decodeBody(t, w, &health)
	if health["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", health["status"])
	}
	if health["circuit_breaker"] != "OPEN" {
		t.Errorf("circuit_breaker = %v, want OPEN", health["circuit_breaker"])
	}
}

func TestClearCache(t *testing.T) {
	setupTestServices(t)
	setCachedSearch(searchCacheKey("adele hello"), testVideos)

	w := httptest.NewRecorder()
	clearCache(w, httptest.NewRequest("GET", "/cache/clear", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}

	w = httptest.NewRecorder()
	clearCache(w, httptest.NewRequest("POST", "/cache/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("POST status = %d, want %d", w.Code, http.StatusOK)
	}
	if _, ok := getCachedSearch(searchCacheKey("adele hello")); ok {
		t.Error("entry still cached after clear")
	}
}

func TestResetCircuitBreaker(t *testing.T) {
	setupTestServices(t)
	searchBreaker = circuitbreaker.New(circuitbreaker.Config{Name: "youtube", Threshold: 1})
	searchBreaker.RecordFailure()

	w := httptest.NewRecorder()
	resetCircuitBreaker(w, httptest.NewRequest("POST", "/circuit-breaker/reset", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if searchBreaker.State() != circuitbreaker.StateClosed {
		t.Errorf("state = %s, want CLOSED", searchBreaker.State())
	}
}

func TestTestNotifications(t *testing.T) {
	tests := []struct {
		name       string
		notifiers  []notifier.Notifier
		statusCode int
	}{
		{"none configured", nil, http.StatusBadRequest},
		{"delivered", []notifier.Notifier{&recordingNotifier{}}, http.StatusOK},
		{"failed", []notifier.Notifier{&recordingNotifier{err: errors.New("offline")}}, http.StatusPartialContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestServices(t)
			alertNotifiers = tt.notifiers

			w := httptest.NewRecorder()
			testNotifications(w, httptest.NewRequest("POST", "/test-notifications", nil))

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}
			for _, n := range tt.notifiers {
				if rn := n.(*recordingNotifier); len(rn.sent) != 1 {
					t.Errorf("notifier received %d messages, want 1", len(rn.sent))
				}
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	setupTestServices(t)
	router := mux.NewRouter()
	setupRoutes(router)

	tests := []struct {
		name        string
		method      string
		target      string
		statusCode  int
		contentType string
	}{
		{"search without backend", "GET", "/api/search?q=hello", http.StatusServiceUnavailable, "application/json"},
		{"lyrics requires title", "GET", "/api/lyrics", http.StatusBadRequest, "application/json"},
		{"identify", "GET", "/api/identify?title=Adele+-+Hello", http.StatusOK, "application/json"},
		{"trending", "GET", "/api/trending", http.StatusOK, "application/json"},
		{"health", "GET", "/health", http.StatusOK, "application/json"},
		{"sitemap", "GET", "/sitemap.xml", http.StatusOK, "application/xml"},
		{"wrong method", "POST", "/api/lyrics?title=hello", http.StatusMethodNotAllowed, "application/json"},
		{"unknown path", "GET", "/nope", http.StatusNotFound, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.target, nil))

			if w.Code != tt.statusCode {
				t.Errorf("status = %d, want %d", w.Code, tt.statusCode)
			}
			if got := w.Header().Get("Content-Type"); !strings.HasPrefix(got, tt.contentType) {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
		})
	}
}

func TestSitemapHandler(t *testing.T) {
	w := httptest.NewRecorder()
	sitemapHandler(w, httptest.NewRequest("GET", "/sitemap.xml", nil))

	body := w.Body.String()
	if !strings.Contains(body, "<urlset") || !strings.Contains(body, "<loc>") {
		t.Errorf("sitemap body = %s", body)
	}
}

func TestXMLEscape(t *testing.T) {
	got := xmlEscape(`https://example.com/?a=1&b="2"`)
	want := "https://example.com/?a=1&amp;b=&quot;2&quot;"
	if got != want {
		t.Errorf("xmlEscape = %q, want %q", got, want)
	}
}
