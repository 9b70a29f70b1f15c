package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"karaokelover/circuitbreaker"

	ytapi "google.golang.org/api/youtube/v3"
)

const searchResponse = `{
	"items": [
		{
			"id": {"kind": "youtube#video", "videoId": "abc123"},
			"snippet": {
				"title": "Adele - Hello (Karaoke Version) &amp; Lyrics",
				"channelTitle": "Sing King",
				"publishedAt": "2016-01-01T00:00:00Z",
				"thumbnails": {"medium": {"url": "https://i.ytimg.com/vi/abc123/mqdefault.jpg"}}
			}
		},
		{
			"id": {"kind": "youtube#channel", "channelId": "UC123"},
			"snippet": {"title": "A channel", "channelTitle": "Sing King"}
		}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, breaker *circuitbreaker.CircuitBreaker) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), Config{APIKey: "test-key", Endpoint: server.URL + "/", Timeout: time.Second}, breaker)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestClient_Search(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/search") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		expected := map[string]string{
			"q":               "adele hello karaoke",
			"type":            "video",
			"videoCategoryId": "10",
			"maxResults":      "20",
			"order":           "relevance",
			"key":             "test-key",
		}
		for key, want := range expected {
			if got := q.Get(key); got != want {
				t.Errorf("Expected %s=%q, got %q", key, want, got)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchResponse))
	}, nil)

	videos, err := client.Search(context.Background(), "adele hello")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(videos) != 1 {
		t.Fatalf("Expected 1 video (channel skipped), got %d", len(videos))
	}
	want := Video{
		VideoID:     "abc123",
		Title:       "Adele - Hello (Karaoke Version) & Lyrics",
		Channel:     "Sing King",
		Thumbnail:   "https://i.ytimg.com/vi/abc123/mqdefault.jpg",
		PublishedAt: "2016-01-01T00:00:00Z",
	}
	if videos[0] != want {
		t.Errorf("Search() = %+v, want %+v", videos[0], want)
	}
}

func TestClient_SearchTripsBreaker(t *testing.T) {
	var calls atomic.Int32
	breaker := circuitbreaker.New(circuitbreaker.Config{Name: "youtube-test", Threshold: 2, Cooldown: time.Minute})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": {"code": 403, "message": "quotaExceeded"}}`))
	}, breaker)

	for i := 0; i < 2; i++ {
		if _, err := client.Search(context.Background(), "x"); err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("Call %d: expected upstream error, got %v", i+1, err)
		}
	}

	if _, err := client.Search(context.Background(), "x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable once the breaker is open, got %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected upstream to be hit twice, got %d", calls.Load())
	}
}

func TestNewClient_NotConfigured(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestToVideos_ThumbnailFallback(t *testing.T) {
	items := []*ytapi.SearchResult{
		nil,
		{Id: &ytapi.ResourceId{VideoId: "noSnippet"}},
		{
			Id: &ytapi.ResourceId{VideoId: "v1"},
			Snippet: &ytapi.SearchResultSnippet{
				Title:      "t",
				Thumbnails: &ytapi.ThumbnailDetails{High: &ytapi.Thumbnail{Url: "high.jpg"}},
			},
		},
	}

	videos := toVideos(items)
	if len(videos) != 1 {
		t.Fatalf("Expected 1 video, got %d", len(videos))
	}
	if videos[0].Thumbnail != "high.jpg" {
		t.Errorf("Expected high thumbnail fallback, got %q", videos[0].Thumbnail)
	}
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Adele Hello", "adele hello"},
		{"  adele   HELLO ", "adele hello"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeQuery(tt.input); got != tt.expected {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
