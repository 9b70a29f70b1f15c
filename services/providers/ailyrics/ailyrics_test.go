package ailyrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"karaokelover/services/providers"
)

func TestNewProvider_NotConfigured(t *testing.T) {
	if p := NewProvider(Config{}); p != nil {
		t.Errorf("Expected nil provider without URL, got %+v", p)
	}
}

func TestAILyricsProvider_FetchLyrics(t *testing.T) {
	var got request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get(SecretHeader) != "s3cret" {
			t.Errorf("Expected secret header, got %q", r.Header.Get(SecretHeader))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"lyrics": "  Hello from the other side  "}`))
	}))
	defer server.Close()

	p := NewProvider(Config{WebhookURL: server.URL, Secret: "s3cret"})
	result, err := p.FetchLyrics(context.Background(), "Hello", "Adele")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if got.Artist != "Adele" || got.Song != "Hello" {
		t.Errorf("Unexpected request body %+v", got)
	}
	want := providers.LyricsResult{Lyrics: "Hello from the other side", Artist: "Adele", Song: "Hello", Source: providers.SourceAI}
	if *result != want {
		t.Errorf("FetchLyrics() = %+v, want %+v", *result, want)
	}
}

func TestAILyricsProvider_NoSecretHeaderWhenUnset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header[SecretHeader]; ok {
			t.Error("Did not expect a secret header")
		}
		w.Write([]byte(`{"lyrics": "la", "artist": "Queen", "song": "Bohemian Rhapsody"}`))
	}))
	defer server.Close()

	result, err := NewProvider(Config{WebhookURL: server.URL}).FetchLyrics(context.Background(), "Bohemian Rhapsody", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Artist != "Queen" {
		t.Errorf("Expected webhook-supplied artist, got %q", result.Artist)
	}
}

func TestAILyricsProvider_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{"empty lyrics", http.StatusOK, `{"lyrics": ""}`, true},
		{"whitespace lyrics", http.StatusOK, `{"lyrics": "   "}`, true},
		{"not found status", http.StatusNotFound, ``, true},
		{"server error", http.StatusBadGateway, `upstream down`, false},
		{"invalid JSON", http.StatusOK, `lyrics: hello`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result, err := NewProvider(Config{WebhookURL: server.URL}).FetchLyrics(context.Background(), "Hello", "Adele")
			if err == nil {
				t.Fatalf("Expected error, got %+v", result)
			}
			if providers.IsNotFound(err) != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v (err: %v)", providers.IsNotFound(err), tt.notFound, err)
			}
		})
	}
}

func TestAILyricsProvider_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	p := NewProvider(Config{WebhookURL: server.URL, Timeout: 30 * time.Millisecond})
	if _, err := p.FetchLyrics(context.Background(), "Hello", "Adele"); err == nil {
		t.Fatal("Expected timeout error")
	}
}
