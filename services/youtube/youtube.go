// Package youtube searches YouTube for karaoke videos.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"html"
	"karaokelover/circuitbreaker"
	"karaokelover/logcolors"
	"strings"
	"time"

	sentry "github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	ytapi "google.golang.org/api/youtube/v3"
)

const (
	querySuffix     = " karaoke"
	musicCategoryID = "10"
	maxResults      = 20
	defaultTimeout  = 10 * time.Second
)

var (
	ErrNotConfigured = errors.New("youtube search is not configured")
	ErrUnavailable   = errors.New("youtube search is temporarily unavailable")
)

// Video is a single search hit as returned to the frontend
type Video struct {
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	Channel     string `json:"channel"`
	Thumbnail   string `json:"thumbnail"`
	PublishedAt string `json:"published_at"`
}

// Config holds YouTube client settings
type Config struct {
	APIKey  string
	Timeout time.Duration
	// Endpoint overrides the API base URL (tests)
	Endpoint string
}

// Client wraps the YouTube Data API search call behind a circuit breaker
type Client struct {
	service *ytapi.Service
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

// NewClient returns ErrNotConfigured when no API key is set
func NewClient(ctx context.Context, cfg Config, breaker *circuitbreaker.CircuitBreaker) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := ytapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube client: %w", err)
	}

	if breaker == nil {
		breaker = circuitbreaker.New(circuitbreaker.Config{Name: "youtube"})
	}
	return &Client{service: service, breaker: breaker, timeout: cfg.Timeout}, nil
}

// Search returns up to 20 karaoke videos for query, in YouTube's relevance order
func (c *Client) Search(ctx context.Context, query string) ([]Video, error) {
	span := sentry.StartSpan(ctx, "youtube.search")
	span.Description = "Search YouTube API"
	span.SetTag("query", query)
	defer span.Finish()

	var response *ytapi.SearchListResponse
	err := c.breaker.Execute(func() error {
		callCtx, cancel := context.WithTimeout(span.Context(), c.timeout)
		defer cancel()

		var err error
		response, err = c.service.Search.List([]string{"snippet"}).
			Q(query + querySuffix).
			Type("video").
			VideoCategoryId(musicCategoryID).
			MaxResults(maxResults).
			Order("relevance").
			Context(callCtx).
			Do()
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		span.Status = sentry.SpanStatusUnavailable
		log.Warnf("%s Circuit open, rejecting search for %q (retry in %v)",
			logcolors.LogSearch, query, c.breaker.TimeUntilRetry().Round(time.Second))
		return nil, ErrUnavailable
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		return nil, fmt.Errorf("error querying YouTube: %w", err)
	}

	span.Status = sentry.SpanStatusOK
	videos := toVideos(response.Items)
	log.Infof("%s %d results for %q", logcolors.LogSearch, len(videos), query)
	return videos, nil
}

func toVideos(items []*ytapi.SearchResult) []Video {
	videos := make([]Video, 0, len(items))
	for _, item := range items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		v := Video{
			VideoID:     item.Id.VideoId,
			Title:       html.UnescapeString(item.Snippet.Title),
			Channel:     html.UnescapeString(item.Snippet.ChannelTitle),
			PublishedAt: item.Snippet.PublishedAt,
		}
		if thumbs := item.Snippet.Thumbnails; thumbs != nil {
			for _, t := range []*ytapi.Thumbnail{thumbs.Medium, thumbs.High, thumbs.Default} {
				if t != nil && t.Url != "" {
					v.Thumbnail = t.Url
					break
				}
			}
		}
		videos = append(videos, v)
	}
	return videos
}

// NormalizeQuery lowercases and collapses whitespace so equivalent searches share a cache key
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
