package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"karaokelover/logcolors"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultBaseURL   = "https://lrclib.net"
	defaultTimeout   = 8 * time.Second
	defaultUserAgent = "karaokelover (https://www.karaokelover.com)"
	searchPath       = "/api/search"
)

// Config holds LRCLib client settings
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client talks to the LRCLib public API
type Client struct {
	baseURL    string
	userAgent  string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates an LRCLib client; zero config fields get defaults
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
}

// Search runs a free-text search and returns records in LRCLib's own order
func (c *Client) Search(ctx context.Context, query string) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL := c.baseURL + searchPath + "?" + url.Values{"q": {query}}.Encode()
	log.Debugf("%s Searching: %s", logcolors.LogLRCLib, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var records []Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return records, nil
}
