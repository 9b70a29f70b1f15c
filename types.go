package main

import (
	"karaokelover/services/identity"
	"karaokelover/services/recommend"
	"karaokelover/services/trending"
	"karaokelover/services/youtube"
	"sync"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchResponse is the response format for /api/search
type SearchResponse struct {
	Results []youtube.Video `json:"results"`
}

// IdentifyResponse is the response format for /api/identify
type IdentifyResponse struct {
	Artist   string            `json:"artist"`
	Song     string            `json:"song"`
	Strategy identity.Strategy `json:"strategy"`
}

// RecommendationsResponse is the response format for /api/recommendations
type RecommendationsResponse struct {
	Recommendations []recommend.Item `json:"recommendations"`
}

// TrendingResponse is the request and response format for /api/trending
type TrendingResponse struct {
	Songs []trending.Song `json:"songs"`
}

// CacheStatusResponse is the response format for /cache
type CacheStatusResponse struct {
	NumberOfKeys int     `json:"number_of_keys"`
	SizeInKB     int64   `json:"size_kb"`
	HitRate      float64 `json:"hit_rate_percent"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
}

// InFlightRequest tracks concurrent searches for the same normalized query
type InFlightRequest struct {
	wg     sync.WaitGroup
	result []youtube.Video
	err    error
}
