package main

import (
	"encoding/json"
	"karaokelover/middleware"
	"math"
	"net/http"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

// APIResponse builds a JSON reply. Every response carries Content-Type and,
// when set, X-Cache-Status, X-RateLimit-Type and Retry-After.
type APIResponse struct {
	w           http.ResponseWriter
	r           *http.Request
	cacheStatus string
	retryAfter  time.Duration
}

func Respond(w http.ResponseWriter, r *http.Request) *APIResponse {
	return &APIResponse{w: w, r: r}
}

// SetCacheStatus sets X-Cache-Status, usually HIT or MISS
func (a *APIResponse) SetCacheStatus(status string) *APIResponse {
	a.cacheStatus = status
	return a
}

// RetryAfter sets Retry-After in whole seconds, rounded up
func (a *APIResponse) RetryAfter(d time.Duration) *APIResponse {
	a.retryAfter = d
	return a
}

func (a *APIResponse) JSON(data interface{}) error {
	return a.write(http.StatusOK, data)
}

func (a *APIResponse) Error(statusCode int, data interface{}) error {
	return a.write(statusCode, data)
}

// ErrorMessage writes {"error": message}
func (a *APIResponse) ErrorMessage(statusCode int, message string) error {
	return a.write(statusCode, ErrorResponse{Error: message})
}

func (a *APIResponse) write(status int, data interface{}) error {
	h := a.w.Header()
	h.Set("Content-Type", "application/json")
	if a.cacheStatus != "" {
		h.Set("X-Cache-Status", a.cacheStatus)
	}
	if tier := middleware.RateLimitType(a.r.Context()); tier != "" {
		h.Set("X-RateLimit-Type", tier)
	}
	if a.retryAfter > 0 {
		h.Set("Retry-After", strconv.Itoa(int(math.Ceil(a.retryAfter.Seconds()))))
	}

	if status != http.StatusOK {
		a.w.WriteHeader(status)
	}
	if err := json.NewEncoder(a.w).Encode(data); err != nil {
		log.Debugf("Failed to write %d response for %s: %v", status, a.r.URL.Path, err)
		return err
	}
	return nil
}
