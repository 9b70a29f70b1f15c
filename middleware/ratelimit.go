package middleware

import (
	"context"
	"fmt"
	"karaokelover/logcolors"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type contextKey string

const (
	cacheOnlyModeKey contextKey = "cacheOnlyMode"
	rateLimitTypeKey contextKey = "rateLimitType"
)

// Rate limit tiers reported in X-RateLimit-Type
const (
	TierNormal   = "normal"
	TierCached   = "cached"
	TierExceeded = "exceeded"
)

// LimiterPair holds both normal and cached tier limiters for an IP
type LimiterPair struct {
	Normal   *rate.Limiter
	Cached   *rate.Limiter
	lastSeen time.Time
}

// GetNormalTokens returns the number of tokens available in the normal tier
func (lp *LimiterPair) GetNormalTokens() int {
	return int(math.Floor(lp.Normal.Tokens()))
}

// GetCachedTokens returns the number of tokens available in the cached tier
func (lp *LimiterPair) GetCachedTokens() int {
	return int(math.Floor(lp.Cached.Tokens()))
}

// IPRateLimiter manages two-tier rate limiting per IP.
// The normal tier admits any request; once it is drained the cached tier
// admits requests that can be answered from the search cache alone.
type IPRateLimiter struct {
	ips         map[string]*LimiterPair
	mu          *sync.Mutex
	normalRate  rate.Limit
	normalBurst int
	cachedRate  rate.Limit
	cachedBurst int
}

// NewIPRateLimiter creates a new two-tier rate limiter
func NewIPRateLimiter(normalRate rate.Limit, normalBurst int, cachedRate rate.Limit, cachedBurst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:         make(map[string]*LimiterPair),
		mu:          &sync.Mutex{},
		normalRate:  normalRate,
		normalBurst: normalBurst,
		cachedRate:  cachedRate,
		cachedBurst: cachedBurst,
	}
}

// GetNormalLimit returns the normal tier burst limit
func (i *IPRateLimiter) GetNormalLimit() int {
	return i.normalBurst
}

// GetCachedLimit returns the cached tier burst limit
func (i *IPRateLimiter) GetCachedLimit() int {
	return i.cachedBurst
}

// GetLimiter returns the pair for ip, creating it on first sight, and marks ip as seen
func (i *IPRateLimiter) GetLimiter(ip string) *LimiterPair {
	i.mu.Lock()
	defer i.mu.Unlock()

	pair, ok := i.ips[ip]
	if !ok {
		pair = &LimiterPair{
			Normal: rate.NewLimiter(i.normalRate, i.normalBurst),
			Cached: rate.NewLimiter(i.cachedRate, i.cachedBurst),
		}
		i.ips[ip] = pair
	}
	pair.lastSeen = time.Now()
	return pair
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.ips)
}

// Prune drops limiters for IPs not seen within idle and returns how many were removed
func (i *IPRateLimiter) Prune(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for ip, pair := range i.ips {
		if pair.lastSeen.Before(cutoff) {
			delete(i.ips, ip)
			removed++
		}
	}
	return removed
}

// StartPruning prunes idle limiters every interval until ctx is done
func (i *IPRateLimiter) StartPruning(ctx context.Context, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := i.Prune(idle); n > 0 {
					log.Debugf("%s Pruned %d idle limiters", logcolors.LogRateLimit, n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ClientIP returns the request's remote host without its port
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit applies the two-tier limiter. onExceeded, when non-nil, runs for
// every request rejected with 429.
func RateLimit(limiter *IPRateLimiter, onExceeded func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			pair := limiter.GetLimiter(ip)
			ctx := r.Context()

			switch {
			case pair.Normal.Allow():
				setLimitHeaders(w, TierNormal, limiter.GetNormalLimit(), pair.GetNormalTokens())
				ctx = context.WithValue(ctx, rateLimitTypeKey, TierNormal)

			case pair.Cached.Allow():
				log.Debugf("%s IP %s exceeded normal tier, using cached tier", logcolors.LogRateLimit, ip)
				setLimitHeaders(w, TierCached, limiter.GetCachedLimit(), pair.GetCachedTokens())
				ctx = context.WithValue(ctx, cacheOnlyModeKey, true)
				ctx = context.WithValue(ctx, rateLimitTypeKey, TierCached)

			default:
				if onExceeded != nil {
					onExceeded()
				}
				log.Warnf("%s IP %s exceeded both rate limit tiers", logcolors.LogRateLimit, ip)
				setLimitHeaders(w, TierExceeded, limiter.GetCachedLimit(), 0)
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func setLimitHeaders(w http.ResponseWriter, tier string, limit, remaining int) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	h.Set("X-RateLimit-Type", tier)
}

// IsCacheOnly reports whether the request was admitted by the cached tier
func IsCacheOnly(ctx context.Context) bool {
	cacheOnly, _ := ctx.Value(cacheOnlyModeKey).(bool)
	return cacheOnly
}

// RateLimitType returns the tier that admitted the request, if any
func RateLimitType(ctx context.Context) string {
	tier, _ := ctx.Value(rateLimitTypeKey).(string)
	return tier
}

// RequireFreshTier rejects cached-tier requests for endpoints that cannot be
// answered from cache
func RequireFreshTier(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if IsCacheOnly(r.Context()) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded, only cached search results are available")
			return
		}
		next(w, r)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, "{\"error\":%q}\n", message)
}
