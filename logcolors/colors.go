package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Cache-related log prefixes
const (
	LogCacheInit = Blue + "[Cache:Init]" + Reset
	LogCache     = Blue + "[Cache]" + Reset
	LogCacheHit  = Green + "[Cache:Hit]" + Reset
)

// Rate limiting and auth log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogWebhook   = Purple + "[Webhook]" + Reset
	LogAuth      = Purple + "[Auth]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

var sourceColors = []string{
	Green, Blue, Purple, Cyan,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan,
}

// Source returns a colored lyrics/AI source name for log messages.
// The same name always gets the same color.
func Source(name string) string {
	hash := 0
	for _, c := range name {
		hash += int(c)
	}
	return sourceColors[hash%len(sourceColors)] + name + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
	LogSentry = Cyan + "[Sentry]" + Reset
)

// Notification log prefixes
const (
	LogNotifier = Cyan + "[Notifier]" + Reset
)

// Resolution pipeline log prefixes
const (
	LogRequest   = Purple + "[Request]" + Reset
	LogIdentity  = Cyan + "[Identity]" + Reset
	LogAI        = BrightMagenta + "[AI]" + Reset
	LogLRCLib    = Blue + "[LRCLib]" + Reset
	LogAILyrics  = BrightMagenta + "[AI Lyrics]" + Reset
	LogLyrics    = Blue + "[Lyrics]" + Reset
	LogFallback  = Cyan + "[Fallback]" + Reset
	LogRecommend = Green + "[Recommend]" + Reset
	LogSearch    = Blue + "[Search]" + Reset
	LogTrending  = Green + "[Trending]" + Reset
	LogWarning   = Red + "[Warning]" + Reset
)
