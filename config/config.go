package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Server struct {
		Port                      string        `envconfig:"PORT" default:"5002"`
		RateLimitPerSecond        int           `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
		RateLimitBurstLimit       int           `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"10"`
		CachedRateLimitPerSecond  int           `envconfig:"CACHED_RATE_LIMIT_PER_SECOND" default:"20"`
		CachedRateLimitBurstLimit int           `envconfig:"CACHED_RATE_LIMIT_BURST_LIMIT" default:"40"`
		AccessToken               string        `envconfig:"ACCESS_TOKEN" default:""`
		StaticDir                 string        `envconfig:"STATIC_DIR" default:"static"`
		SiteURL                   string        `envconfig:"SITE_URL" default:"https://www.karaokelover.com/"`
		AllowedOrigins            []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"https://www.karaokelover.com,http://localhost:3000"`
		LogLevel                  string        `envconfig:"LOG_LEVEL" default:"info"`
		ShutdownTimeout           time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	}

	// AI holds the text-generation capability shared by title extraction and recommendations.
	// Leaving the selected provider's key empty disables both.
	AI struct {
		Provider               string        `envconfig:"AI_PROVIDER" default:"gemini"`
		GeminiAPIKey           string        `envconfig:"GEMINI_API_KEY" default:""`
		GeminiModel            string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
		GeminiBaseURL          string        `envconfig:"GEMINI_BASE_URL" default:""`
		AnthropicAPIKey        string        `envconfig:"ANTHROPIC_API_KEY" default:""`
		AnthropicModel         string        `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest"`
		AnthropicBaseURL       string        `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
		ExtractTimeout         time.Duration `envconfig:"AI_EXTRACT_TIMEOUT" default:"8s"`
		ExtractMaxTokens       int           `envconfig:"AI_EXTRACT_MAX_TOKENS" default:"150"`
		RecommendTimeout       time.Duration `envconfig:"AI_RECOMMEND_TIMEOUT" default:"15s"`
		RecommendMaxTokens     int           `envconfig:"AI_RECOMMEND_MAX_TOKENS" default:"600"`
		DisableTitleExtraction bool          `envconfig:"AI_DISABLE_TITLE_EXTRACTION" default:"false"`
	}

	LRCLib struct {
		BaseURL   string        `envconfig:"LRCLIB_BASE_URL" default:"https://lrclib.net"`
		Timeout   time.Duration `envconfig:"LRCLIB_TIMEOUT" default:"8s"`
		UserAgent string        `envconfig:"LRCLIB_USER_AGENT" default:"karaokelover (https://www.karaokelover.com)"`
	}

	AILyrics struct {
		WebhookURL    string        `envconfig:"AI_LYRICS_WEBHOOK_URL" default:""`
		WebhookSecret string        `envconfig:"AI_LYRICS_WEBHOOK_SECRET" default:""`
		Timeout       time.Duration `envconfig:"AI_LYRICS_TIMEOUT" default:"15s"`
	}

	YouTube struct {
		APIKey                  string        `envconfig:"YOUTUBE_API_KEY" default:""`
		Timeout                 time.Duration `envconfig:"YOUTUBE_TIMEOUT" default:"10s"`
		CircuitBreakerThreshold int           `envconfig:"YOUTUBE_CIRCUIT_BREAKER_THRESHOLD" default:"5"`
		CircuitBreakerCooldown  time.Duration `envconfig:"YOUTUBE_CIRCUIT_BREAKER_COOLDOWN" default:"5m"`
		SearchCacheTTL          time.Duration `envconfig:"SEARCH_CACHE_TTL" default:"6h"`
		CacheDBPath             string        `envconfig:"CACHE_DB_PATH" default:"search_cache.db"`
	}

	Trending struct {
		File          string `envconfig:"TRENDING_FILE" default:"data/trending.json"`
		WebhookSecret string `envconfig:"TRENDING_WEBHOOK_SECRET" default:""`
	}

	Stats struct {
		DBPath           string        `envconfig:"STATS_DB_PATH" default:"stats.db"`
		AutoSaveInterval time.Duration `envconfig:"STATS_AUTOSAVE_INTERVAL" default:"5m"`
	}

	Notifications struct {
		NtfyTopic        string        `envconfig:"NOTIFIER_NTFY_TOPIC" default:""`
		NtfyServer       string        `envconfig:"NOTIFIER_NTFY_SERVER" default:"https://ntfy.sh"`
		TelegramBotToken string        `envconfig:"NOTIFIER_TELEGRAM_BOT_TOKEN" default:""`
		TelegramChatID   string        `envconfig:"NOTIFIER_TELEGRAM_CHAT_ID" default:""`
		AlertCooldown    time.Duration `envconfig:"NOTIFIER_ALERT_COOLDOWN" default:"15m"`
		MonitorInterval  time.Duration `envconfig:"NOTIFIER_MONITOR_INTERVAL" default:"10m"`
		MonitorFailures  int           `envconfig:"NOTIFIER_MONITOR_FAILURES" default:"3"`
	}

	Sentry struct {
		DSN         string `envconfig:"SENTRY_DSN" default:""`
		Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}

// AIConfigured reports whether the selected text-generation provider has a credential.
func (c Config) AIConfigured() bool {
	switch strings.ToLower(c.AI.Provider) {
	case "anthropic":
		return c.AI.AnthropicAPIKey != ""
	default:
		return c.AI.GeminiAPIKey != ""
	}
}
