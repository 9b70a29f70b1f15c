package main

import (
	"context"
	"errors"
	"karaokelover/cache"
	"karaokelover/circuitbreaker"
	"karaokelover/logcolors"
	"karaokelover/services/identity"
	"karaokelover/services/lyrics"
	"karaokelover/services/notifier"
	"karaokelover/services/providers"
	"karaokelover/services/providers/ailyrics"
	"karaokelover/services/providers/lrclib"
	"karaokelover/services/recommend"
	"karaokelover/services/textgen"
	"karaokelover/services/youtube"
	"karaokelover/stats"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"
)

const monitorProbeQuery = "hello"

// setupSentry initializes error reporting when a DSN is configured
func setupSentry() bool {
	if conf.Sentry.DSN == "" {
		log.Infof("%s SENTRY_DSN not set, error reporting disabled", logcolors.LogSentry)
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              conf.Sentry.DSN,
		Environment:      conf.Sentry.Environment,
		TracesSampleRate: 1.0,
	})
	if err != nil {
		log.Errorf("%s Initialization failed: %v", logcolors.LogSentry, err)
		return false
	}

	log.Infof("%s Error reporting enabled (%s)", logcolors.LogSentry, conf.Sentry.Environment)
	return true
}

// reportError sends err to Sentry using the request's hub when there is one
func reportError(r *http.Request, err error) {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

func getNotifierTypeName(n notifier.Notifier) string {
	switch n.(type) {
	case *notifier.TelegramNotifier:
		return "telegram"
	case *notifier.NtfyNotifier:
		return "ntfy"
	default:
		return "unknown"
	}
}

func setupNotifiers() []notifier.Notifier {
	notifiers := notifier.FromConfig(notifier.Config{
		NtfyTopic:        conf.Notifications.NtfyTopic,
		NtfyServer:       conf.Notifications.NtfyServer,
		TelegramBotToken: conf.Notifications.TelegramBotToken,
		TelegramChatID:   conf.Notifications.TelegramChatID,
	})

	if len(notifiers) == 0 {
		log.Infof("%s No notifiers configured, alerts are logged only", logcolors.LogNotifier)
		return nil
	}
	for _, n := range notifiers {
		log.Infof("%s %s notifier enabled", logcolors.LogNotifier, getNotifierTypeName(n))
	}

	handler := notifier.NewAlertHandler(notifier.AlertConfig{
		Notifiers:        notifiers,
		CooldownDuration: conf.Notifications.AlertCooldown,
	})
	handler.Start(nil)
	return notifiers
}

// onBreakerTransition forwards circuit breaker state changes to the event bus
func onBreakerTransition(t circuitbreaker.Transition) {
	switch {
	case t.To == circuitbreaker.StateOpen:
		notifier.PublishCircuitBreakerOpen(t.Name, t.Failures, t.Cooldown)
	case t.To == circuitbreaker.StateClosed && t.From != circuitbreaker.StateClosed:
		notifier.PublishCircuitBreakerRecovered(t.Name)
	}
}

// setupIdentity wires title extraction and recommendations to the shared
// text generator. A missing credential disables both without failing startup.
func setupIdentity(ctx context.Context) {
	if !conf.AIConfigured() {
		log.Infof("%s No credential for AI provider %q, titles are parsed by the normalizer only",
			logcolors.LogIdentity, conf.AI.Provider)
		identityResolver = identity.NewResolver(nil)
		recommender = recommend.NewGenerator(nil, recommend.Config{})
		return
	}

	gen, err := textgen.New(ctx, textgen.Config{
		Provider:         conf.AI.Provider,
		GeminiAPIKey:     conf.AI.GeminiAPIKey,
		GeminiModel:      conf.AI.GeminiModel,
		GeminiBaseURL:    conf.AI.GeminiBaseURL,
		AnthropicAPIKey:  conf.AI.AnthropicAPIKey,
		AnthropicModel:   conf.AI.AnthropicModel,
		AnthropicBaseURL: conf.AI.AnthropicBaseURL,
		HTTPTimeout:      conf.AI.RecommendTimeout,
	})
	if err != nil {
		log.Errorf("%s Text generation unavailable: %v", logcolors.LogAI, err)
		notifier.PublishServerStartupFailed("textgen", err)
		gen = nil
	}

	var extractor identity.MetadataExtractor
	switch {
	case gen == nil:
		log.Infof("%s Text generation failed to start, titles are parsed by the normalizer only", logcolors.LogIdentity)
	case conf.AI.DisableTitleExtraction:
		log.Infof("%s AI title extraction disabled by configuration", logcolors.LogIdentity)
	default:
		extractor = identity.NewAIExtractor(gen, identity.AIExtractorConfig{
			Timeout:   conf.AI.ExtractTimeout,
			MaxTokens: conf.AI.ExtractMaxTokens,
		})
		log.Infof("%s AI title extraction enabled (%s)", logcolors.LogIdentity, gen.Name())
	}
	identityResolver = identity.NewResolver(extractor)

	recommender = recommend.NewGenerator(gen, recommend.Config{
		Timeout:   conf.AI.RecommendTimeout,
		MaxTokens: conf.AI.RecommendMaxTokens,
	})
	if !recommender.Enabled() {
		log.Infof("%s Recommendations disabled, responses will be empty", logcolors.LogRecommend)
	}
}

// setupLyrics builds the ordered lyrics chain and returns the LRCLib client
// for health probing
func setupLyrics() *lrclib.Client {
	lrclibClient := lrclib.NewClient(lrclib.Config{
		BaseURL:   conf.LRCLib.BaseURL,
		Timeout:   conf.LRCLib.Timeout,
		UserAgent: conf.LRCLib.UserAgent,
	})

	sources := []providers.Provider{lrclib.NewProvider(lrclibClient)}
	if p := ailyrics.NewProvider(ailyrics.Config{
		WebhookURL: conf.AILyrics.WebhookURL,
		Secret:     conf.AILyrics.WebhookSecret,
		Timeout:    conf.AILyrics.Timeout,
	}); p != nil {
		sources = append(sources, p)
	}

	lyricsResolver = lyrics.NewResolver(sources...)
	log.Infof("%s Sources: %v", logcolors.LogLyrics, lyricsResolver.Sources())
	return lrclibClient
}

// setupSearch creates the YouTube client and the persistent search cache
func setupSearch(ctx context.Context) {
	searchBreaker = circuitbreaker.New(circuitbreaker.Config{
		Name:         "youtube",
		Threshold:    conf.YouTube.CircuitBreakerThreshold,
		Cooldown:     conf.YouTube.CircuitBreakerCooldown,
		OnTransition: onBreakerTransition,
	})

	client, err := youtube.NewClient(ctx, youtube.Config{
		APIKey:  conf.YouTube.APIKey,
		Timeout: conf.YouTube.Timeout,
	}, searchBreaker)
	switch {
	case errors.Is(err, youtube.ErrNotConfigured):
		log.Warnf("%s YOUTUBE_API_KEY not set, search disabled", logcolors.LogSearch)
	case err != nil:
		log.Errorf("%s %v", logcolors.LogSearch, err)
		notifier.PublishServerStartupFailed("youtube", err)
	default:
		videoSearch = client
	}

	pc, err := cache.NewPersistentCache(conf.YouTube.CacheDBPath)
	if err != nil {
		log.Errorf("%s Search cache unavailable, continuing without it: %v", logcolors.LogCacheInit, err)
		notifier.PublishServerStartupFailed("search cache", err)
	} else {
		searchCache = pc
	}
}

func setupTrending() {
	if err := trendingStore.Load(); err != nil {
		log.Errorf("%s Failed to load %s, starting empty: %v", logcolors.LogTrending, conf.Trending.File, err)
		return
	}
	log.Infof("%s Loaded %d songs", logcolors.LogTrending, len(trendingStore.Songs()))
}

// setupMonitor probes LRCLib on an interval. YouTube is left to its circuit
// breaker since every search costs quota.
func setupMonitor(ctx context.Context, lrclibClient *lrclib.Client) {
	checks := []notifier.SourceCheck{{
		Name: "lrclib",
		Probe: func(ctx context.Context) error {
			_, err := lrclibClient.Search(ctx, monitorProbeQuery)
			return err
		},
	}}

	sourceMonitor = notifier.NewSourceMonitor(notifier.MonitorConfig{
		Sources:          checks,
		FailureThreshold: conf.Notifications.MonitorFailures,
	})

	if conf.Notifications.MonitorInterval <= 0 {
		log.Infof("%s Source monitoring disabled", logcolors.LogNotifier)
		return
	}
	go sourceMonitor.Run(ctx, conf.Notifications.MonitorInterval)
}

func capabilities() []string {
	caps := append([]string{}, lyricsResolver.Sources()...)
	if identityResolver.AIEnabled() {
		caps = append(caps, "ai extraction")
	}
	if recommender.Enabled() {
		caps = append(caps, "recommendations")
	}
	if videoSearch != nil {
		caps = append(caps, "search")
	}
	return caps
}

func recordRequest(path string, status int, d time.Duration) {
	s := stats.Get()
	s.RecordRequest(path)
	s.RecordStatusCode(status)
	s.RecordResponseTime(d)
}
