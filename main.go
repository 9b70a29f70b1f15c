package main

import (
	"context"
	"errors"
	"karaokelover/cache"
	"karaokelover/circuitbreaker"
	"karaokelover/config"
	"karaokelover/logcolors"
	"karaokelover/middleware"
	"karaokelover/services/identity"
	"karaokelover/services/lyrics"
	"karaokelover/services/notifier"
	"karaokelover/services/recommend"
	"karaokelover/services/trending"
	"karaokelover/services/youtube"
	"karaokelover/stats"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	limiterPruneInterval = 10 * time.Minute
	limiterIdleTimeout   = 30 * time.Minute
	cachePurgeInterval   = 30 * time.Minute
)

// videoSearcher is the part of the YouTube client the handlers use
type videoSearcher interface {
	Search(ctx context.Context, query string) ([]youtube.Video, error)
}

var conf = config.Get()

var (
	identityResolver = identity.NewResolver(nil)
	lyricsResolver   = lyrics.NewResolver()
	recommender      *recommend.Generator
	videoSearch      videoSearcher
	searchBreaker    *circuitbreaker.CircuitBreaker
	searchCache      *cache.PersistentCache
	trendingStore    = trending.NewStore(conf.Trending.File)
	sourceMonitor    *notifier.SourceMonitor
	alertNotifiers   []notifier.Notifier
	inFlightSearches sync.Map
)

func init() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(conf.Server.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentryEnabled := setupSentry()
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	alertNotifiers = setupNotifiers()

	setupIdentity(ctx)
	lrclibClient := setupLyrics()
	setupSearch(ctx)
	setupTrending()
	setupMonitor(ctx, lrclibClient)

	statsStore, err := stats.NewStore(conf.Stats.DBPath, nil)
	if err != nil {
		log.Errorf("%s Stats persistence disabled: %v", logcolors.LogStats, err)
	} else {
		if err := statsStore.Load(); err != nil {
			log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
		}
		statsStore.StartAutoSave(conf.Stats.AutoSaveInterval)
	}

	router := mux.NewRouter()
	setupRoutes(router)

	limiter := middleware.NewIPRateLimiter(
		rate.Limit(conf.Server.RateLimitPerSecond), conf.Server.RateLimitBurstLimit,
		rate.Limit(conf.Server.CachedRateLimitPerSecond), conf.Server.CachedRateLimitBurstLimit,
	)
	limiter.StartPruning(ctx, limiterPruneInterval, limiterIdleTimeout)
	if searchCache != nil {
		searchCache.StartPurging(ctx, cachePurgeInterval)
	}

	c := cors.New(cors.Options{
		AllowedOrigins: conf.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.WebhookSecretHeader},
		ExposedHeaders: []string{"X-Cache-Status", "X-RateLimit-Type", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
	})

	var handler http.Handler = router
	if sentryEnabled {
		handler = sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(handler)
	}
	handler = middleware.LoggingMiddlewareWithHook(handler, recordRequest)
	handler = c.Handler(handler)
	handler = middleware.RateLimit(limiter, stats.Get().RecordRateLimitExceeded)(handler)

	server := &http.Server{
		Addr:              ":" + conf.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("%s Listening on port %s", logcolors.LogServer, conf.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	notifier.PublishServerStarted(conf.Server.Port, capabilities())

	select {
	case err := <-serverErr:
		log.Errorf("%s Server failed: %v", logcolors.LogServer, err)
		notifier.PublishServerStartupFailed("http server", err)
		// give the alert handler a moment to deliver
		time.Sleep(2 * time.Second)
	case <-ctx.Done():
		log.Infof("%s Shutting down", logcolors.LogServer)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s Graceful shutdown failed: %v", logcolors.LogServer, err)
	}

	if statsStore != nil {
		if err := statsStore.Close(); err != nil {
			log.Errorf("%s Failed to save stats: %v", logcolors.LogStats, err)
		}
	}
	if searchCache != nil {
		if err := searchCache.Close(); err != nil {
			log.Errorf("%s Failed to close search cache: %v", logcolors.LogCache, err)
		}
	}
}
