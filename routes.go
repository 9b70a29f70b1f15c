package main

import (
	"karaokelover/middleware"
	"net/http"

	"github.com/gorilla/mux"
)

// setupRoutes configures all HTTP routes for the API
func setupRoutes(router *mux.Router) {
	// Search can be answered from cache, so it runs on both rate limit tiers
	router.HandleFunc("/api/search", searchHandler).Methods(http.MethodGet)

	// Lyrics, identification and recommendations always hit upstreams
	router.HandleFunc("/api/lyrics", middleware.RequireFreshTier(lyricsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/identify", middleware.RequireFreshTier(identifyHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/recommendations", middleware.RequireFreshTier(recommendationsHandler)).Methods(http.MethodGet)

	// Trending list, replaced by an authenticated webhook
	router.HandleFunc("/api/trending", getTrending).Methods(http.MethodGet)
	router.HandleFunc("/api/trending",
		middleware.RequireFreshTier(middleware.WebhookAuth(conf.Trending.WebhookSecret)(updateTrending)),
	).Methods(http.MethodPost)

	// Health is public, everything else operational needs the access token
	router.HandleFunc("/health", getHealthStatus)

	protected := middleware.AccessToken(conf.Server.AccessToken)
	router.HandleFunc("/stats", protected(getStats))
	router.HandleFunc("/cache", protected(getCacheStatus))
	router.HandleFunc("/cache/clear", protected(clearCache))
	router.HandleFunc("/circuit-breaker", protected(getCircuitBreakerStatus))
	router.HandleFunc("/circuit-breaker/reset", protected(resetCircuitBreaker))
	router.HandleFunc("/test-notifications", protected(testNotifications))

	// Frontend
	router.HandleFunc("/sitemap.xml", sitemapHandler)
	router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(conf.Server.StaticDir))),
	)
	router.HandleFunc("/", indexHandler)

	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).ErrorMessage(http.StatusNotFound, "Not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).ErrorMessage(http.StatusMethodNotAllowed, "Method not allowed")
}
