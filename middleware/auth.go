package middleware

import (
	"crypto/subtle"
	"karaokelover/logcolors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// WebhookSecretHeader carries the shared secret on webhook calls
const WebhookSecretHeader = "X-Webhook-Secret"

func secretsEqual(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}

// WebhookAuth requires X-Webhook-Secret to match secret.
// An empty secret rejects every request so an unconfigured webhook stays closed.
func WebhookAuth(secret string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				log.Warnf("%s Webhook secret not configured, rejecting %s %s", logcolors.LogWebhook, r.Method, r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if !secretsEqual(r.Header.Get(WebhookSecretHeader), secret) {
				log.Warnf("%s Invalid webhook secret from %s for %s", logcolors.LogWebhook, ClientIP(r), r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next(w, r)
		}
	}
}

// AccessToken requires the Authorization header to carry token, either bare
// or as "Bearer <token>". An empty token leaves the endpoint open.
func AccessToken(token string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next(w, r)
				return
			}

			provided := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if !secretsEqual(provided, token) {
				log.Warnf("%s Unauthorized access from %s for %s", logcolors.LogAuth, ClientIP(r), r.URL.Path)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next(w, r)
		}
	}
}
