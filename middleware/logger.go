package middleware

import (
	"karaokelover/logcolors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// ResponseRecorder wraps http.ResponseWriter to capture status and size
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

// NewResponseRecorder creates a recorder with a default 200 status
func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rec *ResponseRecorder) WriteHeader(statusCode int) {
	rec.StatusCode = statusCode
	rec.ResponseWriter.WriteHeader(statusCode)
}

func (rec *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.BodySize += n
	return n, err
}

// Flush forwards to the underlying writer when it supports flushing
func (rec *ResponseRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func getStatusColor(statusCode int) string {
	switch {
	case statusCode >= 500:
		return logcolors.Red
	case statusCode >= 400:
		return logcolors.Yellow
	case statusCode >= 300:
		return logcolors.Cyan
	case statusCode >= 200:
		return logcolors.Green
	default:
		return logcolors.Reset
	}
}

// LoggingMiddleware logs method, path, status, size and duration of every request
func LoggingMiddleware(next http.Handler) http.Handler {
	return LoggingMiddlewareWithHook(next, nil)
}

// LoggingMiddlewareWithHook is LoggingMiddleware plus a callback that receives
// the path, final status and duration of each request
func LoggingMiddlewareWithHook(next http.Handler, hook func(path string, status int, d time.Duration)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		if hook != nil {
			hook(r.URL.Path, rec.StatusCode, duration)
		}

		log.Infof("%s %s %s %s%d%s %dB %v",
			logcolors.LogRequest,
			r.Method,
			r.URL.RequestURI(),
			getStatusColor(rec.StatusCode), rec.StatusCode, logcolors.Reset,
			rec.BodySize,
			duration.Round(time.Microsecond))
	})
}
