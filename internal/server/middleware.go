package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// maxQueryLogLen is the maximum length for logged query strings before truncation.
const maxQueryLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
// Webhook calls wait on the pipeline, so this sits above the usual model latency.
const slowRequestThreshold = 45 * time.Second

// LoggingMiddleware returns middleware that logs all requests with timing.
// Server errors are logged at ERROR, client errors and slow requests at WARN.
// Query strings are truncated to 200 characters.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"http_request_id", middleware.GetReqID(r.Context()),
			}
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, "query", truncate(q, maxQueryLogLen))
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			case status >= http.StatusBadRequest:
				logger.Warn("request rejected", attrs...)
			case duration > slowRequestThreshold:
				logger.Warn("slow request", attrs...)
			default:
				logger.Debug("request completed", attrs...)
			}
		})
	}
}

// RequireAPIKey rejects requests whose header does not carry expected.
// An empty expected key fails closed with 500. scope prefixes the log event
// names (webhook, admin).
func RequireAPIKey(logger *slog.Logger, header, expected, scope string) func(http.Handler) http.Handler {
	expected = strings.TrimSpace(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				logger.Error("api key missing in environment", "event", scope+"_secret_missing")
				writeError(w, http.StatusInternalServerError, "Server authentication is not configured")
				return
			}

			got := r.Header.Get(header)
			if got == "" {
				logger.Warn("unauthorized request: missing API key",
					"event", scope+"_unauthorized_missing_key",
					"client_host", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, "Missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				logger.Warn("unauthorized request: invalid API key",
					"event", scope+"_unauthorized_invalid_key",
					"client_host", r.RemoteAddr,
					"path", r.URL.Path,
				)
				writeError(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// sanitizeLogValue folds a header-like value onto one line.
func sanitizeLogValue(v string) string {
	lines := strings.FieldsFunc(v, func(r rune) bool { return r == '\n' || r == '\r' })
	return strings.TrimSpace(strings.Join(lines, " "))
}
