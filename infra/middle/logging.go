package middle

import (
	"net/http"
	"strings"
	"time"

	"github.com/mstgnz/storegate/infra/logger"
)

// responseWriter captures the status code of a response
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// RequestLoggingMiddleware logs one structured line per API request
func RequestLoggingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			id := requestID(r)
			w.Header().Set("X-Request-ID", id)

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			kind, providerName := extractProviderFromURL(r.URL.Path)
			ctx := logger.LogContext{
				Provider:  providerName,
				RequestID: id,
				Fields: map[string]any{
					"kind":        kind,
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      rw.statusCode,
					"bytes":       rw.written,
					"duration_ms": time.Since(start).Milliseconds(),
					"client_ip":   GetClientIP(r),
					"user_agent":  r.UserAgent(),
				},
			}

			switch {
			case rw.statusCode >= 500:
				logger.Warn("HTTP request failed", ctx)
			case r.URL.Path == "/health":
				logger.Debug("HTTP request", ctx)
			default:
				logger.Info("HTTP request", ctx)
			}
		})
	}
}

// extractProviderFromURL extracts kind and provider from
// /v1/payments/{provider}, /v1/shipping/{provider} and /v1/callback/{provider}
func extractProviderFromURL(path string) (kind, providerName string) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 {
		return "", ""
	}

	switch segments[1] {
	case "payments", "callback":
		kind = "payment"
	case "shipping":
		kind = "shipping"
	default:
		return "", ""
	}

	if segments[2] == "providers" {
		return kind, ""
	}
	return kind, segments[2]
}
