package middle

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/storegate/infra/logger"
	"github.com/mstgnz/storegate/infra/response"
)

// PanicRecoveryMiddleware handles panics and converts them to HTTP 500 errors
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}

					logger.Error("Panic recovered", fmt.Errorf("%v", err), logger.LogContext{
						Provider:  "storegate",
						RequestID: requestID(r),
						Fields: map[string]any{
							"method": r.Method,
							"url":    r.URL.String(),
							"stack":  string(debug.Stack()),
						},
					})

					// Set headers to prevent caching of error response
					w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
					w.Header().Set("Pragma", "no-cache")
					w.Header().Set("Expires", "0")

					response.Error(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("an unexpected error occurred"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// requestID prefers the id assigned by chi's RequestID middleware
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return "unknown"
}
