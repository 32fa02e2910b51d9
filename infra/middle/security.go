package middle

import (
	"net/http"
	"strings"

	"github.com/mstgnz/storegate/infra/response"
)

// SecurityHeadersMiddleware adds security headers to responses
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// IPWhitelistMiddleware restricts access to the given IPs. An empty list allows everyone.
func IPWhitelistMiddleware(allowedIPs []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedIPs))
	for _, ip := range allowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			allowed[ip] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := allowed[GetClientIP(r)]; !ok {
				response.Error(w, http.StatusForbidden, "IP not whitelisted", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestValidationMiddleware validates common request properties
func RequestValidationMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				contentType := r.Header.Get("Content-Type")

				// banks post callbacks form-urlencoded
				isCallbackEndpoint := strings.Contains(r.URL.Path, "/callback")

				if contentType != "" {
					if isCallbackEndpoint {
						if !strings.Contains(contentType, "application/json") &&
							!strings.Contains(contentType, "application/x-www-form-urlencoded") {
							response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json or application/x-www-form-urlencoded", nil)
							return
						}
					} else if !strings.Contains(contentType, "application/json") {
						response.Error(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
						return
					}
				} else if !isCallbackEndpoint && r.ContentLength != 0 {
					response.Error(w, http.StatusBadRequest, "Content-Type header is required", nil)
					return
				}
			}

			// Check request size (max 10MB)
			if r.ContentLength > 10*1024*1024 {
				response.Error(w, http.StatusRequestEntityTooLarge, "Request body too large", nil)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
