package middle

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("success"))
	})
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := SecurityHeadersMiddleware()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Contains(t, w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestRequestValidationMiddleware(t *testing.T) {
	handler := RequestValidationMiddleware()(okHandler())

	tests := []struct {
		name           string
		method         string
		path           string
		contentType    string
		body           string
		expectedStatus int
	}{
		{"GET without content type", http.MethodGet, "/v1/payments/providers", "", "", http.StatusOK},
		{"POST json", http.MethodPost, "/v1/payments/paytr", "application/json", `{}`, http.StatusOK},
		{"POST json with charset", http.MethodPost, "/v1/shipping/dhl/rates", "application/json; charset=utf-8", `{}`, http.StatusOK},
		{"POST xml rejected", http.MethodPost, "/v1/payments/paytr", "application/xml", `<a/>`, http.StatusUnsupportedMediaType},
		{"POST form to api rejected", http.MethodPost, "/v1/payments/paytr", "application/x-www-form-urlencoded", "a=b", http.StatusUnsupportedMediaType},
		{"POST body without content type", http.MethodPost, "/v1/payments/paytr", "", `{}`, http.StatusBadRequest},
		{"callback form accepted", http.MethodPost, "/v1/callback/paytr", "application/x-www-form-urlencoded", "status=success", http.StatusOK},
		{"callback json accepted", http.MethodPost, "/v1/callback/vakifbank", "application/json", `{}`, http.StatusOK},
		{"callback text rejected", http.MethodPost, "/v1/callback/paytr", "text/plain", "x", http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequestValidationMiddleware_BodyTooLarge(t *testing.T) {
	handler := RequestValidationMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/payments/paytr", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = 11 * 1024 * 1024

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestIPWhitelistMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		allowed        []string
		remoteAddr     string
		expectedStatus int
	}{
		{"empty list allows all", nil, "10.0.0.5:1234", http.StatusOK},
		{"listed ip", []string{"10.0.0.5", " 10.0.0.6 "}, "10.0.0.6:1234", http.StatusOK},
		{"unlisted ip", []string{"10.0.0.5"}, "10.0.0.7:1234", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := IPWhitelistMiddleware(tt.allowed)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
			req.RemoteAddr = tt.remoteAddr

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	assert.True(t, rl.Allow("192.168.1.1"))
	assert.True(t, rl.Allow("192.168.1.1"))
	assert.False(t, rl.Allow("192.168.1.1"))

	// other clients have their own budget
	assert.True(t, rl.Allow("192.168.1.2"))
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	defer rl.Stop()

	require.True(t, rl.Allow("192.168.1.1"))
	require.False(t, rl.Allow("192.168.1.1"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, rl.Allow("192.168.1.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()
	handler := RateLimitMiddleware(rl)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.RemoteAddr = "192.168.1.1:12345"

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	assert.Equal(t, 100, rl.rate)
	assert.Equal(t, time.Minute, rl.window)

	rl.Stop()
	rl.Stop()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"X-Forwarded-For single", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "10.0.0.1:1", "203.0.113.1"},
		{"X-Forwarded-For chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.2"}, "10.0.0.1:1", "203.0.113.1"},
		{"X-Real-IP", map[string]string{"X-Real-IP": " 203.0.113.9 "}, "10.0.0.1:1", "203.0.113.9"},
		{"RemoteAddr", nil, "192.168.1.100:8080", "192.168.1.100"},
		{"IPv6 loopback", nil, "[::1]:8080", "127.0.0.1"},
		{"no port", nil, "192.168.1.100", "192.168.1.100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, GetClientIP(req))
		})
	}
}

func TestExtractProviderFromURL(t *testing.T) {
	tests := []struct {
		path         string
		wantKind     string
		wantProvider string
	}{
		{"/v1/payments/paytr", "payment", "paytr"},
		{"/v1/payments/vakifbank/PAY-1/refund", "payment", "vakifbank"},
		{"/v1/payments/providers", "payment", ""},
		{"/v1/callback/kuveytturk", "payment", "kuveytturk"},
		{"/v1/shipping/dhl/rates", "shipping", "dhl"},
		{"/v1/shipping/providers", "shipping", ""},
		{"/v1/health", "", ""},
		{"/health", "", ""},
		{"/v1/config/payment/paytr", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, name := extractProviderFromURL(tt.path)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantProvider, name)
		})
	}
}

func TestRequestLoggingMiddleware(t *testing.T) {
	handler := RequestLoggingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/shipping/dhl/shipments", strings.NewReader("{}"))
	req.Header.Set("X-Request-ID", "req-42")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "created", w.Body.String())
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestResponseWriter_DefaultsToOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	n, err := rw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, http.StatusOK, rw.statusCode)
	assert.Equal(t, 3, rw.written)
}
