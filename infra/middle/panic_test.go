package middle

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		handler        http.HandlerFunc
		expectedStatus int
		shouldPanic    bool
	}{
		{
			name: "Normal request - no panic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Handler panics with string",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic("test panic")
			},
			expectedStatus: http.StatusInternalServerError,
			shouldPanic:    true,
		},
		{
			name: "Handler panics with error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				panic(errors.New("test error"))
			},
			expectedStatus: http.StatusInternalServerError,
			shouldPanic:    true,
		},
		{
			name: "Handler panics with nil map write",
			handler: func(w http.ResponseWriter, r *http.Request) {
				var m map[string]int
				m["x"] = 1
			},
			expectedStatus: http.StatusInternalServerError,
			shouldPanic:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := PanicRecoveryMiddleware()(tt.handler)

			req := httptest.NewRequest(http.MethodGet, "/v1/payments/paytr/PAY-1", nil)
			w := httptest.NewRecorder()

			assert.NotPanics(t, func() { handler.ServeHTTP(w, req) })
			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.shouldPanic {
				assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))

				var resp response.Response
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.Equal(t, "Internal server error", resp.Message)
				assert.Equal(t, "an unexpected error occurred", resp.Error)
			}
		})
	}
}

func TestPanicRecoveryMiddleware_AbortHandlerPropagates(t *testing.T) {
	handler := PanicRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestID(t *testing.T) {
	t.Run("chi request id wins", func(t *testing.T) {
		var got string
		handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = requestID(r)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, got)
		assert.NotEqual(t, "unknown", got)
	})

	t.Run("header fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc")
		assert.Equal(t, "abc", requestID(req))
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Equal(t, "unknown", requestID(httptest.NewRequest(http.MethodGet, "/", nil)))
	})
}
