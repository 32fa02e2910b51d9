package handler

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storegate/infra/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configRouter(settings *config.ProviderSettings) http.Handler {
	h := NewConfigHandler(settings)
	r := chi.NewRouter()
	r.Get("/v1/config/stats", h.GetStats)
	r.Get("/v1/config/{kind}/{provider}", h.GetConfig)
	r.Put("/v1/config/{kind}/{provider}", h.SetConfig)
	r.Delete("/v1/config/{kind}/{provider}", h.DeleteConfig)
	return r
}

func TestConfigHandler_Lifecycle(t *testing.T) {
	settings := config.NewProviderSettings(nil)
	router := configRouter(settings)

	w := doRequest(t, router, http.MethodPut, "/v1/config/shipping/handler%20fake",
		`{"username":"api","password":"supersecretvalue","mode":"sandbox"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := settings.Get(config.KindShipping, fakeCarrierName)
	require.NoError(t, err)
	assert.Equal(t, "supersecretvalue", stored["password"])

	w = doRequest(t, router, http.MethodGet, "/v1/config/shipping/handlerfake", "")
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Kind     string            `json:"kind"`
		Provider string            `json:"provider"`
		Config   map[string]string `json:"config"`
	}
	decodeData(t, decodeResponse(t, w), &data)
	assert.Equal(t, "shipping", data.Kind)
	assert.Equal(t, fakeCarrierName, data.Provider)
	assert.Equal(t, "supe****alue", data.Config["password"])
	assert.Equal(t, "api", data.Config["username"])

	w = doRequest(t, router, http.MethodDelete, "/v1/config/shipping/handlerfake", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodDelete, "/v1/config/shipping/handlerfake", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, http.MethodGet, "/v1/config/shipping/handlerfake", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfigHandler_RejectsUnusableSettings(t *testing.T) {
	settings := config.NewProviderSettings(nil)
	router := configRouter(settings)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"missing credential", "/v1/config/shipping/handlerfake", `{"mode":"sandbox"}`, http.StatusUnprocessableEntity},
		{"empty body", "/v1/config/shipping/handlerfake", `{}`, http.StatusBadRequest},
		{"malformed", "/v1/config/shipping/handlerfake", `{"username":`, http.StatusBadRequest},
		{"unknown kind", "/v1/config/billing/handlerfake", `{"username":"api"}`, http.StatusBadRequest},
		{"unknown provider", "/v1/config/shipping/aras", `{"username":"api"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPut, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}

	assert.Empty(t, settings.Providers(config.KindShipping))
}

func TestConfigHandler_GetStats(t *testing.T) {
	settings := config.NewProviderSettings(nil)
	require.NoError(t, settings.Set(config.KindShipping, fakeCarrierName, map[string]string{"username": "api"}))

	w := doRequest(t, configRouter(settings), http.MethodGet, "/v1/config/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeResponse(t, w).Success)
}

func TestMaskSettings(t *testing.T) {
	masked := maskSettings(map[string]string{
		"merchantKey":  "abcdefghijkl",
		"merchantSalt": "short",
		"storeKey":     "123",
		"username":     "api",
		"mode":         "live",
	})

	assert.Equal(t, "abcd****ijkl", masked["merchantKey"])
	assert.Equal(t, "****", masked["merchantSalt"])
	assert.Equal(t, "****", masked["storeKey"])
	assert.Equal(t, "api", masked["username"])
	assert.Equal(t, "live", masked["mode"])
}
