package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/storegate/infra/config"
	"github.com/mstgnz/storegate/infra/response"
	"github.com/mstgnz/storegate/payment"
	"github.com/mstgnz/storegate/provider"
	"github.com/mstgnz/storegate/shipping"
)

// SettingsStore is the provider configuration store managed over HTTP
type SettingsStore interface {
	Get(kind, providerName string) (map[string]string, error)
	Set(kind, providerName string, settings map[string]string) error
	Delete(kind, providerName string) error
	GetStats() map[string]any
}

// ConfigHandler handles provider configuration requests
type ConfigHandler struct {
	settings SettingsStore
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(settings SettingsStore) *ConfigHandler {
	return &ConfigHandler{settings: settings}
}

// GetConfig returns the stored settings of a provider with secrets masked
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	kind, name, err := resolveProvider(r)
	if err != nil {
		writeProviderError(w, "", "Unknown provider", err)
		return
	}

	values, err := h.settings.Get(kind, name)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			response.Error(w, http.StatusNotFound, "Configuration not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to load configuration", err)
		return
	}

	response.Success(w, http.StatusOK, "Configuration retrieved", map[string]any{
		"kind":     kind,
		"provider": name,
		"config":   maskSettings(values),
	})
}

// SetConfig replaces the settings of a provider. The record must build a working
// provider before it is stored.
func (h *ConfigHandler) SetConfig(w http.ResponseWriter, r *http.Request) {
	kind, name, err := resolveProvider(r)
	if err != nil {
		writeProviderError(w, "", "Unknown provider", err)
		return
	}

	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if len(values) == 0 {
		response.Error(w, http.StatusBadRequest, "Configuration cannot be empty", nil)
		return
	}

	switch kind {
	case payment.Kind:
		_, err = payment.Create(name, payment.ConfigFromMap(name, values))
	case shipping.Kind:
		_, err = shipping.Create(name, shipping.ConfigFromMap(name, values))
	}
	if err != nil {
		writeProviderError(w, name, "Invalid configuration", err)
		return
	}

	if err := h.settings.Set(kind, name, values); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save configuration", err)
		return
	}

	response.Success(w, http.StatusOK, "Configuration updated", map[string]any{
		"kind":     kind,
		"provider": name,
		"config":   maskSettings(values),
	})
}

// DeleteConfig removes the settings of a provider
func (h *ConfigHandler) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	kind, name, err := resolveProvider(r)
	if err != nil {
		writeProviderError(w, "", "Unknown provider", err)
		return
	}

	if err := h.settings.Delete(kind, name); err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			response.Error(w, http.StatusNotFound, "Configuration not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to delete configuration", err)
		return
	}

	response.Success(w, http.StatusOK, "Configuration deleted", map[string]any{
		"kind":     kind,
		"provider": name,
	})
}

// GetStats returns settings store statistics
func (h *ConfigHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	response.Success(w, http.StatusOK, "Statistics retrieved", h.settings.GetStats())
}

// resolveProvider returns the kind and canonical provider name of the URL
func resolveProvider(r *http.Request) (string, string, error) {
	kind := strings.ToLower(chi.URLParam(r, "kind"))
	providerName := chi.URLParam(r, "provider")

	var (
		canonical string
		err       error
	)
	switch kind {
	case payment.Kind:
		canonical, err = payment.CanonicalName(providerName)
	case shipping.Kind:
		canonical, err = shipping.CanonicalName(providerName)
	default:
		return "", "", provider.InvalidRequestf("kind must be payment or shipping, got %q", kind)
	}
	return kind, canonical, err
}

func maskSettings(values map[string]string) map[string]string {
	masked := make(map[string]string, len(values))
	for key, value := range values {
		if isSecretKey(key) {
			if len(value) > 8 {
				masked[key] = value[:4] + "****" + value[len(value)-4:]
			} else {
				masked[key] = "****"
			}
			continue
		}
		masked[key] = value
	}
	return masked
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, marker := range []string{"key", "password", "secret", "salt", "token"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
