package shipping

import (
	"fmt"

	"github.com/mstgnz/storegate/provider"
)

// SettingsSource returns the configuration record of a carrier or an error when absent
type SettingsSource interface {
	Get(kind, providerName string) (map[string]string, error)
}

// ProviderInfo describes a registered carrier and its configuration state
type ProviderInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Configured  bool   `json:"configured"`
	Default     bool   `json:"default"`
	Mode        string `json:"mode,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Dispatcher builds a Service per carrier from stored settings, reusing it while
// the settings are unchanged
type Dispatcher struct {
	settings SettingsSource
	notifier Notifier
	opts     []ServiceOption
	cache    *provider.ProviderCache[*Service]
}

// NewDispatcher creates a dispatcher; opts are applied to every Service it builds
func NewDispatcher(settings SettingsSource, notifier Notifier, opts ...ServiceOption) *Dispatcher {
	return &Dispatcher{
		settings: settings,
		notifier: notifier,
		opts:     opts,
		cache:    provider.NewProviderCache[*Service](16, 0),
	}
}

// For returns the service of the named carrier. The carrier must be known,
// configured, enabled and pass ValidateConfig.
func (d *Dispatcher) For(name string) (*Service, error) {
	canonical, err := CanonicalName(name)
	if err != nil {
		return nil, err
	}

	values, err := d.settings.Get(Kind, canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not configured: %w", provider.ErrInvalidConfig, canonical, err)
	}

	cfg := ConfigFromMap(canonical, values)
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: %s is disabled", provider.ErrInvalidConfig, canonical)
	}

	cacheKey := Kind + ":" + canonical
	fingerprint := provider.Fingerprint(values)
	if svc, ok := d.cache.Get(cacheKey, fingerprint); ok {
		return svc, nil
	}

	svc, err := NewServiceFor(canonical, cfg, d.notifier, d.opts...)
	if err != nil {
		return nil, err
	}
	if !svc.ValidateProvider() {
		return nil, fmt.Errorf("%w: %s configuration is incomplete", provider.ErrInvalidConfig, canonical)
	}
	d.cache.Set(cacheKey, fingerprint, svc)
	return svc, nil
}

// Providers lists every registered carrier
func (d *Dispatcher) Providers() []ProviderInfo {
	names := SupportedProviders()
	infos := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		info := ProviderInfo{Name: name}
		svc, err := d.For(name)
		if err != nil {
			info.Error = err.Error()
		} else {
			values, _ := d.settings.Get(Kind, name)
			cfg := ConfigFromMap(name, values)
			info.Configured = true
			info.DisplayName = svc.ProviderName()
			info.Default = cfg.Default
			info.Mode = cfg.Mode
		}
		infos = append(infos, info)
	}
	return infos
}
