package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// ErrConfigNotFound is returned when no settings exist for a provider
var ErrConfigNotFound = errors.New("provider configuration not found")

// Provider kinds
const (
	KindPayment  = "payment"
	KindShipping = "shipping"
)

// envPrefixes maps environment prefixes to the settings records they seed
var envPrefixes = map[string]struct{ kind, name string }{
	"PAYTR_":      {KindPayment, "paytr"},
	"VAKIFBANK_":  {KindPayment, "vakifbank"},
	"KUVEYTTURK_": {KindPayment, "kuveytturk"},
	"DHL_":        {KindShipping, "dhl"},
	"YURTICI_":    {KindShipping, "yurtici"},
	"PTT_":        {KindShipping, "ptt"},
}

// ProviderSettings manages provider configuration records addressed by kind and name
type ProviderSettings struct {
	configs map[string]map[string]string
	storage *SQLiteStorage
	mu      sync.RWMutex
}

// NewProviderSettings creates a settings store; storage may be nil for memory-only mode
func NewProviderSettings(storage *SQLiteStorage) *ProviderSettings {
	settings := &ProviderSettings{
		configs: make(map[string]map[string]string),
		storage: storage,
	}

	if storage != nil {
		if err := settings.loadFromSQLite(); err != nil {
			log.Printf("Warning: Failed to load provider settings from SQLite: %v", err)
		}
	}

	return settings
}

func settingsKey(kind, providerName string) string {
	return strings.ToLower(kind) + ":" + strings.ToLower(strings.TrimSpace(providerName))
}

func (c *ProviderSettings) loadFromSQLite() error {
	all, err := c.storage.LoadAllProviderSettings()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range all {
		c.configs[k] = v
	}
	return nil
}

// Set stores settings for a provider, persisting them when storage is available
func (c *ProviderSettings) Set(kind, providerName string, settings map[string]string) error {
	if kind == "" {
		return fmt.Errorf("kind cannot be empty")
	}
	if strings.TrimSpace(providerName) == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if len(settings) == 0 {
		return fmt.Errorf("config cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := settingsKey(kind, providerName)
	if c.storage != nil {
		if err := c.storage.SaveProviderSettings(strings.ToLower(kind), strings.ToLower(strings.TrimSpace(providerName)), settings); err != nil {
			return fmt.Errorf("failed to save config to SQLite: %w", err)
		}
	}

	c.configs[key] = copySettings(settings)
	return nil
}

// Get returns a copy of the settings for a provider or ErrConfigNotFound
func (c *ProviderSettings) Get(kind, providerName string) (map[string]string, error) {
	key := settingsKey(kind, providerName)

	c.mu.RLock()
	settings, exists := c.configs[key]
	c.mu.RUnlock()

	if !exists && c.storage != nil {
		stored, err := c.storage.LoadProviderSettings(strings.ToLower(kind), strings.ToLower(strings.TrimSpace(providerName)))
		if err == nil {
			c.mu.Lock()
			c.configs[key] = stored
			c.mu.Unlock()
			settings, exists = stored, true
		} else if !errors.Is(err, ErrConfigNotFound) {
			return nil, err
		}
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s provider %s", ErrConfigNotFound, kind, providerName)
	}

	return copySettings(settings), nil
}

// Delete removes the settings for a provider
func (c *ProviderSettings) Delete(kind, providerName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := settingsKey(kind, providerName)
	if c.storage != nil {
		err := c.storage.DeleteProviderSettings(strings.ToLower(kind), strings.ToLower(strings.TrimSpace(providerName)))
		if err != nil && !errors.Is(err, ErrConfigNotFound) {
			return fmt.Errorf("failed to delete config from SQLite: %w", err)
		}
	}

	if _, ok := c.configs[key]; !ok {
		return fmt.Errorf("%w: %s provider %s", ErrConfigNotFound, kind, providerName)
	}
	delete(c.configs, key)
	return nil
}

// Providers returns the configured provider names of one kind, sorted
func (c *ProviderSettings) Providers(kind string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	prefix := strings.ToLower(kind) + ":"
	var names []string
	for key := range c.configs {
		if name, ok := strings.CutPrefix(key, prefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// LoadFromEnv seeds settings from PAYTR_*, VAKIFBANK_*, KUVEYTTURK_*, DHL_*, YURTICI_* and PTT_*
// variables. PAYTR_MERCHANT_ID becomes key "merchantId" of payment provider "paytr".
// Env values override stored values key by key. It returns the number of providers seeded.
func (c *ProviderSettings) LoadFromEnv() (int, error) {
	return c.loadFromEnviron(os.Environ())
}

func (c *ProviderSettings) loadFromEnviron(environ []string) (int, error) {
	collected := make(map[string]map[string]string)
	targets := make(map[string]struct{ kind, name string })

	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || value == "" {
			continue
		}
		for prefix, target := range envPrefixes {
			field, found := strings.CutPrefix(name, prefix)
			if !found || field == "" {
				continue
			}
			key := settingsKey(target.kind, target.name)
			if collected[key] == nil {
				collected[key] = make(map[string]string)
				targets[key] = target
			}
			collected[key][snakeToCamel(field)] = value
		}
	}

	keys := make([]string, 0, len(collected))
	for key := range collected {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		target := targets[key]
		merged, err := c.Get(target.kind, target.name)
		if err != nil {
			merged = make(map[string]string)
		}
		for k, v := range collected[key] {
			merged[k] = v
		}
		if err := c.Set(target.kind, target.name, merged); err != nil {
			return 0, err
		}
	}

	return len(keys), nil
}

// GetStats returns configuration and storage statistics
func (c *ProviderSettings) GetStats() map[string]any {
	c.mu.RLock()
	stats := map[string]any{"memory_configs": len(c.configs)}
	c.mu.RUnlock()

	if c.storage == nil {
		stats["sqlite"] = "not_available"
		return stats
	}
	if storageStats, err := c.storage.GetStats(); err != nil {
		stats["sqlite_error"] = err.Error()
	} else {
		stats["sqlite"] = storageStats
	}
	return stats
}

func snakeToCamel(s string) string {
	parts := strings.Split(strings.ToLower(s), "_")
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(part)
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

func copySettings(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
