package payment

import (
	"github.com/mstgnz/storegate/provider"
)

var registry = provider.NewRegistry[Constructor]("payment")

// Register adds a gateway constructor under a canonical name and optional aliases.
// Gateway packages call it from init.
func Register(name string, ctor Constructor, aliases ...string) {
	registry.Register(name, ctor, aliases...)
}

// Create builds the named gateway. Unknown names fail with provider.ErrUnsupportedProvider.
func Create(name string, cfg Config) (Provider, error) {
	ctor, canonical, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = canonical
	}
	return ctor(cfg)
}

// CanonicalName resolves a name or alias to its registered key
func CanonicalName(name string) (string, error) {
	_, canonical, err := registry.Lookup(name)
	return canonical, err
}

// SupportedProviders returns the canonical gateway names
func SupportedProviders() []string {
	return registry.Names()
}

// IsProviderSupported is a case-insensitive check over names and aliases
func IsProviderSupported(name string) bool {
	return registry.Supports(name)
}
