package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Registry maps canonical provider names and their aliases to constructors.
// Both the supported-name list and the membership check read the same map.
type Registry[F any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]F
	aliases map[string]string
}

// NewRegistry creates an empty registry; kind is used in error messages ("payment", "shipping").
func NewRegistry[F any](kind string) *Registry[F] {
	return &Registry[F]{
		kind:    kind,
		entries: make(map[string]F),
		aliases: make(map[string]string),
	}
}

// Register adds a constructor under a canonical name plus optional aliases.
func (r *Registry[F]) Register(name string, factory F, aliases ...string) {
	canonical := NormalizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[canonical] = factory
	r.aliases[canonical] = canonical
	for _, alias := range aliases {
		r.aliases[NormalizeName(alias)] = canonical
	}
}

// Lookup resolves a name or alias. Unknown names return an ErrUnsupportedProvider error.
func (r *Registry[F]) Lookup(name string) (F, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	canonical, ok := r.aliases[NormalizeName(name)]
	if !ok {
		var zero F
		return zero, "", fmt.Errorf("%w: %s provider '%s' is not supported (supported: %s)",
			ErrUnsupportedProvider, r.kind, name, strings.Join(r.namesLocked(), ", "))
	}
	return r.entries[canonical], canonical, nil
}

// Names returns the canonical provider names in sorted order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

// Supports is a case-insensitive membership check over names and aliases.
func (r *Registry[F]) Supports(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.aliases[NormalizeName(name)]
	return ok
}

func (r *Registry[F]) namesLocked() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeName folds case, Turkish letters and diacritics so that
// "VakıfBank", "VAKIFBANK" and "vakifbank" compare equal.
func NormalizeName(name string) string {
	name = strings.NewReplacer("ı", "i", "İ", "I").Replace(strings.TrimSpace(name))

	// transformers are stateful, so a fresh chain per call
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}

	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
