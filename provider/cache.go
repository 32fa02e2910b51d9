package provider

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheEntry represents a cached provider instance
type CacheEntry[T any] struct {
	Provider     T
	Key          string
	Fingerprint  string
	CreatedAt    time.Time
	LastAccessed time.Time
	listElement  *list.Element // For LRU tracking
}

// CacheStats represents cache performance metrics
type CacheStats struct {
	Size        int           `json:"size"`
	MaxSize     int           `json:"max_size"`
	Hits        int64         `json:"hits"`
	Misses      int64         `json:"misses"`
	Evictions   int64         `json:"evictions"`
	TTLExpiries int64         `json:"ttl_expiries"`
	HitRatio    float64       `json:"hit_ratio"`
	TTL         time.Duration `json:"ttl"`
}

// ProviderCache keeps built provider instances keyed by "kind:name". An entry is
// only returned while the settings fingerprint it was built from is unchanged.
type ProviderCache[T any] struct {
	entries     map[string]*CacheEntry[T]
	accessOrder *list.List // most recent at front
	maxSize     int
	ttl         time.Duration
	now         func() time.Time
	mu          sync.Mutex

	hits        int64
	misses      int64
	evictions   int64
	ttlExpiries int64
}

// NewProviderCache creates an LRU cache; ttl <= 0 keeps entries until evicted
func NewProviderCache[T any](maxSize int, ttl time.Duration) *ProviderCache[T] {
	if maxSize <= 0 {
		maxSize = 64
	}
	return &ProviderCache[T]{
		entries:     make(map[string]*CacheEntry[T]),
		accessOrder: list.New(),
		maxSize:     maxSize,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Fingerprint hashes a settings record so that any change produces a new value
func Fingerprint(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, key := range keys {
		h.Write([]byte(key))
		h.Write([]byte{0})
		h.Write([]byte(values[key]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached provider for key when it was built from fingerprint
func (c *ProviderCache[T]) Get(key, fingerprint string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return zero, false
	}

	if c.ttl > 0 && c.now().Sub(entry.CreatedAt) > c.ttl {
		c.deleteEntryUnsafe(entry)
		c.ttlExpiries++
		c.misses++
		return zero, false
	}

	if entry.Fingerprint != fingerprint {
		c.deleteEntryUnsafe(entry)
		c.misses++
		return zero, false
	}

	entry.LastAccessed = c.now()
	c.accessOrder.MoveToFront(entry.listElement)

	c.hits++
	return entry.Provider, true
}

// Set stores a provider built from the settings identified by fingerprint
func (c *ProviderCache[T]) Set(key, fingerprint string, provider T) {
	if c == nil {
		return
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, exists := c.entries[key]; exists {
		existing.Provider = provider
		existing.Fingerprint = fingerprint
		existing.CreatedAt = now
		existing.LastAccessed = now
		c.accessOrder.MoveToFront(existing.listElement)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictLRUUnsafe()
	}

	entry := &CacheEntry[T]{
		Provider:     provider,
		Key:          key,
		Fingerprint:  fingerprint,
		CreatedAt:    now,
		LastAccessed: now,
	}
	entry.listElement = c.accessOrder.PushFront(entry)
	c.entries[key] = entry
}

// Delete removes a provider from cache
func (c *ProviderCache[T]) Delete(key string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists {
		c.deleteEntryUnsafe(entry)
	}
}

// DeletePrefix removes every entry whose key starts with prefix, e.g. "payment:"
func (c *ProviderCache[T]) DeletePrefix(prefix string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.deleteEntryUnsafe(entry)
		}
	}
}

// Clear removes all entries from cache
func (c *ProviderCache[T]) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry[T])
	c.accessOrder = list.New()
}

// Size returns the current number of cached entries
func (c *ProviderCache[T]) Size() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache statistics
func (c *ProviderCache[T]) Stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	totalRequests := c.hits + c.misses
	hitRatio := 0.0
	if totalRequests > 0 {
		hitRatio = float64(c.hits) / float64(totalRequests)
	}

	return CacheStats{
		Size:        len(c.entries),
		MaxSize:     c.maxSize,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
		TTLExpiries: c.ttlExpiries,
		HitRatio:    hitRatio,
		TTL:         c.ttl,
	}
}

// Cleanup removes expired entries
func (c *ProviderCache[T]) Cleanup() {
	if c == nil || c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for _, entry := range c.entries {
		if now.Sub(entry.CreatedAt) > c.ttl {
			c.deleteEntryUnsafe(entry)
			c.ttlExpiries++
		}
	}
}

// evictLRUUnsafe removes the least recently used entry (must be called with lock held)
func (c *ProviderCache[T]) evictLRUUnsafe() {
	lruElement := c.accessOrder.Back()
	if lruElement == nil {
		return
	}

	c.deleteEntryUnsafe(lruElement.Value.(*CacheEntry[T]))
	c.evictions++
}

// deleteEntryUnsafe removes an entry from both map and list (must be called with lock held)
func (c *ProviderCache[T]) deleteEntryUnsafe(entry *CacheEntry[T]) {
	delete(c.entries, entry.Key)
	if entry.listElement != nil {
		c.accessOrder.Remove(entry.listElement)
	}
}
