package catalog

import (
	"sync"

	"github.com/iptvplus/iptv-plus/internal/metrics"
)

// cacheKey is the full credential identity plus class. Keying on the whole
// identity (not just the username) keeps two accounts that happen to share a
// username on different panels from colliding.
type cacheKey struct {
	origin   string
	username string
	class    Class
}

// Cache is the process-lifetime catalog store. No TTL and no partial
// eviction: Clear is the only removal, invoked on logout and before a
// refresh so stale and fresh results never appear merged.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey][]ContentItem
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey][]ContentItem)}
}

func key(cred Credential, class Class) cacheKey {
	return cacheKey{origin: cred.BaseURL(), username: cred.Username, class: class}
}

// Get returns a copy of the stored items for (cred, class), or ok=false.
func (c *Cache) Get(cred Credential, class Class) ([]ContentItem, bool) {
	c.mu.RLock()
	stored, ok := c.entries[key(cred, class)]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheMisses.WithLabelValues(string(class)).Inc()
		return nil, false
	}
	metrics.CacheHits.WithLabelValues(string(class)).Inc()
	out := make([]ContentItem, len(stored))
	copy(out, stored)
	return out, true
}

// Put stores a copy of items under (cred, class).
func (c *Cache) Put(cred Credential, class Class, items []ContentItem) {
	stored := make([]ContentItem, len(items))
	copy(stored, items)
	c.mu.Lock()
	c.entries[key(cred, class)] = stored
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[cacheKey][]ContentItem)
	c.mu.Unlock()
}

// ToggleFavorite flips IsFavorite on the cached item with the given id for
// any class under cred. Returns the new value and whether the item was found.
// The only cached field the UI layer is allowed to mutate.
func (c *Cache) ToggleFavorite(cred Credential, id string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, class := range Classes {
		items := c.entries[key(cred, class)]
		for i := range items {
			if items[i].ID == id {
				items[i].IsFavorite = !items[i].IsFavorite
				return items[i].IsFavorite, true
			}
		}
	}
	return false, false
}

// Items returns the merged catalog for cred in class order
// (live, movies, series). Missing classes contribute nothing.
func (c *Cache) Items(cred Credential) []ContentItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ContentItem
	for _, class := range Classes {
		out = append(out, c.entries[key(cred, class)]...)
	}
	return out
}
