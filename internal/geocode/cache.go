package geocode

import (
	"context"
	"errors"
	"sync"
)

// ErrUncountable is returned by Count for caches that cannot report their size.
var ErrUncountable = errors.New("geocode cache cannot be counted")

// Entry is a cached lookup: coordinates, or a definitive "no result" marker.
type Entry struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
	NotFound    bool    `json:"not_found,omitempty"`
}

// Cache stores lookups keyed by CacheKey. Implementations never call the geocoding service.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, e Entry) error
}

// MemoryCache is a session-lifetime cache. Entries never expire.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = e
	return nil
}

// Len returns the number of cached lookups.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TieredCache answers from a fast cache and falls back to a slower persistent one,
// copying hits forward. Writes go to both.
type TieredCache struct {
	Fast *MemoryCache
	Slow Cache
}

func (c *TieredCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	if e, ok, _ := c.Fast.Get(ctx, key); ok {
		return e, true, nil
	}
	e, ok, err := c.Slow.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}
	_ = c.Fast.Set(ctx, key, e)
	return e, true, nil
}

func (c *TieredCache) Set(ctx context.Context, key string, e Entry) error {
	_ = c.Fast.Set(ctx, key, e)
	return c.Slow.Set(ctx, key, e)
}

// Len reports the size of the fast tier.
func (c *TieredCache) Len() int {
	return c.Fast.Len()
}

// Count reports how many lookups c holds. A tiered cache is counted by its
// persistent tier.
func Count(ctx context.Context, c Cache) (int, error) {
	switch c := c.(type) {
	case *TieredCache:
		return Count(ctx, c.Slow)
	case interface {
		Count(context.Context) (int, error)
	}:
		return c.Count(ctx)
	case interface{ Len() int }:
		return c.Len(), nil
	}
	return 0, ErrUncountable
}
