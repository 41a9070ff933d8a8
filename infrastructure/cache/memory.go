package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/Webtech-MQP/webjam-sub000/internal/ports"
)

var _ ports.CacheStore = (*MemoryCache)(nil)

// defaultCleanupInterval is how often expired entries are purged.
const defaultCleanupInterval = time.Minute

// MemoryCache is a process-local CacheStore. Values round-trip through JSON
// so callers observe the same copy semantics as with Redis.
type MemoryCache struct {
	items *gocache.Cache
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: gocache.New(gocache.NoExpiration, defaultCleanupInterval)}
}

// Get implements ports.CacheStore.
func (c *MemoryCache) Get(_ context.Context, key string, dst any) (bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return false, nil
	}
	raw, ok := v.([]byte)
	if !ok {
		return false, ports.NewCacheError(key, "get", fmt.Errorf("%w: unexpected %T", ports.ErrCacheCorrupted, v))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, ports.NewCacheError(key, "get", fmt.Errorf("%w: %w", ports.ErrCacheCorrupted, err))
	}
	return true, nil
}

// Set implements ports.CacheStore. A non-positive expiration keeps the entry
// until it is deleted.
func (c *MemoryCache) Set(_ context.Context, key string, value any, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return ports.NewCacheError(key, "set", err)
	}
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	c.items.Set(key, raw, expiration)
	return nil
}

// Delete implements ports.CacheStore.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// purged.
func (c *MemoryCache) Len() int { return c.items.ItemCount() }
