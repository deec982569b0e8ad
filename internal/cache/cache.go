package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const defaultCleanupInterval = time.Minute

// Cache is a typed in-process key/value store with per-entry expiry.
type Cache[K ~string, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
	Flush()
	Stats() Stats
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

type ttlCache[K ~string, V any] struct {
	store  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewTTLCache returns a Cache whose entries expire after defaultTTL unless
// Set is called with an explicit ttl.
func NewTTLCache[K ~string, V any](defaultTTL time.Duration) Cache[K, V] {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &ttlCache[K, V]{store: gocache.New(defaultTTL, defaultCleanupInterval)}
}

func (c *ttlCache[K, V]) Get(key K) (V, bool) {
	raw, ok := c.store.Get(string(key))
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return value, true
}

func (c *ttlCache[K, V]) Set(key K, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.store.Set(string(key), value, ttl)
}

func (c *ttlCache[K, V]) Delete(key K) {
	c.store.Delete(string(key))
}

func (c *ttlCache[K, V]) Flush() {
	c.store.Flush()
}

func (c *ttlCache[K, V]) Stats() Stats {
	return Stats{
		Size:   c.store.ItemCount(),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}
