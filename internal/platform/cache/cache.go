// Package cache provides the LRU-by-size edge cache described in spec §5
// ("The cache ... is LRU by size with a configurable max; eviction may
// happen on any write"). It is grounded on the teacher's CacheConfig shape
// (infrastructure/cache/cache.go) but backed by golang-lru/v2 so that
// eviction is driven by byte size rather than just entry count.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config configures a size-bounded, TTL-aware cache.
type Config struct {
	// MaxBytes bounds the sum of entry sizes; the oldest-used entry is
	// evicted first once the bound is exceeded.
	MaxBytes int64
	// DefaultTTL is applied to entries that don't specify their own.
	DefaultTTL time.Duration
}

// DefaultConfig returns the edge cache defaults.
func DefaultConfig() Config {
	return Config{
		MaxBytes:   64 << 20, // 64MiB
		DefaultTTL: 5 * time.Minute,
	}
}

type entry struct {
	value     []byte
	size      int64
	expiresAt time.Time
}

// Cache is a thread-safe, size-bounded, TTL-aware LRU cache of byte blobs.
// It is used as the read-through wrapper in front of storage backends (C6).
type Cache struct {
	mu        sync.Mutex
	cfg       Config
	lru       *lru.Cache[string, *entry]
	usedBytes int64
}

// New creates a Cache. An lru.Cache with a 1<<20-entry capacity is used
// internally and size eviction is enforced manually against cfg.MaxBytes,
// since golang-lru/v2's Cache is bounded by entry count, not bytes.
func New(cfg Config) *Cache {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultConfig().DefaultTTL
	}
	inner, _ := lru.New[string, *entry](1 << 20)
	return &Cache{cfg: cfg, lru: inner}
}

// Get returns the cached bytes for key, if present and unexpired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.usedBytes -= e.size
		return nil, false
	}
	return e.value, true
}

// Put inserts value under key, evicting least-recently-used entries until
// the cache fits within MaxBytes.
func (c *Cache) Put(key string, value []byte) {
	c.PutTTL(key, value, c.cfg.DefaultTTL)
}

// PutTTL inserts value under key with an explicit TTL.
func (c *Cache) PutTTL(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.usedBytes -= old.size
		c.lru.Remove(key)
	}

	size := int64(len(value))
	for c.usedBytes+size > c.cfg.MaxBytes {
		_, oldest, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		c.usedBytes -= oldest.size
	}

	c.lru.Add(key, &entry{value: value, size: size, expiresAt: time.Now().Add(ttl)})
	c.usedBytes += size
}

// Remove evicts key unconditionally.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lru.Peek(key); ok {
		c.usedBytes -= e.size
		c.lru.Remove(key)
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// UsedBytes returns the current tracked byte usage.
func (c *Cache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}
