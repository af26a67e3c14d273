// Package cache provides an in-memory cache with TTL for the hosted
// catalog endpoints: the public registry listing and generated manifest
// and source files, which are expensive to regenerate per request.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Entry is a cached response body with its content type.
type Entry struct {
	Body        []byte
	ContentType string
}

type slot struct {
	entry      Entry
	expiresAt  time.Time
	insertedAt time.Time
}

// LRUCache is a thread-safe in-memory cache with TTL and max-size
// eviction. When the cache reaches maxSize, the oldest entry (by insertion
// time) is evicted. Expired entries are lazily evicted on Get.
type LRUCache struct {
	mu      sync.RWMutex
	items   map[string]*slot
	maxSize int
	ttl     time.Duration
}

// NewLRUCache creates a cache with the given maximum size and TTL.
// maxSize must be >= 1; ttl must be > 0.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &LRUCache{
		items:   make(map[string]*slot, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached entry by key. Returns false if the key is missing
// or expired. Expired entries are lazily deleted.
func (c *LRUCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	if time.Now().After(s.expiresAt) {
		delete(c.items, key)
		return Entry{}, false
	}
	return s.entry, true
}

// Set stores an entry. If the cache is at capacity, the oldest entry is
// evicted first.
func (c *LRUCache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evictOldest()
	}
	c.items[key] = &slot{
		entry:      e,
		expiresAt:  now.Add(c.ttl),
		insertedAt: now,
	}
}

// Invalidate removes a specific key.
func (c *LRUCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// InvalidatePrefix removes every key that starts with prefix. Scaffold
// files of one registry share a URL prefix, so a push or edit can evict
// exactly that registry's entries.
func (c *LRUCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
}

// InvalidateAll removes all entries.
func (c *LRUCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*slot, c.maxSize)
}

// Size returns the number of entries currently held, including expired
// ones not yet lazily cleaned.
func (c *LRUCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// evictOldest removes the entry with the oldest insertedAt timestamp.
// Must be called with c.mu held.
func (c *LRUCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for k, s := range c.items {
		if first || s.insertedAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = s.insertedAt
			first = false
		}
	}
	if !first {
		delete(c.items, oldestKey)
	}
}
