// Package cache memoizes generation and synthesis results for a short
// window, bounding repeated externally-billed calls for identical inputs.
package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultTTL is how long an entry stays fresh.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxEntries is the capacity ceiling.
	DefaultMaxEntries = 100
)

// Kind distinguishes what operation produced a cached value.
type Kind string

const (
	KindGeneration Kind = "generation"
	KindSynthesis  Kind = "synthesis"
)

type cacheEntry struct {
	value     any
	timestamp time.Time
}

// Cache is a TTL plus capacity bounded memo map. Eviction at capacity is
// insertion-order-first, not recency-based; only the TTL and the capacity
// bound are load-bearing, not the victim-selection rule.
type Cache struct {
	ttl time.Duration
	max int

	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
	now     func() time.Time
}

// New creates a cache. Non-positive arguments fall back to the defaults.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		ttl:     ttl,
		max:     maxEntries,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the cached value for (kind, input, options). Entries past
// the TTL are misses even if still physically present.
func (c *Cache) Get(kind Kind, input string, options any) (any, bool) {
	key := Key(kind, input, options)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		return nil, false
	}
	return e.value, true
}

// Put stores a value. At capacity, the oldest-inserted entry is evicted to
// make room.
func (c *Cache) Put(kind Kind, input string, options any, value any) {
	key := Key(kind, input, options)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.entries) >= c.max {
			c.evictOldestLocked()
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{value: value, timestamp: c.now()}
}

// Len returns the number of physically present entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldestLocked() {
	for len(c.order) > 0 {
		victim := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[victim]; ok {
			delete(c.entries, victim)
			return
		}
	}
}

// Key builds the cache key from the operation kind, the input text and a
// deterministic digest of the options.
func Key(kind Kind, input string, options any) string {
	digest := ""
	if options != nil {
		if b, err := json.Marshal(options); err == nil {
			digest = string(b)
		}
	}
	return fmt.Sprintf("%s:%s:%s", kind, input, digest)
}
