// Package cache holds the last observed result per operation key. It is a
// flat key to result map: no cross-key relationships, no normalized entity
// graph. Eviction is opt-in via options; the default cache is unbounded and
// non-expiring.
package cache

import (
	"sync"
	"time"

	"github.com/graphfetch/graphfetch/internal/result"
)

// ResultCache maps operation keys to the most recent result written for
// them. Safe for concurrent use; writes are atomic per key, last write wins.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string // insertion order, for max-entries eviction

	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type entry struct {
	res      result.OperationResult
	storedAt time.Time
}

type Option func(*ResultCache)

// WithMaxEntries bounds the cache to n entries; writing a new key at the
// bound evicts the oldest inserted key. n <= 0 means unbounded.
func WithMaxEntries(n int) Option {
	return func(c *ResultCache) { c.maxEntries = n }
}

// WithTTL expires entries d after their last write; an expired entry reads
// as a miss. d <= 0 means entries never expire.
func WithTTL(d time.Duration) Option {
	return func(c *ResultCache) { c.ttl = d }
}

// New creates an empty ResultCache.
func New(opts ...Option) *ResultCache {
	c := &ResultCache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, f := range opts {
		f(c)
	}
	return c
}

// Get is a pure lookup by key. It never triggers network activity and has no
// side effects beyond lazily dropping an expired entry.
func (c *ResultCache) Get(key string) (result.OperationResult, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return result.OperationResult{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			c.delete(key)
		}
		c.mu.Unlock()
		return result.OperationResult{}, false
	}
	return e.res, true
}

// Set writes res under key unconditionally, overwriting any prior entry.
func (c *ResultCache) Set(key string, res result.OperationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
			c.delete(c.order[0])
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry{res: res, storedAt: c.now()}
}

// Len reports the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// delete removes key from entries and order. Caller holds the write lock.
func (c *ResultCache) delete(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
