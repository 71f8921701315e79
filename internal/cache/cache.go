package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value      V
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry[V]) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) > e.ttl
}

// Cache is a bounded, TTL-expiring key/value store safe for concurrent use.
//
// Eviction at capacity removes the oldest-inserted key, not the least
// recently used one. That keeps bookkeeping trivial and is good enough for
// low-cardinality, short-TTL configuration data; this is not a
// general-purpose cache.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]entry[V]
	order    []string // keys by insertion order, oldest first

	now func() time.Time
}

const DefaultCapacity = 128

// New returns an empty cache holding at most capacity entries.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache[V]{
		capacity: capacity,
		entries:  make(map[string]entry[V], capacity),
		now:      time.Now,
	}
}

// Set inserts or replaces the entry for key and restamps its insertion time.
// A replaced key moves to the back of the eviction order. When the cache is
// full and key is new, the oldest-inserted entry is evicted first.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.dropFromOrder(key)
	} else if len(c.entries) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = entry[V]{value: value, insertedAt: c.now(), ttl: ttl}
	c.order = append(c.order, key)
}

// Get returns the value for key if present and unexpired. An expired entry
// is removed as a side effect; absence is not an error.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.expired(c.now()) {
		delete(c.entries, key)
		c.dropFromOrder(key)
		return zero, false
	}
	return e.value, true
}

// Delete removes key if present; idempotent.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.dropFromOrder(key)
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[V], c.capacity)
	c.order = c.order[:0]
}

// Cleanup evicts every expired entry and reports how many were removed.
// Bounds memory growth from keys written once and never re-read.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	kept := c.order[:0]
	removed := 0
	for _, key := range c.order {
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		if e.expired(now) {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.order = kept
	return removed
}

// Len reports the number of stored entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartJanitor runs Cleanup every interval until ctx is cancelled.
func (c *Cache[V]) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		tick := time.NewTicker(interval)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				c.Cleanup()
			}
		}
	}()
}

// dropFromOrder removes key from the order slice. Callers hold c.mu.
func (c *Cache[V]) dropFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
