// Package cache implements the element cache: a bounded, per-entry-TTL
// sidecar over whole decoded vertices/edges. It is purely an acceleration
// structure — every Get is a hint, never a source of truth. Cache stores
// and returns T by Go value assignment, with no explicit copy step of its
// own; callers get the same isolation the teacher's node/edge cache
// promises only because pkg/graph's Vertex and Edge are flat structs of
// strings, so an ordinary value copy already is an independent copy. A T
// holding a pointer, slice, or map would alias the cached value across
// Get/Put calls.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// NeverCache is a sentinel PropertyTTL value: any element carrying a
// property key mapped to NeverCache is never stored in the cache at all,
// regardless of DefaultTTL.
const NeverCache time.Duration = -1

// Config controls one Cache's capacity and expiry policy.
type Config struct {
	// Capacity is the maximum number of entries kept. Capacity<=0 disables
	// caching entirely: Get is always a miss, Put is a no-op.
	Capacity int
	// DefaultTTL is how long an entry stays live after being written, with
	// no matching PropertyTTL override. DefaultTTL<=0 means entries never
	// expire on their own (only LRU eviction reclaims them).
	DefaultTTL time.Duration
	// PropertyTTL overrides DefaultTTL for elements carrying specific
	// property keys. When an element carries more than one overridden
	// key, the shortest TTL among them wins. NeverCache excludes the
	// element from the cache outright.
	PropertyTTL map[string]time.Duration
}

// Cache is a bounded, TTL-bucketed store of values of T, keyed by element
// ID. The hashicorp/golang-lru/v2/expirable.LRU this wraps only
// supports one fixed TTL per instance, so distinct effective TTLs (the
// default, and each PropertyTTL value actually seen) are kept in separate
// underlying LRUs, with a small index tracking which bucket holds which ID.
type Cache[T any] struct {
	cfg Config

	mu      sync.Mutex
	buckets map[time.Duration]*expirable.LRU[string, T]
	index   map[string]time.Duration
}

// New constructs a Cache. Values are stored and handed back by ordinary Go
// value assignment — see the package doc for what that does and doesn't
// guarantee about isolation.
func New[T any](cfg Config) *Cache[T] {
	return &Cache[T]{
		cfg:     cfg,
		buckets: make(map[time.Duration]*expirable.LRU[string, T]),
		index:   make(map[string]time.Duration),
	}
}

// Get returns the cached value for id, if present and unexpired.
func (c *Cache[T]) Get(id string) (T, bool) {
	var zero T
	if c.cfg.Capacity <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ttl, ok := c.index[id]
	if !ok {
		return zero, false
	}
	bucket, ok := c.buckets[ttl]
	if !ok {
		delete(c.index, id)
		return zero, false
	}
	v, ok := bucket.Get(id)
	if !ok {
		delete(c.index, id)
		return zero, false
	}
	return v, true
}

// Put stores value under id by ordinary Go value assignment (see the package
// doc for what that does and doesn't guarantee), with an effective TTL
// derived from propertyKeys and cfg.PropertyTTL. If any key maps to
// NeverCache, or
// caching is disabled (Capacity<=0), Put is a no-op (and any stale entry
// for id is invalidated, since the element's property set may have changed
// to include a never-cache key).
func (c *Cache[T]) Put(id string, value T, propertyKeys []string) {
	if c.cfg.Capacity <= 0 {
		return
	}
	ttl := c.cfg.DefaultTTL
	overridden := false
	for _, k := range propertyKeys {
		if override, ok := c.cfg.PropertyTTL[k]; ok {
			if override == NeverCache {
				c.Invalidate(id)
				return
			}
			if !overridden || ttl <= 0 || (override > 0 && override < ttl) {
				ttl = override
			}
			overridden = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.index[id]; ok && old != ttl {
		if b, ok := c.buckets[old]; ok {
			b.Remove(id)
		}
	}
	bucket, ok := c.buckets[ttl]
	if !ok {
		bucket = expirable.NewLRU[string, T](c.cfg.Capacity, nil, ttl)
		c.buckets[ttl] = bucket
	}
	bucket.Add(id, value)
	c.index[id] = ttl
}

// Invalidate removes any cached entry for id.
func (c *Cache[T]) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl, ok := c.index[id]
	if !ok {
		return
	}
	if b, ok := c.buckets[ttl]; ok {
		b.Remove(id)
	}
	delete(c.index, id)
}

// Clear empties every bucket.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.buckets {
		b.Purge()
	}
	c.index = make(map[string]time.Duration)
}

// Len returns the total number of live entries across all TTL buckets.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}
