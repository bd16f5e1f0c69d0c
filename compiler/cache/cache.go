// Package cache keeps parsed schema entities keyed by their source path.
//
// The cache is advisory: a miss or a stale entry only costs a re-parse.
// Concurrent lookups of the same path share a single load, lookups of
// different paths never wait on each other.
package cache

import (
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the expiry applied to entries when none is configured.
const DefaultTTL = 24 * time.Hour

// Loader parses the entity stored at path.
type Loader[T any] func(path string) (T, error)

type entry[T any] struct {
	value   T
	expires time.Time
}

// Cache maps source paths to parsed entities.
type Cache[T any] struct {
	load  Loader[T]
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry[T]
	// gens holds the generation of keys that were refreshed or invalidated.
	// A load stores its result only if the generation of its key is
	// unchanged since the load started.
	gens   map[string]uint64
	purged uint64
	seq    uint64
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL sets the entry expiry. Non-positive values keep the default.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ttl = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an empty cache backed by load.
func New[T any](load Loader[T], opts ...Option) *Cache[T] {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		load:    load,
		ttl:     o.ttl,
		now:     o.now,
		entries: make(map[string]entry[T]),
		gens:    make(map[string]uint64),
	}
}

// Get returns the entity cached for path, loading it on a miss or when the
// entry has expired.
func (c *Cache[T]) Get(path string) (T, error) {
	key := filepath.Clean(path)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e.value, nil
	}
	return c.fill(key, "get:", false)
}

// Refresh re-parses path and replaces its entry, whether or not one exists.
// Gets still loading when Refresh starts do not overwrite its result.
func (c *Cache[T]) Refresh(path string) (T, error) {
	return c.fill(filepath.Clean(path), "refresh:", true)
}

// fill loads key once per concurrent burst. Gets and refreshes use separate
// flights so a refresh never returns a load that started before it.
func (c *Cache[T]) fill(key, flight string, bump bool) (T, error) {
	v, err, _ := c.group.Do(flight+key, func() (any, error) {
		c.mu.Lock()
		if bump {
			c.seq++
			c.gens[key] = c.seq
		}
		gen := c.generation(key)
		c.mu.Unlock()

		v, err := c.load(key)
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.generation(key) == gen {
			c.entries[key] = entry[T]{value: v, expires: c.now().Add(c.ttl)}
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		// A failed load leaves any previous entry untouched.
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Invalidate drops the entry for path.
func (c *Cache[T]) Invalidate(path string) {
	key := filepath.Clean(path)
	c.group.Forget("get:" + key)
	c.mu.Lock()
	c.seq++
	c.gens[key] = c.seq
	delete(c.entries, key)
	c.mu.Unlock()
}

// generation must be called with c.mu held.
func (c *Cache[T]) generation(key string) uint64 {
	return max(c.gens[key], c.purged)
}

// Len returns the number of cached entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops every entry.
func (c *Cache[T]) Purge() {
	c.mu.Lock()
	clear(c.entries)
	c.seq++
	c.purged = c.seq
	clear(c.gens)
	c.mu.Unlock()
}
