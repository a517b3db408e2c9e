// Package cache is a bounded in-memory cache with per-entry expiry, used to
// keep upstream responses for fields configured with a maxAge.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type entry struct {
	value   any
	expires time.Time
}

// Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache
	now     func() time.Time
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(size int, opts ...Option) (*Cache, error) {
	if size <= 0 {
		size = 4096
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	c := &Cache{entries: entries, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns the value stored under key unless it has expired.
func (c *Cache) Get(key uint64) (any, bool) {
	raw, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	e := raw.(entry)
	if !c.now().Before(e.expires) {
		c.entries.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key uint64, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.entries.Add(key, entry{value: value, expires: c.now().Add(ttl)})
}

func (c *Cache) Len() int { return c.entries.Len() }
