// Package signedurl caches pre-signed blob URLs so repeated gallery renders
// do not re-sign the same storage paths.
package signedurl

import (
	"strings"
	"sync"
	"time"
)

// DefaultSafetyMargin is subtracted from every entry's expiry so callers
// never receive a URL that dies mid-request.
const DefaultSafetyMargin = 30 * time.Second

type entry struct {
	url       string
	expiresAt time.Time
}

// Cache is a concurrency-safe TTL cache keyed by storage path.
type Cache struct {
	mu           sync.Mutex
	entries      map[string]entry
	safetyMargin time.Duration
	now          func() time.Time
}

// Option customizes a Cache.
type Option func(*Cache)

// WithSafetyMargin overrides the default expiry margin.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *Cache) { c.safetyMargin = d }
}

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:      make(map[string]entry),
		safetyMargin: DefaultSafetyMargin,
		now:          time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Get returns the cached URL for path if it is still comfortably within its
// TTL. Entries inside the safety margin count as expired and are evicted.
func (c *Cache) Get(path string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	if !ok {
		return "", false
	}
	if !c.now().Add(c.safetyMargin).Before(e.expiresAt) {
		delete(c.entries, path)
		return "", false
	}
	return e.url, true
}

// Set stores url for path with the given TTL. Non-positive TTLs are ignored.
func (c *Cache) Set(path, url string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = entry{url: url, expiresAt: c.now().Add(ttl)}
}

// Clear drops every entry whose path starts with prefix. An empty prefix
// drops everything. Returns the number of evicted entries.
func (c *Cache) Clear(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prefix == "" {
		n := len(c.entries)
		c.entries = make(map[string]entry)
		return n
	}
	n := 0
	for path := range c.entries {
		if strings.HasPrefix(path, prefix) {
			delete(c.entries, path)
			n++
		}
	}
	return n
}

// Len reports the number of live entries, expired ones included until read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
