package repository

import (
	"log/slog"
	"runtime"
	"sync"
	"weak"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/mdrepo/internal/metrics"
)

// identityCache maps entry URIs to loaded entries. Values are weak: an
// entry nobody references may be collected, but while one caller holds it
// every lookup returns that same instance.
type identityCache struct {
	mu      sync.Mutex
	entries map[string]weak.Pointer[Entry]
	loads   singleflight.Group
	metrics *metrics.Metrics
}

func newIdentityCache(m *metrics.Metrics) *identityCache {
	return &identityCache{
		entries: make(map[string]weak.Pointer[Entry]),
		metrics: m,
	}
}

func (c *identityCache) get(uri string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[uri]
	if !ok {
		return nil
	}
	e := p.Value()
	if e == nil {
		delete(c.entries, uri)
	}
	return e
}

func (c *identityCache) put(e *Entry) {
	uri := e.URI()
	p := weak.Make(e)
	c.mu.Lock()
	c.entries[uri] = p
	c.mu.Unlock()
	runtime.AddCleanup(e, c.evict, cleanupKey{uri: uri, ptr: p})
}

func (c *identityCache) remove(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uri)
}

type cleanupKey struct {
	uri string
	ptr weak.Pointer[Entry]
}

// evict drops a collected entry unless the slot was reused meanwhile.
func (c *identityCache) evict(k cleanupKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[k.uri]; ok && cur == k.ptr {
		delete(c.entries, k.uri)
	}
}

// load returns the cached entry or runs fn once for all concurrent callers
// asking for the same URI. fn returning nil means the entry does not exist.
func (c *identityCache) load(uri string, fn func() (*Entry, error)) (*Entry, error) {
	if e := c.get(uri); e != nil {
		c.metrics.CacheHit()
		return e, nil
	}
	c.metrics.CacheMiss()
	v, err, shared := c.loads.Do(uri, func() (any, error) {
		if e := c.get(uri); e != nil {
			return e, nil
		}
		e, err := fn()
		if err != nil || e == nil {
			return e, err
		}
		c.put(e)
		return e, nil
	})
	if shared {
		slog.Debug("collapsed entry load", "entry", uri)
	}
	if err != nil {
		return nil, err
	}
	e, _ := v.(*Entry)
	return e, nil
}

func (c *identityCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
