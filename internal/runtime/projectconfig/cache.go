package projectconfig

import (
	"context"
	"maps"
	"sync"
	"time"
)

// CachingProvider memoizes successful lookups for ttl. Failures are not
// cached. Callers receive copies, never the cached map.
type CachingProvider struct {
	next Provider
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[int64]cacheEntry
}

type cacheEntry struct {
	attrs   map[string]string
	expires time.Time
}

// NewCachingProvider wraps next. A non-positive ttl disables caching.
func NewCachingProvider(next Provider, ttl time.Duration) *CachingProvider {
	return &CachingProvider{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[int64]cacheEntry),
	}
}

func (c *CachingProvider) Provide(ctx context.Context, projectID int64) (map[string]string, error) {
	if c.ttl <= 0 {
		return c.next.Provide(ctx, projectID)
	}

	c.mu.Lock()
	entry, ok := c.entries[projectID]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expires) {
		return maps.Clone(entry.attrs), nil
	}

	attrs, err := c.next.Provide(ctx, projectID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[projectID] = cacheEntry{attrs: maps.Clone(attrs), expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return attrs, nil
}

// Invalidate drops the cached attributes of one project.
func (c *CachingProvider) Invalidate(projectID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, projectID)
}
