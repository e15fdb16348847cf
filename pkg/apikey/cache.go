package apikey

import (
	"context"
	"sync"
	"time"
)

// Cache sits in front of Store.GetByPrefix so a hot key doesn't hit the
// database on every request (spec §5: "evicts on TTL expiry and on
// explicit invalidation after revoke").
type Cache interface {
	Get(ctx context.Context, prefix string) (Key, bool)
	Set(ctx context.Context, k Key)
	Invalidate(ctx context.Context, prefix string)
}

type memoryEntry struct {
	value     Key
	expiresAt time.Time
}

// MemoryCache is a bounded, TTL-expiring map keyed by key prefix,
// generalizing pkg/replay's cache (oldest entry evicted on overflow)
// to the single-process deployment case.
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]*memoryEntry
	order      []string
	maxEntries int
	ttl        time.Duration
}

func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		items:      make(map[string]*memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *MemoryCache) Get(_ context.Context, prefix string) (Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[prefix]
	if !ok {
		return Key{}, false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeLocked(prefix)
		return Key{}, false
	}
	return entry.value, true
}

func (c *MemoryCache) Set(_ context.Context, k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[k.Prefix]; exists {
		c.removeLocked(k.Prefix)
	}

	c.items[k.Prefix] = &memoryEntry{value: k, expiresAt: time.Now().Add(c.ttl)}
	c.order = append(c.order, k.Prefix)

	for len(c.order) > c.maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

func (c *MemoryCache) Invalidate(_ context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(prefix)
}

func (c *MemoryCache) removeLocked(prefix string) {
	delete(c.items, prefix)
	for i, p := range c.order {
		if p == prefix {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
