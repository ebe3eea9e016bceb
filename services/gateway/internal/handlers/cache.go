package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Cache is the read/write interface for the gateway's response cache.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, v any)
	Delete(key string)
}

type cacheItem struct {
	val       any
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry. Catalog mutations are
// infrequent enough that invalidation is coarse: any catalog event flushes
// every cached view, since course lists, detail pages and summaries all embed
// catalog data.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
}

func NewTTLCache(ttl time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TTLCache{items: make(map[string]cacheItem), ttl: ttl}
}

// FlushOnCatalogEvents subscribes to the catalog event stream and clears the
// cache whenever any catalog entity changes.
func (c *TTLCache) FlushOnCatalogEvents(nc *nats.Conn) error {
	_, err := nc.Subscribe("catalog.>", func(*nats.Msg) {
		c.Flush()
	})
	return err
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(it.expiresAt) {
		c.Delete(key)
		return nil, false
	}
	return it.val, true
}

func (c *TTLCache) Set(key string, v any) {
	c.mu.Lock()
	c.items[key] = cacheItem{val: v, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

func (c *TTLCache) Flush() {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

// DeletePrefix drops every key beginning with prefix, used to expire all
// variants of one view.
func (c *TTLCache) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	c.mu.Unlock()
}
