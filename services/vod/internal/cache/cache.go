package cache

import (
	"context"
	"sync"
	"time"

	"github.com/example/course-platform/services/vod/internal/provider"
)

// StatusCache stores the last known provider state of a video so status
// endpoints don't hit the provider on every request.
type StatusCache interface {
	Get(ctx context.Context, videoGUID string) (provider.VideoInfo, bool, error)
	Set(ctx context.Context, info provider.VideoInfo) error
	Invalidate(ctx context.Context, videoGUID string) error
}

// MemoryCache is the test implementation of StatusCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	TTL     time.Duration
}

type memoryEntry struct {
	info      provider.VideoInfo
	expiresAt time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), TTL: ttl}
}

func (c *MemoryCache) Get(_ context.Context, videoGUID string) (provider.VideoInfo, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[videoGUID]
	if !ok || time.Now().After(e.expiresAt) {
		return provider.VideoInfo{}, false, nil
	}
	return e.info, true, nil
}

func (c *MemoryCache) Set(_ context.Context, info provider.VideoInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[info.GUID] = memoryEntry{info: info, expiresAt: time.Now().Add(c.TTL)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, videoGUID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, videoGUID)
	return nil
}
