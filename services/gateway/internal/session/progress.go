// Package session keeps a per-user view of video progress in gateway memory.
//
// The progress service remains the source of truth. The cache exists so the
// course list and watch pages can render without a round trip per video, and
// so optimistic local writes survive a concurrent refresh that started before
// the write landed.
package session

import (
	"sync"
	"time"
)

// Entry is one user's state for one video.
type Entry struct {
	VideoID     string
	LastSecond  int
	Percent     int
	Completed   bool
	CompletedAt *time.Time
	UpdatedAtMs int64
}

// ProgressCache holds the progress entries for a single user. It is safe for
// concurrent use.
type ProgressCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	loaded  bool
}

func NewProgressCache() *ProgressCache {
	return &ProgressCache{entries: make(map[string]Entry)}
}

// Loaded reports whether a snapshot has been applied at least once.
func (c *ProgressCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Get returns the entry for videoID, if present.
func (c *ProgressCache) Get(videoID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[videoID]
	return e, ok
}

// Snapshot returns a copy of every entry.
func (c *ProgressCache) Snapshot() map[string]Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Entry, len(c.entries))
	for id, e := range c.entries {
		out[id] = e
	}
	return out
}

// Update applies a local write. If the entry's UpdatedAtMs is zero the current
// wall clock is stamped, so later ApplySnapshot calls can tell the write is
// newer than whatever the server returned.
func (c *ProgressCache) Update(e Entry) {
	if e.UpdatedAtMs == 0 {
		e.UpdatedAtMs = time.Now().UnixMilli()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.VideoID] = e
}

// ApplySnapshot merges a server snapshot into the cache. Entries the server
// does not know about are kept, and a server row never replaces a local entry
// with a newer UpdatedAtMs. A refresh fetched before a local write therefore
// cannot roll the write back.
func (c *ProgressCache) ApplySnapshot(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		if cur, ok := c.entries[e.VideoID]; ok && cur.UpdatedAtMs > e.UpdatedAtMs {
			continue
		}
		c.entries[e.VideoID] = e
	}
	c.loaded = true
}

// Forget drops one entry, used after a progress reset.
func (c *ProgressCache) Forget(videoID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, videoID)
}

// Sessions maps user IDs to their progress caches with an idle TTL, so a
// logged-out user's view is eventually released.
type Sessions struct {
	mu    sync.Mutex
	ttl   time.Duration
	users map[string]*sessionSlot
}

type sessionSlot struct {
	cache    *ProgressCache
	lastSeen time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{ttl: ttl, users: make(map[string]*sessionSlot)}
}

// For returns the user's cache, creating it on first touch and evicting idle
// users opportunistically.
func (s *Sessions) For(userID string) *ProgressCache {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, slot := range s.users {
		if now.Sub(slot.lastSeen) > s.ttl {
			delete(s.users, id)
		}
	}
	slot, ok := s.users[userID]
	if !ok {
		slot = &sessionSlot{cache: NewProgressCache()}
		s.users[userID] = slot
	}
	slot.lastSeen = now
	return slot.cache
}

// Drop removes a user's cache, used on logout.
func (s *Sessions) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
}
