package credential

import (
	"sync"
	"time"
)

type cacheEntry struct {
	selection Selection
	expiresAt time.Time
}

// SelectionCache giữ kết quả chọn credential theo repo trong một TTL ngắn.
// Cache chỉ là tối ưu, hết hạn là miss, không bao giờ là nguồn sự thật.
type SelectionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uint]cacheEntry
	now     func() time.Time
}

func NewSelectionCache(ttl time.Duration) *SelectionCache {
	return &SelectionCache{
		ttl:     ttl,
		entries: make(map[uint]cacheEntry),
		now:     time.Now,
	}
}

func (c *SelectionCache) Get(repoID uint) (Selection, bool) {
	c.mu.RLock()
	entry, ok := c.entries[repoID]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return Selection{}, false
	}
	return entry.selection, true
}

func (c *SelectionCache) Put(repoID uint, selection Selection) {
	c.mu.Lock()
	c.entries[repoID] = cacheEntry{
		selection: selection,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}
