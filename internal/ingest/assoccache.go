package ingest

import "sync"

type labelKey struct {
	RepoID uint
	Name   string
}

// LabelCache là cache write-through cho id label theo (repo, name), tránh
// tra và tạo N+1 khi một trang có hàng chục item dùng chung vài label.
// Dựng một lần cho cả process và truyền vào pipeline.
type LabelCache struct {
	mu  sync.RWMutex
	ids map[labelKey]uint
}

func NewLabelCache() *LabelCache {
	return &LabelCache{ids: make(map[labelKey]uint)}
}

func (c *LabelCache) Lookup(repoID uint, name string) (uint, bool) {
	c.mu.RLock()
	id, ok := c.ids[labelKey{RepoID: repoID, Name: name}]
	c.mu.RUnlock()
	return id, ok
}

func (c *LabelCache) Store(repoID uint, name string, id uint) {
	c.mu.Lock()
	c.ids[labelKey{RepoID: repoID, Name: name}] = id
	c.mu.Unlock()
}

// TopicCache như LabelCache nhưng topic dùng chung toàn hệ thống nên khóa
// chỉ là tên
type TopicCache struct {
	mu  sync.RWMutex
	ids map[string]uint
}

func NewTopicCache() *TopicCache {
	return &TopicCache{ids: make(map[string]uint)}
}

func (c *TopicCache) Lookup(name string) (uint, bool) {
	c.mu.RLock()
	id, ok := c.ids[name]
	c.mu.RUnlock()
	return id, ok
}

func (c *TopicCache) Store(name string, id uint) {
	c.mu.Lock()
	c.ids[name] = id
	c.mu.Unlock()
}
