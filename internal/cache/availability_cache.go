package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/courtbook/courtbook/internal/model"
)

// AvailabilityCache stores slot grids in a TTL-bounded LRU and keeps a
// secondary index from invalidation tag to the keys added under it, so
// one write can evict every grid touching a (club, date) pair no matter
// which court subset each grid was keyed on. Entries are advisory: the
// booking path never trusts them for correctness.
type AvailabilityCache struct {
	mu   sync.Mutex
	lru  *expirable.LRU[string, *model.AvailabilityGrid]
	tags map[string]map[string]struct{}
	keys map[string]string
}

func New(maxEntries int, ttl time.Duration) *AvailabilityCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	c := &AvailabilityCache{
		tags: make(map[string]map[string]struct{}),
		keys: make(map[string]string),
	}
	// onEvict keeps the tag index in step with LRU/TTL evictions.
	c.lru = expirable.NewLRU[string, *model.AvailabilityGrid](maxEntries, c.onEvict, ttl)
	return c
}

func (c *AvailabilityCache) Get(key string) (*model.AvailabilityGrid, bool) {
	return c.lru.Get(key)
}

func (c *AvailabilityCache) Add(key, tag string, grid *model.AvailabilityGrid) {
	c.mu.Lock()
	if set, ok := c.tags[tag]; ok {
		set[key] = struct{}{}
	} else {
		c.tags[tag] = map[string]struct{}{key: {}}
	}
	c.keys[key] = tag
	c.mu.Unlock()

	c.lru.Add(key, grid)
}

// InvalidateTag evicts every entry added under the tag.
func (c *AvailabilityCache) InvalidateTag(tag string) {
	c.mu.Lock()
	set := c.tags[tag]
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.lru.Remove(key)
	}
}

// Purge drops everything; used on shutdown and in tests.
func (c *AvailabilityCache) Purge() {
	c.lru.Purge()
}

// Len reports the number of live entries.
func (c *AvailabilityCache) Len() int {
	return c.lru.Len()
}

func (c *AvailabilityCache) onEvict(key string, _ *model.AvailabilityGrid) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag, ok := c.keys[key]
	if !ok {
		return
	}
	delete(c.keys, key)
	if set, ok := c.tags[tag]; ok {
		delete(set, key)
		if len(set) == 0 {
			delete(c.tags, tag)
		}
	}
}
