package notice

import (
	"slices"
	"sync"
)

// DedupCache remembers notice ids that were already broadcast. Ids are
// assigned in increasing order by the store, so the largest ids are the
// most recent ones.
type DedupCache struct {
	mu      sync.Mutex
	ids     map[int]struct{}
	ceiling int
	keep    int
}

// NewDedupCache returns a cache that shrinks to the keep most recent ids
// once it holds more than ceiling.
func NewDedupCache(ceiling, keep int) *DedupCache {
	if keep > ceiling {
		keep = ceiling
	}
	return &DedupCache{
		ids:     make(map[int]struct{}),
		ceiling: ceiling,
		keep:    keep,
	}
}

func (c *DedupCache) Seen(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ids[id]
	return ok
}

func (c *DedupCache) Add(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ids[id] = struct{}{}
	if len(c.ids) > c.ceiling {
		c.prune()
	}
}

func (c *DedupCache) prune() {
	ids := make([]int, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids[:len(ids)-c.keep] {
		delete(c.ids, id)
	}
}

func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}
