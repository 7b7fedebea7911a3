package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryCache struct {
	entries *expirable.LRU[string, bool]
}

// NewMemory returns a process-local bounded cache whose entries expire
// after ttl.
func NewMemory(size int, ttl time.Duration) DecisionCache {
	if size <= 0 {
		size = defaultMemoryBounds
	}
	return &memoryCache{
		entries: expirable.NewLRU[string, bool](size, nil, ttlOrDefault(ttl)),
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (bool, bool, error) {
	allowed, ok := c.entries.Get(key)
	return allowed, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, allowed bool) error {
	c.entries.Add(key, allowed)
	return nil
}
