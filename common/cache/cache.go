// Package cache holds short-lived process state: a lossy ristretto read
// cache and a lossless claim set for at-most-once work.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Cache may drop entries under pressure; use it only for data that can be
// read again.
type Cache[V any] struct {
	c   *ristretto.Cache[string, V]
	ttl time.Duration
}

// New creates a cache holding roughly maxItems entries, each living for ttl.
func New[V any](maxItems int64, ttl time.Duration) (*Cache[V], error) {
	if maxItems <= 0 {
		maxItems = 100_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &Cache[V]{c: c, ttl: ttl}, nil
}

func (c *Cache[V]) Set(key string, value V) bool {
	ok := c.c.SetWithTTL(key, value, 1, c.ttl)
	c.c.Wait()
	return ok
}

func (c *Cache[V]) Get(key string) (V, bool) {
	return c.c.Get(key)
}

func (c *Cache[V]) Del(key string) {
	c.c.Del(key)
}

func (c *Cache[V]) Close() {
	c.c.Close()
}
