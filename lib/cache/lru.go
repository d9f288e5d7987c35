package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// --------------------------------------------------------------------------
// Expirable LRU Implementation
// --------------------------------------------------------------------------

type lruCache struct {
	entries *expirable.LRU[string, []byte]
}

// NewLRUCache creates a response cache bounded by entry count and entry
// age. Expired entries are evicted lazily on access and by the LRU's
// background sweep. It is safe for concurrent use.
func NewLRUCache(maxEntries int, ttl time.Duration) IResponseCache {
	return &lruCache{
		entries: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

func (c *lruCache) Get(key string) ([]byte, bool) {
	return c.entries.Get(key)
}

func (c *lruCache) Set(key string, value []byte) error {
	// copy so later caller-side buffer reuse cannot corrupt the entry
	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries.Add(key, stored)
	return nil
}

func (c *lruCache) Purge() {
	c.entries.Purge()
}
