// Package cache holds the per-process read-through cache in front of the
// content store.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/serroba/shortshare/internal/content"
	"github.com/serroba/shortshare/internal/metrics"
)

const (
	DefaultSize = 1000
	DefaultTTL  = 5 * time.Minute
)

// ContentCache is a bounded LRU of content snapshots with a fixed TTL per
// entry, counted from insertion. Cached view counts may lag the store by up
// to one TTL. Safe for concurrent use.
type ContentCache struct {
	lru     *expirable.LRU[content.ShortID, *content.Item]
	metrics *metrics.Metrics
}

// NewContentCache creates a cache holding at most size entries for ttl each.
// Non-positive arguments fall back to the defaults.
func NewContentCache(size int, ttl time.Duration, m *metrics.Metrics) *ContentCache {
	if size <= 0 {
		size = DefaultSize
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &ContentCache{
		lru:     expirable.NewLRU[content.ShortID, *content.Item](size, nil, ttl),
		metrics: m,
	}
}

// Get returns a copy of the cached item. Expired and absent entries are misses.
func (c *ContentCache) Get(id content.ShortID) (*content.Item, bool) {
	item, ok := c.lru.Get(id)
	if !ok {
		c.metrics.CacheMiss()

		return nil, false
	}

	c.metrics.CacheHit()

	return item.Clone(), true
}

// Put stores a snapshot of item under id, restarting its TTL.
func (c *ContentCache) Put(id content.ShortID, item *content.Item) {
	if item == nil {
		return
	}

	c.lru.Add(id, item.Clone())
}

// Invalidate drops any entry for id.
func (c *ContentCache) Invalidate(id content.ShortID) {
	c.lru.Remove(id)
}

// Len returns the number of entries, including ones not yet reaped.
func (c *ContentCache) Len() int {
	return c.lru.Len()
}
