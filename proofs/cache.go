package proofs

import (
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// defaultCacheEntries is used when NewVerifyCache is given a non-positive size.
const defaultCacheEntries = 1024

// VerifyCacheStats holds aggregate statistics about the cache.
type VerifyCacheStats struct {
	Hits    uint64
	Misses  uint64
	Entries uint64
}

// VerifyCache remembers attestations that passed Verify, keyed by
// AggregateAttestation.Hash. Only successes are cached. Safe for concurrent
// use.
type VerifyCache struct {
	lru *expirable.LRU[common.Hash, time.Time]

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewVerifyCache creates a cache of at most maxEntries attestations. A
// non-positive ttl keeps entries until they are evicted by size.
func NewVerifyCache(maxEntries int, ttl time.Duration) *VerifyCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	if ttl < 0 {
		ttl = 0
	}
	return &VerifyCache{lru: expirable.NewLRU[common.Hash, time.Time](maxEntries, nil, ttl)}
}

// Add records a verified attestation.
func (c *VerifyCache) Add(h common.Hash) {
	c.lru.Add(h, time.Now())
}

// Contains reports whether h was verified and has not expired.
func (c *VerifyCache) Contains(h common.Hash) bool {
	if _, ok := c.lru.Get(h); ok {
		c.hits.Add(1)
		return true
	}
	c.misses.Add(1)
	return false
}

// Remove drops h from the cache.
func (c *VerifyCache) Remove(h common.Hash) {
	c.lru.Remove(h)
}

// Stats returns a snapshot of the cache statistics.
func (c *VerifyCache) Stats() VerifyCacheStats {
	return VerifyCacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: uint64(c.lru.Len()),
	}
}

// HitRate returns the fraction of lookups that hit, or 0 before any lookup.
func (c *VerifyCache) HitRate() float64 {
	hits, misses := c.hits.Load(), c.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
