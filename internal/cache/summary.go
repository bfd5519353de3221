package cache

import (
	"fmt"
	"time"

	"budgetbeacon/internal/core"
)

// SummaryCache memoizes dashboard summaries. A key includes the state
// revision, so any persisted mutation makes older summaries unreachable.
type SummaryCache struct {
	lru *LRUCache[core.Summary]
}

// NewSummaryCache creates a cache of up to size summaries kept for ttl.
func NewSummaryCache(size int, ttl time.Duration) *SummaryCache {
	return &SummaryCache{lru: NewLRUCache[core.Summary](size, ttl)}
}

// SummaryKey identifies a summary by revision, scope and the day it was
// computed on. The day matters for the month scope, whose period moves.
func SummaryKey(revision int64, scope core.DataScope, today core.Date) string {
	return fmt.Sprintf("%d|%s|%s", revision, scope, today)
}

// Get returns the cached summary or computes and stores it. The boolean
// reports a cache hit.
func (c *SummaryCache) Get(revision int64, scope core.DataScope, today core.Date, compute func() core.Summary) (core.Summary, bool) {
	key := SummaryKey(revision, scope, today)
	if s, ok := c.lru.Get(key); ok {
		return s, true
	}
	s := compute()
	c.lru.Set(key, s)
	return s, false
}

// CleanExpired implements Cleaner.
func (c *SummaryCache) CleanExpired() int {
	return c.lru.CleanExpired()
}

// Size returns the number of cached summaries.
func (c *SummaryCache) Size() int {
	return c.lru.Size()
}

// Purge drops every cached summary.
func (c *SummaryCache) Purge() {
	c.lru.Purge()
}
