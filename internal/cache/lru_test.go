package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"budgetbeacon/internal/core"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok, "b should have been evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, c.Size())
}

func TestLRUCache_TTL(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(30 * time.Second)
	c.Set("fresh", "v")

	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(45 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.CleanExpired())
	assert.Equal(t, 1, c.Size())
}

func TestLRUCache_DeleteAndPurge(t *testing.T) {
	c := NewLRUCache[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)
	v, _ := c.Get("a")
	assert.Equal(t, 2, v)

	c.Delete("a")
	assert.Equal(t, 0, c.Size())

	c.Set("b", 1)
	c.Purge()
	assert.Equal(t, 0, c.Size())
}

func TestSummaryCache(t *testing.T) {
	c := NewSummaryCache(8, time.Minute)
	today := core.NewDate(2024, 3, 15)
	calls := 0
	compute := func() core.Summary {
		calls++
		return core.Summary{Scope: core.ScopeAll, Entries: calls}
	}

	s, hit := c.Get(1, core.ScopeAll, today, compute)
	assert.False(t, hit)
	assert.Equal(t, 1, s.Entries)

	s, hit = c.Get(1, core.ScopeAll, today, compute)
	assert.True(t, hit)
	assert.Equal(t, 1, s.Entries)

	_, hit = c.Get(2, core.ScopeAll, today, compute)
	assert.False(t, hit, "a new revision must miss")
	_, hit = c.Get(2, core.ScopeMonth, today, compute)
	assert.False(t, hit)
	_, hit = c.Get(2, core.ScopeMonth, today.AddDays(1), compute)
	assert.False(t, hit)
	assert.Equal(t, 4, calls)

	assert.Equal(t, "2|month|2024-03-15", SummaryKey(2, core.ScopeMonth, today))
}

func TestManager(t *testing.T) {
	c := NewLRUCache[int](4, time.Nanosecond)
	c.Set("a", 1)
	time.Sleep(time.Millisecond)

	m := NewManager(nil)
	m.Register(c)
	assert.Equal(t, 1, m.CleanNow())

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
