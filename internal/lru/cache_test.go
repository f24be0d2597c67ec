package lru

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts ...Option[int]) *Cache[int] {
	t.Helper()
	c, err := New[int](opts...)
	require.NoError(t, err)
	return c
}

func TestInsertReturnsHandleWithRefCountTwo(t *testing.T) {
	c := newTestCache(t)
	h := c.Insert("k", 1, 8)
	require.NotNil(t, h)
	require.Equal(t, 2, h.e.refCount)
	c.Release(h)
}

func TestLookupMissReturnsNil(t *testing.T) {
	c := newTestCache(t)
	require.Nil(t, c.Lookup("missing"))
}

func TestLookupBumpsRefAndMovesToInUse(t *testing.T) {
	c := newTestCache(t)
	h := c.Insert("k", 1, 8)
	c.Release(h) // ref now 1, evictable

	h2 := c.Lookup("k")
	require.NotNil(t, h2)
	require.Equal(t, 2, h2.e.refCount)
	c.Release(h2)
}

func TestReleaseDoubleReleasePanics(t *testing.T) {
	c := newTestCache(t)
	h := c.Insert("k", 1, 8)
	c.Release(h)
	require.Panics(t, func() { c.Release(h) })
}

func TestEraseDefersFreeUntilHandleReleased(t *testing.T) {
	c := newTestCache(t)
	h := c.Insert("k", 1, 8)
	require.True(t, c.Erase("k"))
	require.Nil(t, c.Lookup("k"))
	// h still valid until released
	require.Equal(t, 1, h.Value())
	c.Release(h)
}

func TestInsertChargeExceedingCeilingIsNoop(t *testing.T) {
	c := newTestCache(t, WithTotalCharge[int](4), WithShardBits[int](0))
	h := c.Insert("k", 1, 100)
	require.Nil(t, h)
}

// TestCacheEvictionUnderPressure is spec.md §8 scenario 1: single shard,
// ceiling 24, per-entry charge 8. Insert K1..K3 (each released immediately).
// Insert K4: exactly one of {K1,K2,K3} is evicted, and it is K1.
func TestCacheEvictionUnderPressure(t *testing.T) {
	c := newTestCache(t, WithShardBits[int](0), WithTotalCharge[int](24))

	for _, k := range []string{"K1", "K2", "K3"} {
		h := c.Insert(k, 0, 8)
		require.NotNil(t, h)
		c.Release(h)
	}

	h4 := c.Insert("K4", 0, 8)
	require.NotNil(t, h4)
	c.Release(h4)

	require.Nil(t, c.Lookup("K1"))
	for _, k := range []string{"K2", "K3", "K4"} {
		h := c.Lookup(k)
		require.NotNilf(t, h, "expected %s to survive eviction", k)
		c.Release(h)
	}
}

func TestPruneDrainsEvictableList(t *testing.T) {
	c := newTestCache(t, WithShardBits[int](0))
	for i := 0; i < 5; i++ {
		h := c.Insert(fmt.Sprintf("k%d", i), i, 8)
		c.Release(h)
	}
	require.Equal(t, 40, c.TotalUsage())
	c.Prune()
	require.Equal(t, 0, c.TotalUsage())
}

func TestRefCountInvariantAcrossRandomWorkload(t *testing.T) {
	c := newTestCache(t, WithShardBits[int](2), WithTotalCharge[int](10000))
	var handles []*Handle[int]
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("key-%d", i%50)
		h := c.Insert(key, i, 8)
		if h != nil {
			handles = append(handles, h)
		}
		if len(handles) > 3 {
			c.Release(handles[0])
			handles = handles[1:]
		}
	}
	for _, h := range handles {
		c.Release(h)
	}
	// After releasing everything, usage must not exceed any shard's ceiling.
	require.LessOrEqual(t, c.TotalUsage(), 10000)
}

func TestShardingIsStable(t *testing.T) {
	c := newTestCache(t)
	h1 := c.Insert("stable-key", 1, 8)
	s1 := c.shardFor(hashKey("stable-key"))
	c.Release(h1)
	s2 := c.shardFor(hashKey("stable-key"))
	require.Same(t, s1, s2)
}
