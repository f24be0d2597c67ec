// Package lru implements the sharded, reference-counted LRU cache
// described in spec.md §4.2: a 32-bit Murmur hash picks a shard by its top
// k bits, each shard maintains an in-use list (ref_count >= 2) and an
// evictable list (ref_count == 1), and eviction only removes from the
// evictable list under charge pressure. Grounded on
// original_source/include/tagfilterdb/cache.h (LRUCache<Value> /
// ShareLRUCache<Value>, itself credited there to Google's LevelDB); the
// package shape (generic cache, functional-options config, shard-under-
// mutex) follows the conventions used throughout this module.
package lru

import (
	"github.com/tin2003tin/tagfilterdb/internal/murmur"
)

// Cache is a hash-sharded, reference-counted LRU cache over values of
// type V, keyed by opaque strings.
type Cache[V any] struct {
	shards    []*shard[V]
	shardBits uint
	metrics   metricsSink
}

// New constructs a Cache with the given options.
func New[V any](opts ...Option[V]) (*Cache[V], error) {
	cfg := defaultConfig[V]()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	shardCount := 1 << cfg.shardBits
	metrics := newMetricsSink(shardCount, cfg.registry)
	perShardCharge := (cfg.totalCharge + shardCount - 1) / shardCount

	c := &Cache[V]{
		shards:    make([]*shard[V], shardCount),
		shardBits: cfg.shardBits,
		metrics:   metrics,
	}
	for i := range c.shards {
		c.shards[i] = newShard[V](perShardCharge, cfg.expandRatio, cfg.expandFactor, cfg.ejectCb, metrics, uint8(i))
	}
	return c, nil
}

func (c *Cache[V]) shardFor(hash uint32) *shard[V] {
	if c.shardBits == 0 {
		return c.shards[0]
	}
	return c.shards[hash>>(32-c.shardBits)]
}

func hashKey(key string) uint32 {
	return murmur.Hash32([]byte(key), 0)
}

// Insert adds key/value with the given charge and returns a handle already
// carrying one external reference (ref_count 2: one for the table, one for
// the caller). If charge exceeds the owning shard's ceiling, Insert is a
// no-op and returns nil.
func (c *Cache[V]) Insert(key string, value V, charge int) *Handle[V] {
	hash := hashKey(key)
	return c.shardFor(hash).insert(key, hash, value, charge)
}

// Lookup finds key, bumping its reference count, or returns nil on a miss.
// The caller must Release the returned handle exactly once.
func (c *Cache[V]) Lookup(key string) *Handle[V] {
	hash := hashKey(key)
	return c.shardFor(hash).lookup(key, hash)
}

// Release retires a handle obtained from Insert or Lookup. Double-release
// or release of an already-retired handle is a program error; Release
// panics rather than silently corrupting list state.
func (c *Cache[V]) Release(h *Handle[V]) {
	if h == nil {
		return
	}
	if h.e == nil || h.e.refCount == 0 {
		panic("lru: double release of cache handle")
	}
	e := h.e
	h.e = nil
	c.shardFor(e.hash).release(e)
}

// Erase removes key from the table. It does not require a prior Lookup; if
// an external handle is still outstanding the entry is only detached from
// the shard's bucket/list structures and is freed once that handle's
// Release brings its reference count to zero.
func (c *Cache[V]) Erase(key string) bool {
	hash := hashKey(key)
	return c.shardFor(hash).erase(key, hash)
}

// Prune drains every shard's evictable list.
func (c *Cache[V]) Prune() {
	for _, s := range c.shards {
		s.prune()
	}
}

// TotalUsage sums every shard's resident charge.
func (c *Cache[V]) TotalUsage() int {
	total := 0
	for _, s := range c.shards {
		total += s.snapshotUsage()
	}
	return total
}

// ShardCount returns the number of shards (2^shardBits).
func (c *Cache[V]) ShardCount() int { return len(c.shards) }
