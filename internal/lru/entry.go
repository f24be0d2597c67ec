package lru

// entry is a resident cache node: a bucket-chain link plus a position on
// exactly one of its shard's two doubly-linked lists (in-use or evictable).
// Grounded on cache.h's BucketValueNode (LRUCache<Value>), flattened out of
// its multiple-inheritance shape into one struct.
type entry[V any] struct {
	key    string
	hash   uint32
	value  V
	charge int

	refCount int
	erased   bool

	bucketNext *entry[V]

	listPrev, listNext *entry[V]
}

// Handle is an opaque reference returned by Insert/Lookup. Exactly one
// Release call must retire it; double-release or use-after-release is a
// program error (spec.md §4.2 "Failure semantics").
type Handle[V any] struct {
	e *entry[V]
}

// Value returns the handle's referenced value.
func (h *Handle[V]) Value() V { return h.e.value }

// Key returns the handle's key.
func (h *Handle[V]) Key() string { return h.e.key }

// Charge returns the handle's charge.
func (h *Handle[V]) Charge() int { return h.e.charge }
