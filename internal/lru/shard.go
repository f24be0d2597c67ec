package lru

// shard.go implements one shard's bucket table and the in-use/evictable
// list discipline described in spec.md §4.2, grounded on cache.h's
// LRUCache<Value>. Every operation here is guarded by the shard's own
// mutex; shards never hold another shard's lock (spec.md §5).

import "sync"

type shard[V any] struct {
	mu sync.Mutex

	buckets []*entry[V]
	size    int

	totalUsage  int
	totalCharge int

	expandRatio  float64
	expandFactor int

	// inUseHead/inUseTail and evictHead/evictTail are the head and tail
	// sentinel nodes of two doubly-linked lists, never themselves holding a
	// value.
	inUseHead, inUseTail *entry[V]
	evictHead, evictTail *entry[V]

	ejectCb EjectCallback[V]
	metrics metricsSink
	idx     uint8
}

func newShard[V any](totalCharge int, expandRatio float64, expandFactor int, ejectCb EjectCallback[V], metrics metricsSink, idx uint8) *shard[V] {
	s := &shard[V]{
		buckets:      make([]*entry[V], initialShardCap),
		totalCharge:  totalCharge,
		expandRatio:  expandRatio,
		expandFactor: expandFactor,
		ejectCb:      ejectCb,
		metrics:      metrics,
		idx:          idx,
	}
	s.inUseHead = &entry[V]{}
	s.inUseTail = &entry[V]{}
	s.inUseHead.listNext = s.inUseTail
	s.inUseTail.listPrev = s.inUseHead

	s.evictHead = &entry[V]{}
	s.evictTail = &entry[V]{}
	s.evictHead.listNext = s.evictTail
	s.evictTail.listPrev = s.evictHead
	return s
}

func (s *shard[V]) insert(key string, hash uint32, value V, charge int) *Handle[V] {
	if charge <= 0 {
		charge = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if charge > s.totalCharge {
		return nil
	}

	if s.isExpand() {
		s.expand(len(s.buckets) * s.expandFactor)
	}

	idx := int(hash % uint32(len(s.buckets)))

	var prev *entry[V]
	curr := s.buckets[idx]
	for curr != nil && curr.key != key {
		prev = curr
		curr = curr.bucketNext
	}

	e := &entry[V]{key: key, hash: hash, value: value, charge: charge, refCount: 1}

	if curr == nil {
		e.bucketNext = s.buckets[idx]
		s.buckets[idx] = e
		s.size++
	} else {
		e.bucketNext = curr.bucketNext
		s.removeFromList(curr)
		s.totalUsage -= curr.charge
		curr.erased = true
		if prev == nil {
			s.buckets[idx] = e
		} else {
			prev.bucketNext = e
		}
	}

	for s.totalUsage+charge > s.totalCharge && s.evictHead.listNext != s.evictTail {
		victim := s.evictHead.listNext
		s.eraseLocked(victim.key, victim.hash)
		if s.metrics != nil {
			s.metrics.incEvict(s.idx)
		}
	}

	s.appendToList(e, s.inUseTail)
	s.totalUsage += charge
	e.refCount = 2

	if s.metrics != nil {
		s.metrics.setUsage(s.idx, int64(s.totalUsage))
	}
	return &Handle[V]{e: e}
}

func (s *shard[V]) lookup(key string, hash uint32) *Handle[V] {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := int(hash % uint32(len(s.buckets)))
	curr := s.buckets[idx]
	for curr != nil {
		if curr.key == key {
			s.ref(curr)
			if s.metrics != nil {
				s.metrics.incHit(s.idx)
			}
			return &Handle[V]{e: curr}
		}
		curr = curr.bucketNext
	}
	if s.metrics != nil {
		s.metrics.incMiss(s.idx)
	}
	return nil
}

func (s *shard[V]) release(e *entry[V]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unref(e)
}

func (s *shard[V]) erase(key string, hash uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eraseLocked(key, hash)
}

func (s *shard[V]) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for curr := s.evictHead.listNext; curr != s.evictTail; {
		next := curr.listNext
		s.eraseLocked(curr.key, curr.hash)
		curr = next
	}
}

func (s *shard[V]) snapshotUsage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalUsage
}

// ref bumps refCount and, the moment it crosses from 1 (evictable) to 2
// (in-use), moves the entry to the in-use list's tail.
func (s *shard[V]) ref(e *entry[V]) {
	e.refCount++
	if e.refCount == 2 {
		s.removeFromList(e)
		s.appendToList(e, s.inUseTail)
	}
}

// unref drops refCount by one. At 1, the entry becomes evictable (moved to
// the evictable tail) unless it has already been erased from the table,
// in which case it is already detached and nothing more happens until the
// count reaches 0.
func (s *shard[V]) unref(e *entry[V]) {
	e.refCount--
	switch {
	case e.refCount == 1 && !e.erased:
		s.removeFromList(e)
		s.appendToList(e, s.evictTail)
	case e.refCount == 0:
		// Fully dead: no handle and no table slot reference it. Nothing to
		// unlink (erase already did that, or it was never linked).
	}
}

// eraseLocked unlinks key from the bucket table and whichever list it's on,
// then releases the table's own hold by decrementing refCount directly.
// If no external handle is outstanding this frees the entry immediately;
// otherwise it persists,
// reachable only through the handle(s) already issued, until the last
// Release brings refCount to 0.
func (s *shard[V]) eraseLocked(key string, hash uint32) bool {
	idx := int(hash % uint32(len(s.buckets)))
	var prev *entry[V]
	curr := s.buckets[idx]
	for curr != nil && curr.key != key {
		prev = curr
		curr = curr.bucketNext
	}
	if curr == nil {
		return false
	}
	if prev == nil {
		s.buckets[idx] = curr.bucketNext
	} else {
		prev.bucketNext = curr.bucketNext
	}
	curr.bucketNext = nil
	s.removeFromList(curr)
	s.totalUsage -= curr.charge
	s.size--
	curr.erased = true

	if s.ejectCb != nil {
		s.ejectCb(curr.key, curr.value, curr.charge)
	}

	curr.refCount--
	if s.metrics != nil {
		s.metrics.setUsage(s.idx, int64(s.totalUsage))
	}
	return true
}

func (s *shard[V]) isExpand() bool {
	return float64(s.size) > float64(len(s.buckets))*s.expandRatio
}

func (s *shard[V]) expand(newCap int) {
	newBuckets := make([]*entry[V], newCap)
	for _, head := range s.buckets {
		curr := head
		for curr != nil {
			next := curr.bucketNext
			idx := int(curr.hash % uint32(newCap))
			curr.bucketNext = newBuckets[idx]
			newBuckets[idx] = curr
			curr = next
		}
	}
	s.buckets = newBuckets
}

func (s *shard[V]) appendToList(e, tail *entry[V]) {
	prev := tail.listPrev
	e.listNext = tail
	e.listPrev = prev
	prev.listNext = e
	tail.listPrev = e
}

func (s *shard[V]) removeFromList(e *entry[V]) {
	if e.listNext == nil && e.listPrev == nil {
		return
	}
	e.listPrev.listNext = e.listNext
	e.listNext.listPrev = e.listPrev
	e.listNext = nil
	e.listPrev = nil
}
