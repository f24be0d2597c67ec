package rtree

import "github.com/tin2003tin/tagfilterdb/internal/bbox"

// Iterator performs a depth-first walk over every leaf entry, a
// supplemented feature (SPEC_FULL.md "Supplemented features") the
// distilled spec.md only implies via its three search callbacks; Iterator
// gives callers a pull-based alternative when a push callback doesn't fit
// (e.g. driving a for-range-shaped scan during Flush-time rewrites).
type Iterator[P comparable] struct {
	stack []frame[P]
	box   *bbox.Box
	data  P
	done  bool
}

type frame[P comparable] struct {
	n   *node[P]
	idx int
}

// Iterate returns a fresh Iterator positioned before the first leaf entry.
// The tree's read lock is held for the iterator's lifetime; callers must
// not mutate the tree while iterating and should discard the iterator
// promptly. On an empty tree the lock is released before Iterate returns.
func (t *Tree[P]) Iterate() *Iterator[P] {
	t.mu.RLock()
	it := &Iterator[P]{}
	if len(t.root.branches) > 0 {
		it.stack = append(it.stack, frame[P]{n: t.root, idx: 0})
	} else {
		it.done = true
		t.mu.RUnlock()
	}
	return it
}

// closeIterator releases the tree's read lock the iterator was holding.
func (t *Tree[P]) closeIterator() {
	t.mu.RUnlock()
}

// Next advances to the next leaf entry, returning false once exhausted.
func (it *Iterator[P]) Next(t *Tree[P]) bool {
	if it.done {
		return false
	}
	for len(it.stack) > 0 {
		top := &it.stack[len(it.stack)-1]
		if top.idx >= len(top.n.branches) {
			it.stack = it.stack[:len(it.stack)-1]
			continue
		}
		b := top.n.branches[top.idx]
		top.idx++
		if top.n.isLeaf() {
			it.box, it.data = b.box, b.data
			return true
		}
		it.stack = append(it.stack, frame[P]{n: b.child, idx: 0})
	}
	it.done = true
	t.closeIterator()
	return false
}

// Box returns the current leaf entry's box.
func (it *Iterator[P]) Box() *bbox.Box { return it.box }

// Data returns the current leaf entry's payload.
func (it *Iterator[P]) Data() P { return it.data }

// Stop releases the iterator's hold on the tree's read lock without
// exhausting it; callers that break out of an iteration loop early must
// call Stop.
func (it *Iterator[P]) Stop(t *Tree[P]) {
	if !it.done {
		it.done = true
		t.closeIterator()
	}
}
