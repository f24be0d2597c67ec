package rtree

import "github.com/tin2003tin/tagfilterdb/internal/bbox"

// Callback is invoked for every hit during a search. Returning false stops
// the traversal early (spec.md §6's "process(...) -> bool").
type Callback[P comparable] func(box *bbox.Box, data P) bool

// SearchOverlap visits every leaf entry whose box overlaps q, descending
// into a child iff the child's box overlaps q.
func (t *Tree[P]) SearchOverlap(q *bbox.Box, cb Callback[P]) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.walkOverlap(t.root, q, cb)
}

func (t *Tree[P]) walkOverlap(n *node[P], q *bbox.Box, cb Callback[P]) bool {
	for _, b := range n.branches {
		if !t.bbm.IsOverlap(b.box, q) {
			continue
		}
		if n.isLeaf() {
			if !cb(b.box, b.data) {
				return false
			}
			continue
		}
		if !t.walkOverlap(b.child, q, cb) {
			return false
		}
	}
	return true
}

// SearchContainsRange visits every leaf entry whose box contains q
// (q ⊆ leaf.box), descending into a child iff q ⊆ child.box.
func (t *Tree[P]) SearchContainsRange(q *bbox.Box, cb Callback[P]) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.walkContainsRange(t.root, q, cb)
}

func (t *Tree[P]) walkContainsRange(n *node[P], q *bbox.Box, cb Callback[P]) bool {
	for _, b := range n.branches {
		if !t.bbm.ContainsRange(b.box, q) {
			continue
		}
		if n.isLeaf() {
			if !cb(b.box, b.data) {
				return false
			}
			continue
		}
		if !t.walkContainsRange(b.child, q, cb) {
			return false
		}
	}
	return true
}

// SearchCover visits every leaf entry whose box is a subset of q
// (leaf.box ⊆ q), descending into a child iff child.box overlaps q.
func (t *Tree[P]) SearchCover(q *bbox.Box, cb Callback[P]) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.walkCover(t.root, q, cb)
}

func (t *Tree[P]) walkCover(n *node[P], q *bbox.Box, cb Callback[P]) bool {
	for _, b := range n.branches {
		if n.isLeaf() {
			if !t.bbm.ContainsRange(q, b.box) {
				continue
			}
			if !cb(b.box, b.data) {
				return false
			}
			continue
		}
		if !t.bbm.IsOverlap(b.box, q) {
			continue
		}
		if !t.walkCover(b.child, q, cb) {
			return false
		}
	}
	return true
}
