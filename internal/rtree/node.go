// Package rtree implements the R*-tree spatial index described in
// spec.md §4.7: N-dimensional bounding-box branches, quadratic-seed split,
// reinsertion on underflow, and three search variants. Grounded on
// original_source/include/tagfilterdb/spatialIndex.h (itself credited
// there to github.com/nushoin/RTree), generalized from that file's
// SignableData* payload into a generic, comparable payload type so the
// tree doesn't need to import the mempool package it feeds.
package rtree

import "github.com/tin2003tin/tagfilterdb/internal/bbox"

// DefaultMaxChildren and DefaultMinChildren are spec.md §4.7's constants.
const (
	DefaultMaxChildren = 8
	DefaultMinChildren = DefaultMaxChildren / 2
)

// branch is one entry of a node: a bounding box, an optional child (nil at
// leaves), and a payload (nil/zero at internal nodes).
type branch[P comparable] struct {
	box   *bbox.Box
	child *node[P]
	data  P
}

// node is an internal-or-leaf R-tree node. height == 0 iff it's a leaf
// (spec.md §3 R-tree node invariant i).
type node[P comparable] struct {
	height   int
	branches []branch[P]
}

func newNode[P comparable](height, maxChildren int) *node[P] {
	return &node[P]{height: height, branches: make([]branch[P], 0, maxChildren)}
}

func (n *node[P]) isLeaf() bool { return n.height == 0 }

func (n *node[P]) full(maxChildren int) bool { return len(n.branches) >= maxChildren }

// cover returns the union of every branch's box.
func (n *node[P]) cover(bbm *bbox.Manager) *bbox.Box {
	if len(n.branches) == 0 {
		return bbm.CreateBB()
	}
	box := bbm.Copy(n.branches[0].box)
	for _, b := range n.branches[1:] {
		box = bbm.Union(box, b.box)
	}
	return box
}
