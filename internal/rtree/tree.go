package rtree

import (
	"sync"

	"github.com/tin2003tin/tagfilterdb/internal/bbox"
)

// Tree is an R*-tree over boxes of a fixed dimension (carried by bbm),
// keyed by a comparable payload type P — typically a pointer or address
// into the caller's mempool. A single reader/writer mutex guards the whole
// tree (spec.md §5: "a single reader/writer lock").
type Tree[P comparable] struct {
	mu sync.RWMutex

	bbm         *bbox.Manager
	root        *node[P]
	size        int
	maxChildren int
	minChildren int
}

// Option configures a Tree at construction.
type Option[P comparable] func(*Tree[P])

// WithChildBounds overrides the default MAX_CHILD/MIN_CHILD constants.
func WithChildBounds[P comparable](max, min int) Option[P] {
	return func(t *Tree[P]) {
		t.maxChildren = max
		t.minChildren = min
	}
}

// New constructs an empty Tree backed by bbm.
func New[P comparable](bbm *bbox.Manager, opts ...Option[P]) *Tree[P] {
	t := &Tree[P]{
		bbm:         bbm,
		maxChildren: DefaultMaxChildren,
		minChildren: DefaultMinChildren,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.root = newNode[P](0, t.maxChildren)
	return t
}

// Size returns the number of leaf entries in the tree (spec.md §9 Open
// Question: size counts leaf entries only, never internal nodes touched
// during reinsertion).
func (t *Tree[P]) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Height returns the root's height (0 for an empty or single-level tree).
func (t *Tree[P]) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.height
}

// Insert adds box/data as a new leaf entry.
func (t *Tree[P]) Insert(box *bbox.Box, data P) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := branch[P]{box: t.bbm.Copy(box), data: data}
	t.insertBranchAtHeight(b, 0)
	t.size++
}

// insertBranchAtHeight is Insert's core: it descends t.root to targetHeight,
// growing the tree upward if the root itself splits.
func (t *Tree[P]) insertBranchAtHeight(b branch[P], targetHeight int) {
	split, grew := t.insertRec(t.root, b, targetHeight)
	if !grew {
		return
	}
	newRoot := newNode[P](t.root.height+1, t.maxChildren)
	newRoot.branches = append(newRoot.branches,
		branch[P]{box: t.root.cover(t.bbm), child: t.root},
		branch[P]{box: split.cover(t.bbm), child: split},
	)
	t.root = newRoot
}

// insertRec inserts b into n (whose height must be >= targetHeight),
// returning a sibling node if n had to split, and whether n split.
func (t *Tree[P]) insertRec(n *node[P], b branch[P], targetHeight int) (*node[P], bool) {
	if n.height == targetHeight {
		return t.addBranch(n, b)
	}

	idx := t.pickBranch(n, b.box)
	child := n.branches[idx].child
	split, grew := t.insertRec(child, b, targetHeight)

	n.branches[idx].box = child.cover(t.bbm)
	if !grew {
		return nil, false
	}

	newBranch := branch[P]{box: split.cover(t.bbm), child: split}
	return t.addBranch(n, newBranch)
}

// pickBranch chooses the child branch whose enlargement to enclose box is
// smallest, breaking ties by the child's current (smaller) area.
func (t *Tree[P]) pickBranch(n *node[P], box *bbox.Box) int {
	best := -1
	var bestEnlargement, bestArea float64
	for i, b := range n.branches {
		area := t.bbm.Area(b.box)
		union := t.bbm.Union(b.box, box)
		enlargement := t.bbm.Area(union) - area
		if best == -1 || enlargement < bestEnlargement || (enlargement == bestEnlargement && area < bestArea) {
			best, bestEnlargement, bestArea = i, enlargement, area
		}
	}
	return best
}

// addBranch appends b to n if there's room, else splits n via quadratic
// seeds and returns the new sibling.
func (t *Tree[P]) addBranch(n *node[P], b branch[P]) (*node[P], bool) {
	if !n.full(t.maxChildren) {
		n.branches = append(n.branches, b)
		return nil, false
	}
	sibling := t.split(n, b)
	return sibling, true
}
