package rtree

import "github.com/tin2003tin/tagfilterdb/internal/bbox"

// Remove deletes the leaf entry matching box/data by payload identity
// (spec.md §4.7: "match by the data pointer, not by box value"). It
// reports whether an entry was removed; removal of an absent entry
// silently succeeds as a no-op (spec.md §4.7 Failure semantics).
func (t *Tree[P]) Remove(box *bbox.Box, data P) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	var reinsert []reinsertItem[P]
	removed := t.removeRec(t.root, box, data, &reinsert)
	if !removed {
		return false
	}
	t.size--

	for _, item := range reinsert {
		for _, b := range item.node.branches {
			t.insertBranchAtHeight(b, item.node.height)
		}
	}

	// Promote the only child of an internal root (spec.md §4.7).
	for !t.root.isLeaf() && len(t.root.branches) == 1 {
		t.root = t.root.branches[0].child
	}
	if !t.root.isLeaf() && len(t.root.branches) == 0 {
		t.root = newNode[P](0, t.maxChildren)
	}
	return true
}

type reinsertItem[P comparable] struct {
	node *node[P]
}

// removeRec descends n restricted to branches overlapping box; at a leaf
// it removes the branch matching data by identity. On return, any child
// that dropped below minChildren is detached and queued onto *reinsert for
// its branches to be reinserted at its own height.
func (t *Tree[P]) removeRec(n *node[P], box *bbox.Box, data P, reinsert *[]reinsertItem[P]) bool {
	if n.isLeaf() {
		for i, b := range n.branches {
			if b.data == data {
				n.branches = append(n.branches[:i], n.branches[i+1:]...)
				return true
			}
		}
		return false
	}

	for i := 0; i < len(n.branches); i++ {
		child := n.branches[i].child
		if !t.bbm.IsOverlap(n.branches[i].box, box) {
			continue
		}
		if !t.removeRec(child, box, data, reinsert) {
			continue
		}
		if len(child.branches) == 0 {
			n.branches = append(n.branches[:i], n.branches[i+1:]...)
			return true
		}
		if len(child.branches) < t.minChildren {
			n.branches = append(n.branches[:i], n.branches[i+1:]...)
			*reinsert = append(*reinsert, reinsertItem[P]{node: child})
			return true
		}
		n.branches[i].box = child.cover(t.bbm)
		return true
	}
	return false
}
