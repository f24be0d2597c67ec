package rtree

// split.go implements the quadratic-seed split algorithm of spec.md §4.7:
// gather overflow entries, pick the two seeds maximizing "waste", then
// greedily assign the rest by largest growth-difference, forcing the
// remainder into one group once the other hits its floor.

import "github.com/tin2003tin/tagfilterdb/internal/bbox"

// split partitions n's branches plus the overflowing b into two groups,
// refills n with one group, and returns a fresh node holding the other.
func (t *Tree[P]) split(n *node[P], b branch[P]) *node[P] {
	all := make([]branch[P], 0, len(n.branches)+1)
	all = append(all, n.branches...)
	all = append(all, b)

	seedA, seedB := t.pickSeeds(all)

	groupA := []branch[P]{all[seedA]}
	groupB := []branch[P]{all[seedB]}
	boxA := t.bbm.Copy(all[seedA].box)
	boxB := t.bbm.Copy(all[seedB].box)

	assigned := make([]bool, len(all))
	assigned[seedA] = true
	assigned[seedB] = true
	remaining := len(all) - 2

	for remaining > 0 {
		if len(groupA)+remaining <= t.minChildren {
			groupA, boxA = t.assignAll(groupA, boxA, all, assigned)
			remaining = 0
			break
		}
		if len(groupB)+remaining <= t.minChildren {
			groupB, boxB = t.assignAll(groupB, boxB, all, assigned)
			remaining = 0
			break
		}

		idx, toA := t.pickNext(all, assigned, boxA, boxB, len(groupA), len(groupB))
		assigned[idx] = true
		remaining--
		if toA {
			groupA = append(groupA, all[idx])
			boxA = t.bbm.Union(boxA, all[idx].box)
		} else {
			groupB = append(groupB, all[idx])
			boxB = t.bbm.Union(boxB, all[idx].box)
		}
	}

	n.branches = n.branches[:0]
	n.branches = append(n.branches, groupA...)
	sibling := newNode[P](n.height, t.maxChildren)
	sibling.branches = append(sibling.branches, groupB...)
	return sibling
}

// assignAll dumps every still-unassigned entry into group, used once one
// group has shrunk remaining down to exactly fill the other to MIN_CHILD.
func (t *Tree[P]) assignAll(group []branch[P], box *bbox.Box, all []branch[P], assigned []bool) ([]branch[P], *bbox.Box) {
	for i, a := range assigned {
		if a {
			continue
		}
		assigned[i] = true
		group = append(group, all[i])
		box = t.bbm.Union(box, all[i].box)
	}
	return group, box
}

// pickSeeds returns the two entries maximizing waste =
// area(union(i,j)) - area(i) - area(j).
func (t *Tree[P]) pickSeeds(all []branch[P]) (int, int) {
	bestI, bestJ := 0, 1
	bestWaste := -1.0
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			union := t.bbm.Union(all[i].box, all[j].box)
			waste := t.bbm.Area(union) - t.bbm.Area(all[i].box) - t.bbm.Area(all[j].box)
			if waste > bestWaste {
				bestWaste, bestI, bestJ = waste, i, j
			}
		}
	}
	return bestI, bestJ
}

// pickNext chooses the unassigned entry with the largest difference in
// enlargement between the two groups' current boxes, assigning it to
// whichever group would grow less. Ties on that difference are broken by
// assigning to the group with smaller current cardinality (spec.md §4.7;
// matches SplitNode's assignment loop in
// original_source/include/tagfilterdb/spatialIndex/spatialIndex.cpp).
func (t *Tree[P]) pickNext(all []branch[P], assigned []bool, boxA, boxB *bbox.Box, countA, countB int) (int, bool) {
	bestIdx := -1
	var bestDiff float64
	bestToA := true
	for i, a := range assigned {
		if a {
			continue
		}
		ga := t.bbm.Area(t.bbm.Union(boxA, all[i].box)) - t.bbm.Area(boxA)
		gb := t.bbm.Area(t.bbm.Union(boxB, all[i].box)) - t.bbm.Area(boxB)
		diff := gb - ga
		toA := true
		if diff < 0 {
			toA = false
			diff = -diff
		}

		if bestIdx == -1 || diff > bestDiff {
			bestIdx, bestDiff, bestToA = i, diff, toA
			continue
		}
		if diff == bestDiff {
			count, bestCount := countA, countA
			if !toA {
				count = countB
			}
			if !bestToA {
				bestCount = countB
			}
			if count < bestCount {
				bestIdx, bestToA = i, toA
			}
		}
	}
	return bestIdx, bestToA
}
