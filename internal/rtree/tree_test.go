package rtree

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tin2003tin/tagfilterdb/internal/arena"
	"github.com/tin2003tin/tagfilterdb/internal/bbox"
)

func newTestTree(t *testing.T) (*Tree[int], *bbox.Manager) {
	t.Helper()
	bbm := bbox.NewManager(2, arena.New())
	return New[int](bbm), bbm
}

func box(bbm *bbox.Manager, x1, y1, x2, y2 float64) *bbox.Box {
	b := bbm.CreateBB()
	bbm.SetAxis(b, 0, x1, x2)
	bbm.SetAxis(b, 1, y1, y2)
	return b
}

func TestInsertThenOverlapSearchFindsEntry(t *testing.T) {
	tr, bbm := newTestTree(t)
	tr.Insert(box(bbm, 0, 0, 10, 10), 1)
	tr.Insert(box(bbm, 100, 100, 110, 110), 2)

	var hits []int
	tr.SearchOverlap(box(bbm, 5, 5, 6, 6), func(b *bbox.Box, data int) bool {
		hits = append(hits, data)
		return true
	})
	require.Equal(t, []int{1}, hits)
}

func TestSizeCountsLeafEntriesOnly(t *testing.T) {
	tr, bbm := newTestTree(t)
	for i := 0; i < 50; i++ {
		x := float64(i)
		tr.Insert(box(bbm, x, x, x+1, x+1), i)
	}
	require.Equal(t, 50, tr.Size())
	require.Greater(t, tr.Height(), 0, "50 entries at MAX_CHILDREN=8 must force internal levels")
}

func TestSplitKeepsEveryNodeWithinChildBounds(t *testing.T) {
	tr, bbm := newTestTree(t)
	for i := 0; i < 200; i++ {
		x := float64(i)
		tr.Insert(box(bbm, x, 0, x+1, 1), i)
	}
	require.Equal(t, 200, tr.Size())

	var walk func(n *node[int], isRoot bool)
	walk = func(n *node[int], isRoot bool) {
		if !isRoot {
			require.GreaterOrEqualf(t, len(n.branches), tr.minChildren, "node below MIN_CHILDREN")
		}
		require.LessOrEqualf(t, len(n.branches), tr.maxChildren, "node above MAX_CHILDREN")
		if !n.isLeaf() {
			for _, b := range n.branches {
				walk(b.child, false)
			}
		}
	}
	walk(tr.root, true)
}

// TestDiagonalInsertBalancesSplitAtSpecBounds pins spec.md §8 scenario 5:
// with MAX_CHILDREN=4, MIN_CHILDREN=2, inserting 17 non-overlapping boxes
// along a diagonal must produce a height-2 tree where every non-root node
// has between 2 and 4 children.
func TestDiagonalInsertBalancesSplitAtSpecBounds(t *testing.T) {
	bbm := bbox.NewManager(2, arena.New())
	tr := New[int](bbm, WithChildBounds[int](4, 2))

	for i := 0; i < 17; i++ {
		x := float64(i)
		tr.Insert(box(bbm, x, x, x+1, x+1), i)
	}
	require.Equal(t, 17, tr.Size())
	require.Equal(t, 2, tr.Height())

	var walk func(n *node[int], isRoot bool)
	walk = func(n *node[int], isRoot bool) {
		if !isRoot {
			require.GreaterOrEqualf(t, len(n.branches), 2, "node below MIN_CHILDREN=2")
			require.LessOrEqualf(t, len(n.branches), 4, "node above MAX_CHILDREN=4")
		}
		if !n.isLeaf() {
			for _, b := range n.branches {
				walk(b.child, false)
			}
		}
	}
	walk(tr.root, true)
}

func TestRemoveByPayloadIdentity(t *testing.T) {
	tr, bbm := newTestTree(t)
	b1 := box(bbm, 0, 0, 1, 1)
	tr.Insert(b1, 42)
	require.Equal(t, 1, tr.Size())

	ok := tr.Remove(b1, 42)
	require.True(t, ok)
	require.Equal(t, 0, tr.Size())

	var hits int
	tr.SearchOverlap(b1, func(*bbox.Box, int) bool { hits++; return true })
	require.Equal(t, 0, hits)
}

func TestRemoveOfAbsentEntryIsNoop(t *testing.T) {
	tr, bbm := newTestTree(t)
	tr.Insert(box(bbm, 0, 0, 1, 1), 1)
	ok := tr.Remove(box(bbm, 0, 0, 1, 1), 999)
	require.False(t, ok)
	require.Equal(t, 1, tr.Size())
}

func TestRemoveManyPreservesRemainingEntries(t *testing.T) {
	tr, bbm := newTestTree(t)
	boxes := make([]*bbox.Box, 0, 100)
	for i := 0; i < 100; i++ {
		x := float64(i)
		b := box(bbm, x, 0, x+1, 1)
		boxes = append(boxes, b)
		tr.Insert(b, i)
	}
	for i := 0; i < 100; i += 2 {
		require.True(t, tr.Remove(boxes[i], i))
	}
	require.Equal(t, 50, tr.Size())

	for i := 1; i < 100; i += 2 {
		var found bool
		tr.SearchOverlap(boxes[i], func(b *bbox.Box, data int) bool {
			if data == i {
				found = true
			}
			return true
		})
		require.Truef(t, found, "entry %d should survive", i)
	}
}

func TestSearchContainsRangeAndCover(t *testing.T) {
	tr, bbm := newTestTree(t)
	tr.Insert(box(bbm, 2, 2, 8, 8), 1)

	var hits int
	tr.SearchContainsRange(box(bbm, 3, 3, 5, 5), func(*bbox.Box, int) bool { hits++; return true })
	require.Equal(t, 1, hits)

	hits = 0
	tr.SearchCover(box(bbm, 0, 0, 10, 10), func(*bbox.Box, int) bool { hits++; return true })
	require.Equal(t, 1, hits)

	hits = 0
	tr.SearchCover(box(bbm, 3, 3, 5, 5), func(*bbox.Box, int) bool { hits++; return true })
	require.Equal(t, 0, hits, "leaf box is not a subset of the tiny query box")
}

func TestIteratorVisitsEveryLeaf(t *testing.T) {
	tr, bbm := newTestTree(t)
	want := map[int]bool{}
	for i := 0; i < 30; i++ {
		x := float64(i)
		tr.Insert(box(bbm, x, x, x+1, x+1), i)
		want[i] = true
	}

	it := tr.Iterate()
	got := map[int]bool{}
	for it.Next(tr) {
		got[it.Data()] = true
	}
	require.Equal(t, want, got)
}

func TestSearchStopsEarlyOnFalseReturn(t *testing.T) {
	tr, bbm := newTestTree(t)
	for i := 0; i < 10; i++ {
		x := float64(i)
		tr.Insert(box(bbm, x, x, x+1, x+1), i)
	}
	count := 0
	tr.SearchOverlap(box(bbm, -1000, -1000, 1000, 1000), func(*bbox.Box, int) bool {
		count++
		return count < 3
	})
	require.Equal(t, 3, count)
}

func TestConcurrentSearchesDoNotRace(t *testing.T) {
	tr, bbm := newTestTree(t)
	for i := 0; i < 20; i++ {
		x := float64(i)
		tr.Insert(box(bbm, x, x, x+1, x+1), i)
	}
	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func() {
			for i := 0; i < 50; i++ {
				tr.SearchOverlap(box(bbm, 0, 0, 20, 20), func(*bbox.Box, int) bool { return true })
			}
			done <- struct{}{}
		}()
	}
	for g := 0; g < 4; g++ {
		<-done
	}
}

func TestLargePopulationOverlapIsComplete(t *testing.T) {
	tr, bbm := newTestTree(t)
	n := 500
	for i := 0; i < n; i++ {
		x := float64(i % 50)
		y := float64(i / 50)
		tr.Insert(box(bbm, x, y, x+1, y+1), i)
	}
	hits := map[int]bool{}
	tr.SearchOverlap(box(bbm, 0, 0, 50, 10), func(b *bbox.Box, data int) bool {
		hits[data] = true
		return true
	})
	require.Len(t, hits, n, fmt.Sprintf("expected all %d entries within the query box", n))
}
