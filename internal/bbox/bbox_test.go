package bbox

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tin2003tin/tagfilterdb/internal/arena"
)

func newManager(t *testing.T, dim int) *Manager {
	t.Helper()
	return NewManager(dim, arena.New())
}

func TestSetAxisRejectsInverted(t *testing.T) {
	m := newManager(t, 2)
	b := m.CreateBB()
	require.False(t, m.SetAxis(b, 0, 5, 1))
	require.True(t, m.SetAxis(b, 0, 1, 5))
}

func TestAreaAndUnion(t *testing.T) {
	m := newManager(t, 2)
	a := m.CreateBBFrom([]Edge{{0, 1}, {0, 1}})
	b := m.CreateBBFrom([]Edge{{1, 2}, {1, 2}})

	require.Equal(t, 1.0, m.Area(a))

	u := m.Union(a, b)
	require.Equal(t, Edge{0, 2}, m.Get(u, 0))
	require.Equal(t, 4.0, m.Area(u))
}

func TestIsOverlapOpenBothEnds(t *testing.T) {
	m := newManager(t, 1)
	a := m.CreateBBFrom([]Edge{{0, 1}})
	touching := m.CreateBBFrom([]Edge{{1, 2}})
	overlapping := m.CreateBBFrom([]Edge{{0.5, 1.5}})

	require.False(t, m.IsOverlap(a, touching))
	require.True(t, m.IsOverlap(a, overlapping))
}

func TestContainsRangeSymmetricConvention(t *testing.T) {
	m := newManager(t, 1)
	outer := m.CreateBBFrom([]Edge{{0, 10}})
	inner := m.CreateBBFrom([]Edge{{2, 8}})
	partial := m.CreateBBFrom([]Edge{{-1, 8}})

	require.True(t, m.ContainsRange(outer, inner))
	require.False(t, m.ContainsRange(outer, partial))
	require.False(t, m.ContainsRange(inner, outer))
}

func TestIntersection(t *testing.T) {
	m := newManager(t, 1)
	a := m.CreateBBFrom([]Edge{{0, 5}})
	b := m.CreateBBFrom([]Edge{{3, 8}})
	i := m.Intersection(a, b)
	require.Equal(t, Edge{3, 5}, m.Get(i, 0))
}

func TestCopyIsIndependent(t *testing.T) {
	m := newManager(t, 1)
	a := m.CreateBBFrom([]Edge{{0, 1}})
	b := m.Copy(a)
	m.SetAxis(b, 0, 9, 9)
	require.NotEqual(t, m.Get(a, 0), m.Get(b, 0))
}
