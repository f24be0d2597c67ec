// Package bbox implements N-dimensional axis-aligned bounding boxes and a
// manager that carries the shared dimension and arena, since a box by
// itself only holds a pointer to its axis array. Grounded on the
// broundingbox.h R*-tree box, credited there to github.com/nushoin/RTree.
package bbox

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/tin2003tin/tagfilterdb/internal/arena"
)

const sizeofEdge = unsafe.Sizeof(Edge{})

// bytesToEdges reinterprets an arena-owned byte slice as a []Edge of
// length n, without copying. raw must be at least n*sizeofEdge bytes and
// suitably aligned, which arena.AllocateAligned guarantees.
func bytesToEdges(raw []byte, n int) []Edge {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*Edge)(unsafe.Pointer(&raw[0])), n)
}

// Edge is a single-axis (low, high) interval, low <= high.
type Edge struct {
	Lo, Hi float64
}

// Box is an N-dimensional axis-aligned bounding box. Its axis array is
// allocated from an arena by Manager; the box does not know its own
// dimension, which is why every operation on it goes through a Manager.
type Box struct {
	axis []Edge
}

// Manager creates and operates on Boxes sharing one dimension and arena.
type Manager struct {
	dimension int
	arena     *arena.Arena
}

// NewManager returns a Manager for boxes of the given dimension,
// allocating axis arrays from a.
func NewManager(dimension int, a *arena.Arena) *Manager {
	if dimension <= 0 {
		panic("bbox: dimension must be positive")
	}
	if a == nil {
		panic("bbox: arena must not be nil")
	}
	return &Manager{dimension: dimension, arena: a}
}

// Dimension returns the manager's fixed dimension.
func (m *Manager) Dimension() int { return m.dimension }

// CreateBB allocates a zero-valued box with m.dimension axes.
func (m *Manager) CreateBB() *Box {
	raw := m.arena.AllocateAligned(m.dimension * int(sizeofEdge))
	return &Box{axis: bytesToEdges(raw, m.dimension)}
}

// CreateBBFrom allocates a box and populates it from edges, truncating if
// edges has more entries than the manager's dimension.
func (m *Manager) CreateBBFrom(edges []Edge) *Box {
	b := m.CreateBB()
	n := len(edges)
	if n > m.dimension {
		n = m.dimension
	}
	for i := 0; i < n; i++ {
		m.SetAxis(b, i, edges[i].Lo, edges[i].Hi)
	}
	return b
}

// Copy returns a new box with the same axis values as b.
func (m *Manager) Copy(b *Box) *Box {
	t := m.CreateBB()
	m.CopyTo(b, t)
	return t
}

// CopyTo copies self's axis values into other.
func (m *Manager) CopyTo(self, other *Box) {
	if self == other {
		return
	}
	copy(other.axis, self.axis)
}

// Equal reports whether self and other have identical axis values.
func (m *Manager) Equal(self, other *Box) bool {
	for i := 0; i < m.dimension; i++ {
		if self.axis[i] != other.axis[i] {
			return false
		}
	}
	return true
}

// SetAxis sets axis i's (lo, hi) interval. Returns false if the axis index
// is out of range or lo > hi.
func (m *Manager) SetAxis(b *Box, axis int, lo, hi float64) bool {
	if axis < 0 || axis >= m.dimension {
		return false
	}
	if lo > hi {
		return false
	}
	b.axis[axis] = Edge{Lo: lo, Hi: hi}
	return true
}

// Get returns axis i's edge.
func (m *Manager) Get(b *Box, axis int) Edge {
	if axis < 0 || axis >= m.dimension {
		return Edge{}
	}
	return b.axis[axis]
}

// Min returns axis i's low bound.
func (m *Manager) Min(b *Box, axis int) float64 { return m.Get(b, axis).Lo }

// Max returns axis i's high bound.
func (m *Manager) Max(b *Box, axis int) float64 { return m.Get(b, axis).Hi }

// Reset sets every axis of b to [min, max].
func (m *Manager) Reset(b *Box, min, max float64) {
	for i := 0; i < m.dimension; i++ {
		b.axis[i] = Edge{Lo: min, Hi: max}
	}
}

// Universe returns a box spanning [min, max] on every axis.
func (m *Manager) Universe(min, max float64) *Box {
	b := m.CreateBB()
	m.Reset(b, min, max)
	return b
}

// Area returns the product of each axis's (hi - lo).
func (m *Manager) Area(b *Box) float64 {
	area := 1.0
	for i := 0; i < m.dimension; i++ {
		area *= b.axis[i].Hi - b.axis[i].Lo
	}
	return area
}

// IsOverlap reports whether self and other overlap on every axis, with
// both ends open: self.lo < other.hi && other.lo < self.hi.
func (m *Manager) IsOverlap(self, other *Box) bool {
	for i := 0; i < m.dimension; i++ {
		if !(self.axis[i].Lo < other.axis[i].Hi) || !(other.axis[i].Lo < self.axis[i].Hi) {
			return false
		}
	}
	return true
}

// ContainsRange reports whether other is a subset of self: for every
// axis, self.lo <= other.lo and other.hi <= self.hi. This fixes the
// asymmetric open/closed mix in the original ContainsRange, which
// compared only against one endpoint's ordering per axis.
func (m *Manager) ContainsRange(self, other *Box) bool {
	for i := 0; i < m.dimension; i++ {
		if self.axis[i].Lo > other.axis[i].Lo || other.axis[i].Hi > self.axis[i].Hi {
			return false
		}
	}
	return true
}

// OverlapArea returns the area of self ∩ other, or 0 if they don't overlap
// on some axis.
func (m *Manager) OverlapArea(self, other *Box) float64 {
	area := 1.0
	for i := 0; i < m.dimension && area != 0; i++ {
		lo := maxF(self.axis[i].Lo, other.axis[i].Lo)
		hi := minF(self.axis[i].Hi, other.axis[i].Hi)
		if hi <= lo {
			return 0
		}
		area *= hi - lo
	}
	return area
}

// Intersection returns self ∩ other as a new box (component-wise max of
// lows, min of highs).
func (m *Manager) Intersection(self, other *Box) *Box {
	t := m.CreateBB()
	for i := 0; i < m.dimension; i++ {
		t.axis[i] = Edge{
			Lo: maxF(self.axis[i].Lo, other.axis[i].Lo),
			Hi: minF(self.axis[i].Hi, other.axis[i].Hi),
		}
	}
	return t
}

// Union returns self ∪ other as a new box (component-wise min of lows,
// max of highs).
func (m *Manager) Union(self, other *Box) *Box {
	t := m.CreateBB()
	for i := 0; i < m.dimension; i++ {
		t.axis[i] = Edge{
			Lo: minF(self.axis[i].Lo, other.axis[i].Lo),
			Hi: maxF(self.axis[i].Hi, other.axis[i].Hi),
		}
	}
	return t
}

// String renders b as "[(lo, hi), (lo, hi), ...]".
func (m *Manager) String(b *Box) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < m.dimension; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%g, %g)", b.axis[i].Lo, b.axis[i].Hi)
	}
	sb.WriteByte(']')
	return sb.String()
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
