// Package arena implements a region-based bump allocator: a sequence of
// byte chunks from which callers carve aligned allocations, with a single
// deallocation point. It is the lifetime anchor for spatial-index nodes,
// bounding boxes, and mempool records — anything that must survive for as
// long as the owning memtable does, without individual frees.
//
// Arena is not safe for concurrent use; the memtable serializes access to
// it under its own lock (see the root package).
//
// © 2025 tagfilterdb authors. MIT License.
package arena

import (
	"unsafe"

	"github.com/tin2003tin/tagfilterdb/internal/unsafehelpers"
)

const (
	// chunkSize is the size of a fresh chunk grabbed when the current one
	// cannot satisfy a request.
	chunkSize = 4096
	// largeAllocThreshold is the size at or above which a request bypasses the
	// current chunk entirely and gets its own exclusively-owned chunk.
	largeAllocThreshold = 1024
)

var ptrAlign = unsafe.Sizeof(uintptr(0))

// Arena is a bump allocator over a growing set of byte chunks.
type Arena struct {
	chunks   [][]byte // every chunk ever allocated, for MemoryUsage and Free
	cur      []byte   // current chunk, sliced down as it fills
	used     int       // bytes carved out of cur so far
	totalLen int       // sum of len(chunk) for every chunk, i.e. live usage
}

// New returns an empty arena ready for allocations.
func New() *Arena {
	return &Arena{}
}

// AllocateAligned returns n bytes aligned to the platform pointer alignment.
// Requests of at least largeAllocThreshold bytes get their own chunk;
// smaller requests are carved from the current chunk, grabbing a fresh
// chunkSize-byte chunk when the current one cannot satisfy the (aligned)
// request.
func (a *Arena) AllocateAligned(n int) []byte {
	if n < 0 {
		panic("arena: negative allocation size")
	}
	if n == 0 {
		return nil
	}
	aligned := int(unsafehelpers.AlignUp(uintptr(n), ptrAlign))

	if n >= largeAllocThreshold {
		chunk := make([]byte, aligned)
		a.chunks = append(a.chunks, chunk)
		a.totalLen += len(chunk)
		return chunk[:n]
	}

	if a.used+aligned > len(a.cur) {
		a.cur = make([]byte, chunkSize)
		a.chunks = append(a.chunks, a.cur)
		a.totalLen += len(a.cur)
		a.used = 0
	}
	b := a.cur[a.used : a.used+n : a.used+aligned]
	a.used += aligned
	return b
}

// AllocateBytes copies src into a fresh aligned allocation and returns it.
func (a *Arena) AllocateBytes(src []byte) []byte {
	dst := a.AllocateAligned(len(src))
	copy(dst, src)
	return dst
}

// AllocateString is AllocateBytes for a string, returned as a zero-copy
// string view over the arena-owned bytes.
func (a *Arena) AllocateString(s string) string {
	dst := a.AllocateBytes(unsafehelpers.StringToBytes(s))
	return unsafehelpers.BytesToString(dst)
}

// MemoryUsage reports the total number of bytes allocated by the arena
// across all chunks, including oversized single-allocation chunks.
func (a *Arena) MemoryUsage() int {
	return a.totalLen
}

// Free releases every chunk owned by the arena. Pointers into
// arena-allocated memory become invalid; callers must not dereference them
// after Free returns.
func (a *Arena) Free() {
	a.chunks = nil
	a.cur = nil
	a.used = 0
	a.totalLen = 0
}
