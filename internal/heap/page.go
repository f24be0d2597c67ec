// Package heap implements the paged heap described in spec.md §4.4/§4.5: a
// variable-length record store over fixed-capacity pages, each with an
// intra-page free list of holes, spanning ("append") records that continue
// into the next page, and on-demand compaction. Grounded on
// original_source/include/tagfilterdb/pageH.h's PageHeap/PageHeapManager,
// adapted from its linked-list free list into a sorted slice — Go has no
// equivalent of the original's hand-rolled intrusive doubly-linked FreeList,
// and a slice keeps the disjoint/sorted/merge-on-free invariants (spec.md §3)
// easy to state and check directly.
package heap

import (
	"encoding/binary"

	"github.com/tin2003tin/tagfilterdb/internal/errs"
)

// PageID is a 1-based heap page identifier.
type PageID int64

// BlockAddress locates a record's head block: page id plus byte offset
// within that page's data region (spec.md §3).
type BlockAddress struct {
	PageID PageID
	Offset int32
}

// IsZero reports whether addr is the zero address (page id 0), which
// signals "no persistent location yet" to callers such as the mempool.
func (a BlockAddress) IsZero() bool { return a.PageID == 0 }

// headerSize is the on-disk block header: a liveness flag, an append-chain
// flag, and a 4-byte payload length (spec.md §3: "flag:1 | is_append:1 |
// size:i32").
const headerSize = 1 + 1 + 4

// hole is one entry of a page's explicit free list: bytes in
// [Offset, Offset+Size) are free and not part of the page's untouched tail
// frontier (that frontier is tracked separately via lastOffset).
type hole struct {
	Offset int32
	Size   int32
}

// Page is one fixed-capacity heap page.
type Page struct {
	id         PageID
	data       []byte
	capacity   int32
	lastOffset int32
	freeList   []hole
	usedSpace  int32
	blockCount int32
}

// NewPage allocates an empty page of the given id and total byte capacity.
func NewPage(id PageID, maxPageBytes int) *Page {
	capacity := int32(maxPageBytes)
	return &Page{
		id:       id,
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// ID returns the page's identifier.
func (p *Page) ID() PageID { return p.id }

// Capacity returns the data region's byte capacity (EndOfData in spec.md §4.4).
func (p *Page) Capacity() int32 { return p.capacity }

// IsFull reports whether the page has essentially no room left for another
// block, mirroring pageH.h's isFull MIN_SIZE guard.
func (p *Page) IsFull() bool {
	const minBlockSize = headerSize + 1
	return p.capacity-p.lastOffset < minBlockSize && len(p.freeList) == 0
}

// FindFreeHole returns the offset of the first explicit hole large enough to
// hold blockSize bytes; if none fits, it returns the page's implicit tail
// frontier, whose size is capacity-lastOffset (possibly 0 if the page is
// full). isTail distinguishes the two cases for Place.
func (p *Page) FindFreeHole(blockSize int32) (offset int32, isTail bool) {
	for _, h := range p.freeList {
		if h.Size >= blockSize {
			return h.Offset, false
		}
	}
	return p.lastOffset, true
}

// TailRoom returns the number of free bytes in the page's untouched tail
// frontier.
func (p *Page) TailRoom() int32 { return p.capacity - p.lastOffset }

// Place writes a block (header + payload, already encoded by the caller)
// at offset, consuming the hole FindFreeHole returned for it.
func (p *Page) Place(offset int32, isTail bool, block []byte) error {
	blockSize := int32(len(block))
	if offset < 0 || offset+blockSize > p.capacity {
		return errs.New(errs.OutOfRange, "heap: block does not fit in page")
	}
	copy(p.data[offset:offset+blockSize], block)
	p.usedSpace += blockSize
	p.blockCount++

	if isTail {
		p.lastOffset += blockSize
		return nil
	}

	for i := range p.freeList {
		if p.freeList[i].Offset != offset {
			continue
		}
		if p.freeList[i].Size == blockSize {
			p.freeList = append(p.freeList[:i], p.freeList[i+1:]...)
		} else {
			p.freeList[i].Offset += blockSize
			p.freeList[i].Size -= blockSize
		}
		return nil
	}
	return errs.New(errs.Corruption, "heap: no matching hole at offset")
}

// Free releases the blockSize bytes at offset back to the page, clearing the
// block's liveness flag, merging the new hole with an adjacent predecessor
// and/or successor (spec.md §4.4), and retracting lastOffset if the merged
// hole reaches the tail frontier.
func (p *Page) Free(offset, blockSize int32) error {
	if offset < 0 || offset+blockSize > p.capacity {
		return errs.New(errs.OutOfRange, "heap: free offset out of range")
	}
	p.usedSpace -= blockSize
	p.blockCount--
	p.data[offset] = 0

	h := hole{Offset: offset, Size: blockSize}

	insertAt := len(p.freeList)
	for i, existing := range p.freeList {
		if existing.Offset > h.Offset {
			insertAt = i
			break
		}
	}
	p.freeList = append(p.freeList, hole{})
	copy(p.freeList[insertAt+1:], p.freeList[insertAt:])
	p.freeList[insertAt] = h

	// Merge with predecessor.
	if insertAt > 0 && p.freeList[insertAt-1].Offset+p.freeList[insertAt-1].Size == p.freeList[insertAt].Offset {
		p.freeList[insertAt-1].Size += p.freeList[insertAt].Size
		p.freeList = append(p.freeList[:insertAt], p.freeList[insertAt+1:]...)
		insertAt--
	}
	// Merge with successor.
	if insertAt+1 < len(p.freeList) && p.freeList[insertAt].Offset+p.freeList[insertAt].Size == p.freeList[insertAt+1].Offset {
		p.freeList[insertAt].Size += p.freeList[insertAt+1].Size
		p.freeList = append(p.freeList[:insertAt+1], p.freeList[insertAt+2:]...)
	}

	merged := p.freeList[insertAt]
	if merged.Offset+merged.Size == p.lastOffset {
		p.lastOffset = merged.Offset
		p.freeList = append(p.freeList[:insertAt], p.freeList[insertAt+1:]...)
	}
	return nil
}

// EncodeBlock serializes a block header (liveness, append-chain flag,
// payload length) followed by payload.
func EncodeBlock(isAppend bool, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	out[0] = 1 // live
	if isAppend {
		out[1] = 1
	}
	binary.LittleEndian.PutUint32(out[2:6], uint32(len(payload)))
	copy(out[6:], payload)
	return out
}

// DecodeBlockHeader reads a block's header at the page's data offset.
func (p *Page) DecodeBlockHeader(offset int32) (assigned, isAppend bool, size int32, err error) {
	if offset < 0 || int(offset)+headerSize > len(p.data) {
		return false, false, 0, errs.New(errs.OutOfRange, "heap: header read out of range")
	}
	buf := p.data[offset : offset+headerSize]
	assigned = buf[0] == 1
	isAppend = buf[1] == 1
	size = int32(binary.LittleEndian.Uint32(buf[2:6]))
	return assigned, isAppend, size, nil
}

// Payload returns the size-byte payload stored after the header at offset.
func (p *Page) Payload(offset, size int32) ([]byte, error) {
	start := offset + headerSize
	if start < 0 || int(start+size) > len(p.data) {
		return nil, errs.New(errs.OutOfRange, "heap: payload read out of range")
	}
	out := make([]byte, size)
	copy(out, p.data[start:start+size])
	return out, nil
}

// UsedSpace returns Σ block_sizes currently live on the page (spec.md §3
// invariant 3).
func (p *Page) UsedSpace() int32 { return p.usedSpace }

// BlockCount returns the number of live blocks on the page.
func (p *Page) BlockCount() int32 { return p.blockCount }

// FreeListLen returns the number of explicit holes tracked on the page,
// used by the manager to decide when a page is a stress-compaction
// candidate (spec.md §4.5).
func (p *Page) FreeListLen() int { return len(p.freeList) }

// LastOffset returns the page's used/touched high-water mark.
func (p *Page) LastOffset() int32 { return p.lastOffset }

// NextLiveOffset scans forward from offset (inclusive) for the next live
// block, skipping any explicit holes that start there, returning -1 if none
// remains before lastOffset. Used to walk live blocks in address order
// during compaction.
func (p *Page) NextLiveOffset(offset int32) int32 {
	next := offset
	for {
		skipped := false
		for _, h := range p.freeList {
			if h.Offset == next {
				next += h.Size
				skipped = true
				break
			}
		}
		if !skipped {
			break
		}
	}
	if next >= p.lastOffset {
		return -1
	}
	return next
}

// FirstLiveOffset returns the first live block's offset, or -1 if the page
// holds no live blocks.
func (p *Page) FirstLiveOffset() int32 {
	if p.lastOffset == 0 {
		return -1
	}
	return p.NextLiveOffset(0)
}
