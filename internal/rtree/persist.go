package rtree

// persist.go serializes the tree breadth-first into fixed-size-slot pages
// (spec.md §4.7/§6): slot layout per node is
// height(4) | child_count(4) | [(box, child_page, child_offset) x MAX_CHILDREN].
// A slot does not store its own page id or offset; a node's location is
// known only from its parent's child_page/child_offset (or, for the root,
// from the location Save returns). The root is placed in slot 0 of page 1.
// In a leaf, the child_page/child_offset fields hold the (page, offset)
// pair PayloadCodec resolves the branch's payload to — by the time the tree
// is saved, the mempool has flushed every branch's data to a signed
// BlockAddress, so those fields address heap blocks, not fixedpage slots.

import (
	"encoding/binary"
	"math"

	"github.com/tin2003tin/tagfilterdb/internal/bbox"
	"github.com/tin2003tin/tagfilterdb/internal/errs"
	"github.com/tin2003tin/tagfilterdb/internal/fixedpage"
)

// PayloadCodec converts a tree's payload type to and from the (page,
// offset) pair spec.md §4.7 persists inline in each slot.
type PayloadCodec[P comparable] interface {
	Encode(P) (pageID int64, offset int32)
	Decode(pageID int64, offset int32) P
}

// SlotSize returns the exact byte size of one serialized node for the
// given dimension and branch fan-out, so callers can size the
// fixedpage.Manager's block size to match before calling Save/Load.
func SlotSize(dimension, maxChildren int) int {
	entrySize := 8 + 4 + dimension*16
	return 4 + 4 + maxChildren*entrySize
}

// Save serializes the tree breadth-first starting at page 1, slot 0, and
// returns the root's (page, offset) location for the file header (spec.md
// §6's "root_page_id | root_offset").
func (t *Tree[P]) Save(fpm *fixedpage.Manager, codec PayloadCodec[P]) (fixedpage.PageID, int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type queued struct {
		n      *node[P]
		page   fixedpage.PageID
		offset int
	}

	rootPage, rootOffset, err := fpm.Assign(1)
	if err != nil {
		return 0, 0, err
	}
	queue := []queued{{n: t.root, page: rootPage, offset: rootOffset}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		childLocs := make([]fixedpage.PageID, len(cur.n.branches))
		childOffs := make([]int, len(cur.n.branches))
		if !cur.n.isLeaf() {
			for i, b := range cur.n.branches {
				pg, off, err := fpm.Assign(1)
				if err != nil {
					return 0, 0, err
				}
				childLocs[i] = pg
				childOffs[i] = off
				queue = append(queue, queued{n: b.child, page: pg, offset: off})
			}
		}

		buf := t.encodeSlot(cur.n, childLocs, childOffs, codec)
		page, ok := fpm.GetPage(cur.page)
		if !ok {
			return 0, 0, errs.New(errs.Corruption, "rtree: assigned page missing")
		}
		if err := page.Write(cur.offset, buf); err != nil {
			return 0, 0, err
		}
	}

	return rootPage, rootOffset, nil
}

func (t *Tree[P]) encodeSlot(n *node[P], childPages []fixedpage.PageID, childOffsets []int, codec PayloadCodec[P]) []byte {
	dim := t.bbm.Dimension()
	entrySize := 8 + 4 + dim*16 // child page(8) + child offset(4) + dim*(lo,hi float64)
	buf := make([]byte, 4+4+t.maxChildren*entrySize)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(int32(n.height)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(n.branches)))

	off := 8
	for i := 0; i < t.maxChildren; i++ {
		if i >= len(n.branches) {
			off += entrySize
			continue
		}
		b := n.branches[i]
		for d := 0; d < dim; d++ {
			e := t.bbm.Get(b.box, d)
			binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(e.Lo))
			binary.LittleEndian.PutUint64(buf[off+8:off+16], math.Float64bits(e.Hi))
			off += 16
		}
		if n.isLeaf() {
			pageID, offset := codec.Encode(b.data)
			binary.LittleEndian.PutUint64(buf[off:off+8], uint64(pageID))
			binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(offset))
		} else {
			binary.LittleEndian.PutUint64(buf[off:off+8], uint64(childPages[i]))
			binary.LittleEndian.PutUint32(buf[off+8:off+12], uint32(childOffsets[i]))
		}
		off += 12
	}
	return buf
}

// Load reconstructs a tree from a file previously written by Save, given
// the root's (page, offset) location from the file header.
func Load[P comparable](fpm *fixedpage.Manager, bbm *bbox.Manager, codec PayloadCodec[P], rootPage fixedpage.PageID, rootOffset int, maxChildren, minChildren int) (*Tree[P], error) {
	t := &Tree[P]{bbm: bbm, maxChildren: maxChildren, minChildren: minChildren}
	root, size, err := t.loadNode(fpm, codec, rootPage, rootOffset)
	if err != nil {
		return nil, err
	}
	t.root = root
	t.size = size
	return t, nil
}

func (t *Tree[P]) loadNode(fpm *fixedpage.Manager, codec PayloadCodec[P], pageID fixedpage.PageID, offset int) (*node[P], int, error) {
	page, ok := fpm.GetPage(pageID)
	if !ok {
		return nil, 0, errs.New(errs.Corruption, "rtree: missing page on load")
	}
	dim := t.bbm.Dimension()
	entrySize := 8 + 4 + dim*16
	buf, err := page.Read(offset, 8+t.maxChildren*entrySize)
	if err != nil {
		return nil, 0, err
	}

	height := int(int32(binary.LittleEndian.Uint32(buf[0:4])))
	childCount := int(binary.LittleEndian.Uint32(buf[4:8]))

	n := newNode[P](height, t.maxChildren)
	total := 0
	off := 8
	for i := 0; i < childCount; i++ {
		box := t.bbm.CreateBB()
		for d := 0; d < dim; d++ {
			lo := math.Float64frombits(binary.LittleEndian.Uint64(buf[off : off+8]))
			hi := math.Float64frombits(binary.LittleEndian.Uint64(buf[off+8 : off+16]))
			t.bbm.SetAxis(box, d, lo, hi)
			off += 16
		}
		pageRef := int64(binary.LittleEndian.Uint64(buf[off : off+8]))
		offRef := int32(binary.LittleEndian.Uint32(buf[off+8 : off+12]))
		off += 12

		if height == 0 {
			n.branches = append(n.branches, branch[P]{box: box, data: codec.Decode(pageRef, offRef)})
			total++
		} else {
			child, childTotal, err := t.loadNode(fpm, codec, fixedpage.PageID(pageRef), int(offRef))
			if err != nil {
				return nil, 0, err
			}
			n.branches = append(n.branches, branch[P]{box: box, child: child})
			total += childTotal
		}
	}
	return n, total, nil
}
