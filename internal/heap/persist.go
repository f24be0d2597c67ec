package heap

// persist.go implements the paged-heap file format of spec.md §6: a
// `last_page_id: u64` header followed by each page's image (metadata
// region then data region), little-endian throughout. Per-page checksums
// are a supplemented feature (SPEC_FULL.md's "analogous per-page checksum
// for the paged heap file") grounded on the fixed page's
// ComputeChecksum/ValidateChecksum (original page.h).

import (
	"encoding/binary"
	"hash/fnv"
	"io"

	"github.com/tin2003tin/tagfilterdb/internal/errs"
)

// Serialize encodes the page's metadata (capacity, lastOffset, free list,
// usedSpace, blockCount) and a checksum of the data region, followed by
// the raw data region itself.
func (p *Page) Serialize() []byte {
	buf := make([]byte, 0, 28+len(p.freeList)*8+int(p.capacity))
	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:], uint64(p.id))
	buf = append(buf, scratch[:8]...)
	binary.LittleEndian.PutUint32(scratch[:4], uint32(p.capacity))
	buf = append(buf, scratch[:4]...)
	binary.LittleEndian.PutUint32(scratch[:4], uint32(p.lastOffset))
	buf = append(buf, scratch[:4]...)
	binary.LittleEndian.PutUint32(scratch[:4], uint32(p.usedSpace))
	buf = append(buf, scratch[:4]...)
	binary.LittleEndian.PutUint32(scratch[:4], uint32(p.blockCount))
	buf = append(buf, scratch[:4]...)
	binary.LittleEndian.PutUint32(scratch[:4], uint32(len(p.freeList)))
	buf = append(buf, scratch[:4]...)
	for _, h := range p.freeList {
		binary.LittleEndian.PutUint32(scratch[:4], uint32(h.Offset))
		buf = append(buf, scratch[:4]...)
		binary.LittleEndian.PutUint32(scratch[:4], uint32(h.Size))
		buf = append(buf, scratch[:4]...)
	}

	checksum := checksumOf(p.data)
	binary.LittleEndian.PutUint32(scratch[:4], checksum)
	buf = append(buf, scratch[:4]...)

	buf = append(buf, p.data...)
	return buf
}

func checksumOf(data []byte) uint32 {
	h := fnv.New32a()
	h.Write(data)
	return h.Sum32()
}

// DeserializePage decodes a page previously written by Serialize,
// returning the number of bytes consumed from buf.
func DeserializePage(buf []byte) (*Page, int, error) {
	if len(buf) < 28 {
		return nil, 0, errs.New(errs.Corruption, "heap: truncated page header")
	}
	off := 0
	id := PageID(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	capacity := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	lastOffset := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	usedSpace := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	blockCount := int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	freeCount := int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4

	freeList := make([]hole, freeCount)
	for i := 0; i < freeCount; i++ {
		if len(buf) < off+8 {
			return nil, 0, errs.New(errs.Corruption, "heap: truncated free list")
		}
		freeList[i] = hole{
			Offset: int32(binary.LittleEndian.Uint32(buf[off:])),
			Size:   int32(binary.LittleEndian.Uint32(buf[off+4:])),
		}
		off += 8
	}

	if len(buf) < off+4 {
		return nil, 0, errs.New(errs.Corruption, "heap: truncated checksum")
	}
	wantChecksum := binary.LittleEndian.Uint32(buf[off:])
	off += 4

	if len(buf) < off+int(capacity) {
		return nil, 0, errs.New(errs.Corruption, "heap: truncated data region")
	}
	data := make([]byte, capacity)
	copy(data, buf[off:off+int(capacity)])
	off += int(capacity)

	if checksumOf(data) != wantChecksum {
		return nil, 0, errs.New(errs.Corruption, "heap: page checksum mismatch")
	}

	p := &Page{
		id:         id,
		data:       data,
		capacity:   capacity,
		lastOffset: lastOffset,
		freeList:   freeList,
		usedSpace:  usedSpace,
		blockCount: blockCount,
	}
	return p, off, nil
}

// Save writes the paged-heap file format of spec.md §6 to w: a
// last_page_id header followed by every page's image in order.
func (m *Manager) Save(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(m.lastPageID()))
	if _, err := w.Write(scratch[:]); err != nil {
		return errs.Wrap(errs.IOError, err, "heap: writing file header")
	}

	for _, id := range m.order {
		p := m.pages[id]
		if _, err := w.Write(p.Serialize()); err != nil {
			return errs.Wrap(errs.IOError, err, "heap: writing page")
		}
	}
	return nil
}

// Load replaces the Manager's page set by decoding buf in the format Save
// wrote (original memtable.h's MemPool.manager_.Load()). Callers must not
// have acquired any cache handles on this Manager yet — Load swaps the
// underlying *Page values wholesale, and a warm cache entry would keep
// pointing at a stale page.
func (m *Manager) Load(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(buf) < 8 {
		return errs.New(errs.Corruption, "heap: truncated file header")
	}
	lastPageID := PageID(binary.LittleEndian.Uint64(buf))
	off := 8

	pages := make(map[PageID]*Page)
	var order []PageID
	for id := PageID(1); id <= lastPageID; id++ {
		p, n, err := DeserializePage(buf[off:])
		if err != nil {
			return err
		}
		pages[p.id] = p
		order = append(order, p.id)
		off += n
	}

	m.pages = pages
	m.order = order
	return nil
}
