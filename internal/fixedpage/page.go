// Package fixedpage implements the fixed-size-slot page described in
// spec.md §4.3: a page of uniformly-sized blocks tracked by a bitmap, used
// to persist the R*-tree's breadth-first node layout (spec.md §4.7).
// Grounded on original_source/include/tagfilterdb/page.h's PageNode and
// PageNodeManager; the checksum field and its validation are a supplemented
// feature (SPEC_FULL.md "Supplemented features" #2), since page.h computes
// one but the distilled spec.md never mentions it.
package fixedpage

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/tin2003tin/tagfilterdb/internal/bitset"
	"github.com/tin2003tin/tagfilterdb/internal/errs"
)

// PageID is a 1-based page identifier.
type PageID int64

// minimumPageBytes is the floor applied to a manager's configured page
// capacity, matching page.h's MINIMUM_FILE_BYTES guard.
const minimumPageBytes = 512

// Page holds maxBlocks fixed-size slots plus a bitmap of which are live.
// Slot i is live iff bits.IsSet(i); its bytes occupy data[i*blockSize :
// i*blockSize+blockSize].
type Page struct {
	id        PageID
	bits      *bitset.BitSet
	data      []byte
	blockSize int
	maxBlocks int
	maxBytes  int
	checksum  uint32
}

// newPage allocates a page with maxBlocks computed the way page.h's setup()
// does: as many blockSize slots as fit alongside the metadata region
// (id + checksum + bitmap), shedding slots until the remainder can hold
// the metadata.
func newPage(id PageID, maxBytes, blockSize int) *Page {
	maxBlocks := maxBytes / blockSize
	for maxBlocks > 0 && maxBytes-maxBlocks*blockSize < metadataSize(maxBlocks) {
		maxBlocks--
	}
	p := &Page{
		id:        id,
		data:      make([]byte, maxBytes),
		blockSize: blockSize,
		maxBlocks: maxBlocks,
		maxBytes:  maxBytes,
	}
	p.bits = bitset.New(maxBlocks)
	return p
}

func metadataSize(maxBlocks int) int {
	return 8 /* PageID */ + 4 /* checksum */ + (maxBlocks+7)/8 /* bitset */ + 8 /* blockSize */
}

// dataRegionLen returns the byte count available to slot data, i.e. the
// page's capacity minus its metadata region.
func (p *Page) dataRegionLen() int {
	return p.maxBytes - metadataSize(p.maxBlocks)
}

// FindFreeSlot returns the first unused slot index, or false if the page is
// full.
func (p *Page) FindFreeSlot() (int, bool) {
	limit := p.dataRegionLen() / p.blockSize
	if limit > p.maxBlocks {
		limit = p.maxBlocks
	}
	for i := 0; i < limit; i++ {
		if !p.bits.IsSet(i) {
			return i, true
		}
	}
	return 0, false
}

// AllocateSlot marks slot i as used.
func (p *Page) AllocateSlot(i int) error {
	if i < 0 || i >= p.maxBlocks {
		return errs.New(errs.OutOfRange, "fixedpage: slot index out of range")
	}
	p.bits.Set(i)
	return nil
}

// FreeSlot marks slot i as free.
func (p *Page) FreeSlot(i int) error {
	if i < 0 || i >= p.maxBlocks {
		return errs.New(errs.OutOfRange, "fixedpage: slot index out of range")
	}
	p.bits.Clear(i)
	return nil
}

// IsSlotFree reports whether slot i currently holds no live data.
func (p *Page) IsSlotFree(i int) (bool, error) {
	if i < 0 || i >= p.maxBlocks {
		return false, errs.New(errs.OutOfRange, "fixedpage: slot index out of range")
	}
	return !p.bits.IsSet(i), nil
}

// Write copies data into the page's slot region at offset, which must be a
// multiple of blockSize, then recomputes the checksum.
func (p *Page) Write(offset int, data []byte) error {
	if offset < 0 || offset+p.blockSize > p.dataRegionLen() {
		return errs.New(errs.OutOfRange, "fixedpage: write exceeds page bounds")
	}
	copy(p.data[offset:offset+p.blockSize], data)
	p.UpdateChecksum()
	return nil
}

// Read returns a copy of the n bytes at offset.
func (p *Page) Read(offset, n int) ([]byte, error) {
	if offset < 0 || offset+n > p.dataRegionLen() {
		return nil, errs.New(errs.OutOfRange, "fixedpage: read exceeds page bounds")
	}
	out := make([]byte, n)
	copy(out, p.data[offset:offset+n])
	return out, nil
}

// ComputeChecksum hashes the page's whole data buffer (every byte Serialize
// writes after the bitmap) with FNV-1a.
func (p *Page) ComputeChecksum() uint32 {
	h := fnv.New32a()
	h.Write(p.data)
	return h.Sum32()
}

// UpdateChecksum recomputes and stores the checksum.
func (p *Page) UpdateChecksum() { p.checksum = p.ComputeChecksum() }

// ValidateChecksum reports whether the stored checksum matches the current
// data region; a mismatch is Corruption (spec.md §7.4).
func (p *Page) ValidateChecksum() error {
	if p.checksum != p.ComputeChecksum() {
		return errs.New(errs.Corruption, "fixedpage: checksum mismatch")
	}
	return nil
}

// ID returns the page's identifier.
func (p *Page) ID() PageID { return p.id }

// SetID overwrites the page's identifier.
func (p *Page) SetID(id PageID) { p.id = id }

// MaxBlocks returns the number of slots the page holds.
func (p *Page) MaxBlocks() int { return p.maxBlocks }

// BlockSize returns the fixed slot size in bytes.
func (p *Page) BlockSize() int { return p.blockSize }

// Serialize encodes the page (id, checksum, bitmap, block size, then the raw
// data region) into a byte slice suitable for persisting to disk.
func (p *Page) Serialize() ([]byte, error) {
	p.UpdateChecksum()
	bitsBuf, err := p.bits.MarshalBinary()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 8+4+8+len(bitsBuf)+len(p.data))
	var tmp8 [8]byte
	binary.LittleEndian.PutUint64(tmp8[:], uint64(p.id))
	out = append(out, tmp8[:]...)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], p.checksum)
	out = append(out, tmp4[:]...)
	binary.LittleEndian.PutUint64(tmp8[:], uint64(p.blockSize))
	out = append(out, tmp8[:]...)
	out = append(out, bitsBuf...)
	out = append(out, p.data...)
	return out, nil
}

// Deserialize decodes a buffer produced by Serialize into a fresh Page sized
// maxBytes, validating the checksum against the recovered data region.
func Deserialize(buf []byte, maxBytes int) (*Page, error) {
	if len(buf) < 20 {
		return nil, errs.New(errs.Corruption, "fixedpage: buffer too short for header")
	}
	id := PageID(binary.LittleEndian.Uint64(buf[0:8]))
	checksum := binary.LittleEndian.Uint32(buf[8:12])
	blockSize := int(binary.LittleEndian.Uint64(buf[12:20]))
	if blockSize <= 0 {
		return nil, errs.New(errs.Corruption, "fixedpage: invalid block size")
	}

	p := newPage(id, maxBytes, blockSize)

	bitsByteLen := (p.maxBlocks + 7) / 8
	bitsStart := 20
	bitsEnd := bitsStart + 8 + bitsByteLen
	if len(buf) < bitsEnd {
		return nil, errs.New(errs.Corruption, "fixedpage: buffer too short for bitmap")
	}
	if err := p.bits.UnmarshalBinary(buf[bitsStart:bitsEnd]); err != nil {
		return nil, errs.Wrap(errs.Corruption, err, "fixedpage: bad bitmap")
	}

	dataStart := bitsEnd
	dataEnd := dataStart + maxBytes
	if len(buf) < dataEnd {
		return nil, errs.New(errs.Corruption, "fixedpage: buffer too short for data region")
	}
	copy(p.data, buf[dataStart:dataEnd])
	p.checksum = checksum

	if err := p.ValidateChecksum(); err != nil {
		return nil, err
	}
	return p, nil
}
