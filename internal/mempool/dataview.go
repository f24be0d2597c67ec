package mempool

// dataview.go implements DataView (spec.md §3): a byte view with
// arena-backed alignment and content-hash equality. Grounded on
// original_source/include/tagfilterdb/dataView.h.

import (
	"github.com/tin2003tin/tagfilterdb/internal/arena"
	"github.com/tin2003tin/tagfilterdb/internal/murmur"
)

// checksumSeed is arbitrary but fixed, matching DataView's original
// hard-coded seed so checksums computed by different DataViews of the
// same bytes always agree.
const checksumSeed = 0xbc9f1d34

// DataView is a byte view plus content-hash equality (spec.md §3,
// SPEC_FULL.md supplemented feature 3).
type DataView struct {
	Bytes []byte
}

// Align copies v's bytes into a, returning a DataView whose lifetime is
// tied to a rather than whatever buffer the caller passed in.
func (v DataView) Align(a *arena.Arena) DataView {
	return DataView{Bytes: a.AllocateBytes(v.Bytes)}
}

// Checksum returns the MurmurHash32 of v's bytes.
func (v DataView) Checksum() uint32 {
	return murmur.Hash32(v.Bytes, checksumSeed)
}

// Equal reports content equality: same checksum and same bytes (the
// checksum is compared first purely as a cheap fast-reject).
func (v DataView) Equal(other DataView) bool {
	if v.Checksum() != other.Checksum() {
		return false
	}
	if len(v.Bytes) != len(other.Bytes) {
		return false
	}
	for i := range v.Bytes {
		if v.Bytes[i] != other.Bytes[i] {
			return false
		}
	}
	return true
}
