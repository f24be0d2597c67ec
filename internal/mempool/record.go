package mempool

import "github.com/tin2003tin/tagfilterdb/internal/heap"

// Record is the payload type the spatial index's leaf branches carry
// (spec.md §4.8's "&UnsignedRecord"). It starts unsigned (Addr zero,
// Data holding the arena-copied bytes) and is signed in place by Flush,
// which is what lets the spatial index keep a stable pointer across a
// compacting flush (SPEC_FULL.md supplemented feature 4) — only the
// Addr field changes, never the pointer identity Remove matches on.
type Record struct {
	Addr heap.BlockAddress
	Data DataView
}

// Signed reports whether Flush has already assigned this record a
// disk address.
func (r *Record) Signed() bool { return !r.Addr.IsZero() }
