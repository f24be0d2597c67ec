package rtree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tin2003tin/tagfilterdb/internal/arena"
	"github.com/tin2003tin/tagfilterdb/internal/bbox"
	"github.com/tin2003tin/tagfilterdb/internal/fixedpage"
)

// addrCodec encodes/decodes payloads as themselves: in tests the payload
// already is the (pageID, offset) pair persist.go expects a real codec to
// resolve via the mempool.
type addrCodec struct{}

func (addrCodec) Encode(p int64) (int64, int32)     { return p, int32(p) }
func (addrCodec) Decode(pageID int64, _ int32) int64 { return pageID }

func TestSaveLoadRoundTrip(t *testing.T) {
	bbm := bbox.NewManager(2, arena.New())
	tr := New[int64](bbm)

	const n = 60
	want := map[int64]bool{}
	for i := int64(0); i < n; i++ {
		x := float64(i)
		b := box(bbm, x, x, x+1, x+1)
		tr.Insert(b, i)
		want[i] = true
	}

	slotSize := SlotSize(2, DefaultMaxChildren)
	fpm := fixedpage.NewManager(slotSize*8, slotSize)

	rootPage, rootOffset, err := tr.Save(fpm, addrCodec{})
	require.NoError(t, err)

	loaded, err := Load[int64](fpm, bbm, addrCodec{}, rootPage, rootOffset, DefaultMaxChildren, DefaultMinChildren)
	require.NoError(t, err)
	require.Equal(t, n, loaded.Size())

	got := map[int64]bool{}
	it := loaded.Iterate()
	for it.Next(loaded) {
		got[it.Data()] = true
	}
	require.Equal(t, want, got)
}

func TestSlotSizeGrowsWithDimensionAndFanout(t *testing.T) {
	small := SlotSize(2, DefaultMaxChildren)
	bigDim := SlotSize(4, DefaultMaxChildren)
	bigFanout := SlotSize(2, DefaultMaxChildren*2)

	require.Greater(t, bigDim, small)
	require.Greater(t, bigFanout, small)
}
