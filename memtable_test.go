package tagfilterdb

import (
	"bytes"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/tin2003tin/tagfilterdb/internal/bbox"
	"github.com/tin2003tin/tagfilterdb/internal/mempool"
)

func newTestMemtable(t *testing.T) *Memtable {
	t.Helper()
	m, err := Open(WithDimension(2), WithPageBytes(256), WithChildBounds(8, 4))
	require.NoError(t, err)
	return m
}

func boxOf(m *Memtable, x1, y1, x2, y2 float64) *bbox.Box {
	b := m.bbm.CreateBB()
	m.bbm.SetAxis(b, 0, x1, x2)
	m.bbm.SetAxis(b, 1, y1, y2)
	return b
}

func TestInsertThenGetBeforeFlushReturnsBufferedData(t *testing.T) {
	m := newTestMemtable(t)
	rec := m.Insert(boxOf(m, 0, 0, 1, 1), []byte("unsigned"))
	require.False(t, rec.Signed())

	dv, err := m.Get(rec)
	require.NoError(t, err)
	require.Equal(t, []byte("unsigned"), dv.Bytes)
}

func TestFlushSignsRecordAndReadsThroughHeap(t *testing.T) {
	m := newTestMemtable(t)
	rec := m.Insert(boxOf(m, 0, 0, 1, 1), []byte("payload"))

	compacted, err := m.Flush()
	require.NoError(t, err)
	require.False(t, compacted)
	require.True(t, rec.Signed())

	dv, err := m.Get(rec)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), dv.Bytes)
}

func TestRemoveBeforeFlushCancelsPendingInsert(t *testing.T) {
	m := newTestMemtable(t)
	b := boxOf(m, 0, 0, 1, 1)
	rec := m.Insert(b, []byte("cancel-me"))
	require.Equal(t, 1, m.index.Size())

	ok := m.Remove(b, rec)
	require.True(t, ok)
	require.Equal(t, 0, m.index.Size())

	_, err := m.Flush()
	require.NoError(t, err)
	require.False(t, rec.Signed(), "cancelled insert must never be signed by a later flush")
}

func TestRemoveAfterFlushFreesOnNextFlush(t *testing.T) {
	m := newTestMemtable(t)
	b := boxOf(m, 0, 0, 1, 1)
	rec := m.Insert(b, []byte("free-me"))
	_, err := m.Flush()
	require.NoError(t, err)
	addr := rec.Addr

	require.True(t, m.Remove(b, rec))
	_, err = m.Flush()
	require.NoError(t, err)

	_, err = m.pool.Manager().GetData(addr)
	require.Error(t, err)
}

func TestRemoveOfUnknownRecordIsNoop(t *testing.T) {
	m := newTestMemtable(t)
	b := boxOf(m, 0, 0, 1, 1)
	other := &mempool.Record{}
	require.False(t, m.Remove(b, other))
}

func TestSaveLoadRoundTripPreservesQueryResults(t *testing.T) {
	m := newTestMemtable(t)
	type entry struct {
		box  [4]float64
		data string
	}
	entries := []entry{
		{[4]float64{0, 0, 1, 1}, "a"},
		{[4]float64{5, 5, 6, 6}, "b"},
		{[4]float64{10, 10, 20, 20}, "c"},
	}
	for _, e := range entries {
		m.Insert(boxOf(m, e.box[0], e.box[1], e.box[2], e.box[3]), []byte(e.data))
	}

	var heapBuf, indexBuf bytes.Buffer
	require.NoError(t, m.Save(&heapBuf, &indexBuf))

	reloaded, err := Open(WithDimension(2), WithPageBytes(256), WithChildBounds(8, 4))
	require.NoError(t, err)
	require.NoError(t, reloaded.Load(heapBuf.Bytes(), indexBuf.Bytes()))
	require.Equal(t, 3, reloaded.index.Size())

	q := boxOf(reloaded, 4, 4, 7, 7)
	var hits []string
	reloaded.index.SearchOverlap(q, func(_ *bbox.Box, rec *mempool.Record) bool {
		dv, err := reloaded.Get(rec)
		require.NoError(t, err)
		hits = append(hits, string(dv.Bytes))
		return true
	})
	require.ElementsMatch(t, []string{"b"}, hits)

	all := boxOf(reloaded, -100, -100, 100, 100)
	var allHits []string
	reloaded.index.SearchOverlap(all, func(_ *bbox.Box, rec *mempool.Record) bool {
		dv, err := reloaded.Get(rec)
		require.NoError(t, err)
		allHits = append(allHits, string(dv.Bytes))
		return true
	})
	sort.Strings(allHits)
	wanted := []string{"a", "b", "c"}
	if diff := cmp.Diff(wanted, allHits); diff != "" {
		t.Fatalf("reloaded records diverge from what was saved (-want +got):\n%s", diff)
	}
}
