package heap

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxPageBytes int) *Manager {
	t.Helper()
	m, err := NewManager(Config{MaxPageBytes: maxPageBytes})
	require.NoError(t, err)
	return m
}

func TestAddRecordThenGetDataRoundTrip(t *testing.T) {
	m := newTestManager(t, 256)
	addr, err := m.AddRecord([]byte("hello, heap"))
	require.NoError(t, err)

	got, err := m.GetData(addr)
	require.NoError(t, err)
	require.Equal(t, []byte("hello, heap"), got)
}

func TestAddRecordSpansAcrossPages(t *testing.T) {
	m := newTestManager(t, 64)
	payload := []byte(strings.Repeat("x", 200))
	addr, err := m.AddRecord(payload)
	require.NoError(t, err)
	require.Greater(t, m.PageCount(), 1)

	got, err := m.GetData(addr)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestFreeBlockThenReadFails(t *testing.T) {
	m := newTestManager(t, 256)
	addr, err := m.AddRecord([]byte("to be freed"))
	require.NoError(t, err)

	_, _, err = m.FreeBlock(addr, false)
	require.NoError(t, err)

	_, err = m.GetData(addr)
	require.Error(t, err)
}

func TestFreeBlockOfSpanningRecordFreesEveryPage(t *testing.T) {
	m := newTestManager(t, 64)
	payload := []byte(strings.Repeat("y", 200))
	addr, err := m.AddRecord(payload)
	require.NoError(t, err)

	_, _, err = m.FreeBlock(addr, false)
	require.NoError(t, err)

	for pid, p := range m.pages {
		require.Equalf(t, int32(0), p.BlockCount(), "page %d still has live blocks", pid)
	}
}

func TestCompactRemovesHolesAndReportsAdjusts(t *testing.T) {
	m := newTestManager(t, 256)
	a1, err := m.AddRecord([]byte("111111111111111111"))
	require.NoError(t, err)
	_, err = m.AddRecord([]byte("222222222222222222"))
	require.NoError(t, err)
	a3, err := m.AddRecord([]byte("333333333333333333"))
	require.NoError(t, err)

	_, _, err = m.FreeBlock(a1, false)
	require.NoError(t, err)

	adjusts, err := m.Compact(1)
	require.NoError(t, err)
	require.NotEmpty(t, adjusts)

	var movedA3 bool
	for _, a := range adjusts {
		if a.Old == a3 {
			movedA3 = true
			got, err := m.GetData(a.New)
			require.NoError(t, err)
			require.Equal(t, []byte("333333333333333333"), got)
		}
	}
	require.True(t, movedA3)
}

func TestCompactAllRunsConcurrentlyOverIndependentRuns(t *testing.T) {
	m := newTestManager(t, 64)
	_, err := m.AddRecord([]byte(strings.Repeat("z", 200)))
	require.NoError(t, err)
	_, err = m.AddRecord([]byte("small"))
	require.NoError(t, err)

	adjusts, err := m.CompactAll(context.Background())
	require.NoError(t, err)
	_ = adjusts // may be empty if nothing needed to move; just must not error
}

func TestStressCompactTriggersOnFreeListOverflow(t *testing.T) {
	m := newTestManager(t, 4096)
	var addrs []BlockAddress
	for i := 0; i < 2*(freeListStressThreshold+1); i++ {
		a, err := m.AddRecord([]byte("payload-data"))
		require.NoError(t, err)
		addrs = append(addrs, a)
	}
	// Free every other record so the holes stay disjoint (no merges),
	// pushing the free list past the stress threshold.
	var compacted bool
	for i := 0; i < len(addrs); i += 2 {
		did, _, err := m.FreeBlock(addrs[i], true)
		require.NoError(t, err)
		if did {
			compacted = true
		}
	}
	require.True(t, compacted)
}
