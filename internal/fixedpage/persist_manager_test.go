package fixedpage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManagerSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(512, 32)
	var addrs []struct {
		page   PageID
		offset int
	}
	for i := 0; i < 40; i++ {
		pg, off, err := m.Assign(1)
		require.NoError(t, err)
		p, ok := m.GetPage(pg)
		require.True(t, ok)
		require.NoError(t, p.Write(off, bytes.Repeat([]byte{byte(i)}, 32)))
		addrs = append(addrs, struct {
			page   PageID
			offset int
		}{pg, off})
	}

	var buf bytes.Buffer
	require.NoError(t, m.Save(&buf))

	loaded := NewManager(512, 32)
	require.NoError(t, loaded.Load(buf.Bytes()))

	for i, a := range addrs {
		p, ok := loaded.GetPage(a.page)
		require.True(t, ok)
		got, err := p.Read(a.offset, 32)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{byte(i)}, 32), got)
	}
}
