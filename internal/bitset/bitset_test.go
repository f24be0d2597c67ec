package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetClearIsSet(t *testing.T) {
	b := New(10)
	require.False(t, b.IsSet(3))
	b.Set(3)
	require.True(t, b.IsSet(3))
	b.Clear(3)
	require.False(t, b.IsSet(3))
}

func TestCount(t *testing.T) {
	b := New(16)
	b.Set(0)
	b.Set(5)
	b.Set(15)
	require.Equal(t, 3, b.Count())
}

func TestOutOfRangePanics(t *testing.T) {
	b := New(4)
	require.Panics(t, func() { b.Set(4) })
	require.Panics(t, func() { b.IsSet(-1) })
}

func TestMarshalRoundTrip(t *testing.T) {
	b := New(20)
	b.Set(0)
	b.Set(19)
	b.Set(7)

	buf, err := b.MarshalBinary()
	require.NoError(t, err)

	var b2 BitSet
	require.NoError(t, b2.UnmarshalBinary(buf))
	require.Equal(t, b.Len(), b2.Len())
	for i := 0; i < b.Len(); i++ {
		require.Equal(t, b.IsSet(i), b2.IsSet(i))
	}
}
