// Package bench provides reproducible micro-benchmarks for the engine.
// Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
package bench

import (
	"math/rand"
	"runtime"
	"testing"

	"github.com/tin2003tin/tagfilterdb/internal/lru"
)

type value64 struct {
	_ [64]byte
}

const keys = 1 << 16

var ds = func() []string {
	arr := make([]string, keys)
	for i := range arr {
		arr[i] = randKey(i)
	}
	return arr
}()

func randKey(i int) string {
	b := make([]byte, 12)
	rand.Read(b)
	return string(rune(i)) + string(b)
}

func newTestCache(b *testing.B) *lru.Cache[value64] {
	c, err := lru.New[value64](lru.WithShardBits[value64](4), lru.WithTotalCharge[value64](keys*8))
	if err != nil {
		b.Fatal(err)
	}
	return c
}

func BenchmarkInsert(b *testing.B) {
	c := newTestCache(b)
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		h := c.Insert(key, val, 8)
		if h != nil {
			c.Release(h)
		}
	}
}

func BenchmarkLookup(b *testing.B) {
	c := newTestCache(b)
	val := value64{}
	for _, k := range ds {
		h := c.Insert(k, val, 8)
		c.Release(h)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		if h := c.Lookup(k); h != nil {
			c.Release(h)
		}
	}
}

func BenchmarkLookupParallel(b *testing.B) {
	c := newTestCache(b)
	val := value64{}
	for _, k := range ds {
		h := c.Insert(k, val, 8)
		c.Release(h)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			if h := c.Lookup(ds[idx]); h != nil {
				c.Release(h)
			}
		}
	})
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
