// Package murmur implements the 32-bit Murmur hash variant used by the
// sharded LRU cache (to select a shard and a bucket) and by DataView
// content-equality checks. It is a direct, bit-exact port of the
// algorithm: 4 bytes at a time, little-endian, with a seed-dependent
// tail mix for the final 1-3 bytes.
package murmur

// Hash32 computes a 32-bit Murmur hash of data with the given seed.
func Hash32(data []byte, seed uint32) uint32 {
	const m = 0xc6a4a793
	const r = 24

	n := len(data)
	h := seed ^ (uint32(n) * m)

	i := 0
	for ; i+4 <= n; i += 4 {
		w := decode32(data[i : i+4])
		h += w
		h *= m
		h ^= h >> 16
	}

	switch n - i {
	case 3:
		h += uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h += uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h += uint32(data[i])
		h *= m
		h ^= h >> r
	}

	return h
}

func decode32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Encode32 writes v into dst[0:4] in little-endian order.
func Encode32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

// Decode32 reads a little-endian uint32 from b[0:4].
func Decode32(b []byte) uint32 {
	return decode32(b)
}
