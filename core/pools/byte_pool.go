// Package pools provides buffer pooling for the per-connection read path.
package pools

import "sync"

// BytePool is a multi-tiered byte slice pool for different size classes.
// Connection workers borrow read chunks from it on every fill, so tiers are
// sized for typical request traffic.
type BytePool struct {
	pools []*sync.Pool
	sizes []int
}

// Tier sizes: request scanning chunks sit in the two middle tiers, small
// bodies in the first, large declared bodies in the last.
var defaultSizes = []int{
	512,
	2048,
	8192,
	32768,
}

// NewBytePool creates a new byte pool with standard size tiers
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a byte pool with custom size tiers
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}

	for i, size := range sizes {
		sz := size // Capture for closure
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, sz)
				return &buf
			},
		}
	}

	return bp
}

// Get returns a byte slice of exactly the requested length, backed by the
// smallest tier that fits. Oversized requests are allocated directly.
func (bp *BytePool) Get(size int) []byte {
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			bufPtr := bp.pools[i].Get().(*[]byte)
			buf := *bufPtr
			return buf[:size]
		}
	}

	return make([]byte, size)
}

// Put returns a byte slice to its tier. Slices not from a tier are left to
// the GC.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)

	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			return
		}
	}
}
