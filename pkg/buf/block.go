package buf

import (
	"unsafe"

	"github.com/bytedance/gopkg/lang/mcache"
)

const defaultBlockCapacity = 4096

// Acquire returns a heap block with at least capacity bytes, zero
// initialized length. Blocks come from a size-classed cache and must be
// handed back with Release once the owner is done with them.
func Acquire(capacity int) *Block {
	if capacity < 1 {
		capacity = defaultBlockCapacity
	}
	return &Block{b: mcache.Malloc(capacity)[:0]}
}

// Release returns the block's memory to the cache. The block must not be
// used afterwards.
func Release(blk *Block) {
	if blk == nil || blk.b == nil {
		return
	}
	mcache.Free(blk.b[:cap(blk.b)])
	blk.b = nil
}

// Block is a cache-backed heap buffer.
type Block struct {
	b []byte
}

func (blk *Block) Ptr() unsafe.Pointer {
	if cap(blk.b) == 0 {
		return nil
	}
	return unsafe.Pointer(unsafe.SliceData(blk.b[:cap(blk.b)]))
}

func (blk *Block) Cap() int {
	return cap(blk.b)
}

func (blk *Block) Len() int {
	return len(blk.b)
}

func (blk *Block) SetLen(n int) {
	checkSetLen(n, cap(blk.b))
	blk.b = blk.b[:n]
}

// Bytes returns the initialized region.
func (blk *Block) Bytes() []byte {
	return blk.b
}

// Write appends p to the initialized region, growing into capacity only.
// It reports how many bytes fit.
func (blk *Block) Write(p []byte) (n int) {
	free := cap(blk.b) - len(blk.b)
	if free == 0 {
		return 0
	}
	n = copy(blk.b[len(blk.b):cap(blk.b)], p)
	blk.b = blk.b[:len(blk.b)+n]
	return
}

// Reset drops the initialized region without releasing memory.
func (blk *Block) Reset() {
	blk.b = blk.b[:0]
}
