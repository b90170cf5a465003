// buffers.go: shared buffer allocator
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package blkio

import "code.hybscloud.com/iobuf"

// Ring is a contiguous, cache-line-aligned array of numBufs blocks, each
// blockSize bytes, reused cyclically. The producer holds a private write
// cursor and each consumer holds a private read cursor; Ring itself only
// owns storage — occupancy and wake-up discipline live in Coordinator.
type Ring struct {
	blocks    [][]byte
	blockSize int
}

// NewRing allocates a Ring of numBufs blocks of blockSize bytes each.
// Allocation failure (only reachable with a non-positive size or count) is
// fatal, per the shared buffer allocator's contract.
func NewRing(numBufs, blockSize int) *Ring {
	if numBufs < 1 {
		panic("blkio: numBufs must be >= 1")
	}
	if blockSize < 1 {
		panic("blkio: blockSize must be >= 1")
	}
	return &Ring{
		blocks:    iobuf.CacheLineAlignedMemBlocks(numBufs, blockSize),
		blockSize: blockSize,
	}
}

// NumBufs returns the number of slots in the ring.
func (r *Ring) NumBufs() int { return len(r.blocks) }

// BlockSize returns the size in bytes of each slot.
func (r *Ring) BlockSize() int { return r.blockSize }

// Slot returns the block-sized byte slice at the given index modulo
// NumBufs. The returned slice aliases the ring's storage; callers must not
// retain it past the slot's next publish/release cycle.
func (r *Ring) Slot(index int) []byte {
	return r.blocks[index%len(r.blocks)]
}
