// blockfill.go: deterministic block-fill generator
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package blkio

import "time"

// FillMode selects the block-fill strategy.
type FillMode int

const (
	// FillASCII fills with a slice of the infinite periodic stream
	// (' '..'~')* — 95 printable-ASCII bytes repeated.
	FillASCII FillMode = iota
	// FillRand fills with a fast, non-cryptographic LCG stream. Its only
	// quality requirement is that standard compressors achieve near 0%
	// compression on the output.
	FillRand
)

// asciiPeriod is the printable-ASCII period, ' '..'~' inclusive (95 bytes).
const asciiPeriod = '~' - ' ' + 1

// asciiTable holds two back-to-back periods so any offset in [0, asciiPeriod)
// can be sliced out contiguously without wraparound, enabling a single bulk
// copy regardless of blockSize.
var asciiTable = buildASCIITable()

func buildASCIITable() []byte {
	t := make([]byte, 2*asciiPeriod)
	for i := range t {
		t[i] = byte(' ' + i%asciiPeriod)
	}
	return t
}

// FillBlock writes blockSize bytes into buf (len(buf) must be >= blockSize).
//
// In FillASCII mode, blockNum selects the byte offset into the infinite
// periodic stream: consecutive blocks concatenate into the unbroken
// stream, per the invariant that
// FillBlock(·, ASCII, i) for i in [0,N) concatenates to the first
// N*blockSize bytes of (' '..'~')*.
//
// In FillRand mode, *seed carries the LCG state across calls; pass a
// pointer to a seed obtained from NewRandSeed (or any caller-chosen value)
// on the first call for a given stream.
func FillBlock(buf []byte, blockSize int, mode FillMode, blockNum int64, seed *uint64) {
	buf = buf[:blockSize]
	switch mode {
	case FillASCII:
		fillASCII(buf, blockSize, blockNum)
	case FillRand:
		fillRand(buf, seed)
	}
}

func fillASCII(buf []byte, blockSize int, blockNum int64) {
	// The stream has period asciiPeriod, so every asciiPeriod-byte chunk of
	// it is the same asciiTable[offset:offset+asciiPeriod] slice, not just
	// the first one: offset must stay fixed at the block's starting phase
	// for every copy, never reset to 0.
	offset := int((blockNum * int64(blockSize)) % asciiPeriod)
	for written := 0; written < blockSize; {
		n := copy(buf[written:], asciiTable[offset:offset+asciiPeriod])
		written += n
	}
}

// lcgMultiplier and lcgIncrement are the spec-mandated constants; do not
// substitute a "better" PRNG, the compression-resistance property depends
// on these exact values.
const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
)

func fillRand(buf []byte, seed *uint64) {
	s := *seed
	for i := range buf {
		s = s*lcgMultiplier + lcgIncrement
		buf[i] = byte(s >> 16)
	}
	*seed = s
}

// NewRandSeed returns a seed derived from wall-clock time, suitable for
// re-seeding a FillRand stream at producer start. It need not be
// deterministic across runs.
func NewRandSeed() uint64 {
	return uint64(time.Now().UnixNano())
}
