package track

import (
	"github.com/hupe1980/slabmem/internal/rawmem"
)

const (
	fillUnused   = 0xCD
	fillReleased = 0xDD

	prefixPattern  uint32 = 0xFDFDFDFD
	postfixPattern uint32 = 0xBDBDBDBD

	// guardSize is the size of each guard area: four 32-bit pattern words.
	guardSize = 16

	word = rawmem.WordSize
)

// leadSize is the distance from the heap block to the reported pointer: room
// for the record word and the prefix guard, rounded to the alignment.
func leadSize(align uintptr) uintptr {
	return rawmem.AlignUp(word+guardSize, max(align, word))
}

// blockSize is the heap request for a tracked block of size bytes.
func blockSize(size, align uintptr) uintptr {
	return leadSize(align) + size + guardSize
}

// writeGuard stores pattern byte by byte in little-endian order, so the
// address need not be aligned.
func writeGuard(addr uintptr, pattern uint32) {
	b := rawmem.Bytes(addr, guardSize)
	for i := range b {
		b[i] = byte(pattern >> (8 * (i % 4)))
	}
}

// checkGuard returns the offset of the first damaged byte, or -1.
func checkGuard(addr uintptr, pattern uint32) (offset int, got, want byte) {
	b := rawmem.Bytes(addr, guardSize)
	for i := range b {
		want = byte(pattern >> (8 * (i % 4)))
		if b[i] != want {
			return i, b[i], want
		}
	}
	return -1, 0, 0
}
