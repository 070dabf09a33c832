package heap

import (
	"github.com/hupe1980/slabmem/internal/mmap"
	"github.com/hupe1980/slabmem/internal/rawmem"
	"github.com/hupe1980/slabmem/slab"
)

const word = rawmem.WordSize

// block is an allocation as the heap sees it: base is the address that was
// obtained from a pool or the OS, user is what the caller gets.
//
// Layouts, with h the header word at user-word:
//
//	pool:          [h=class][user ...]                       base = user - word
//	pool aligned:  [pad - word][h=class][user ...]           base = user - pad
//	os:            [h=size][user ...]                        base = user - word
//	os aligned:    [slack][off][h=size][user ...]            base = user - off
type block struct {
	base uintptr
	user uintptr
}

func header(user uintptr) uintptr {
	return rawmem.LoadWord(user - word)
}

func setHeader(user, v uintptr) {
	rawmem.StoreWord(user-word, v)
}

// isClass reports whether a header value is a class index rather than the
// byte size of an OS-backed block.
func isClass(h uintptr) bool {
	return h < NumClasses
}

// alignPad is the distance from a pool element to the user pointer of an
// aligned block. Pool elements sit at chunkHeader mod align, so adding pad
// lands on a multiple of align with at least one word in front for the header.
func alignPad(align uintptr) uintptr {
	return rawmem.AlignUp(slab.ChunkHeaderSize+word, align) - slab.ChunkHeaderSize
}

// osLength is the mapping length of an OS-backed block of size bytes.
func osLength(size uintptr) uintptr {
	return mmap.RoundToPage(size + word)
}

// osAlignedLength is the mapping length of an OS-backed aligned block.
func osAlignedLength(size, align uintptr) uintptr {
	return mmap.RoundToPage(size + align + 2*word)
}

// placeAligned positions an aligned OS block inside the mapping at base and
// records the offset word in front of the header.
func placeAligned(base, align, size uintptr) block {
	user := rawmem.AlignUp(base+2*word, align)
	rawmem.StoreWord(user-2*word, user-base)
	setHeader(user, size)
	return block{base: base, user: user}
}

// alignedBase recovers the mapping base of an aligned OS block.
func alignedBase(user uintptr) uintptr {
	return user - rawmem.LoadWord(user-2*word)
}
