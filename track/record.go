package track

import (
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/slabmem/internal/ilist"
	"github.com/hupe1980/slabmem/internal/rawmem"
)

const magicLive = 0xA110CA7E

const (
	flagBreakOnFree uint32 = 1 << iota
	flagBreakOnRealloc
)

// record is an AllocationRecord. It lives in off-heap memory and must not
// contain Go pointers: strings are interned ids.
type record struct {
	links    ilist.Links
	magic    atomic.Uint32
	flags    atomic.Uint32
	actual   uintptr // heap block
	reported uintptr
	size     uintptr // reported size
	align    uintptr // 0 for pointer alignment
	seq      uint64
	file     uint32
	function uint32
	tag      uint32
	line     uint32
	kind     Kind
}

const recordSize = unsafe.Sizeof(record{})

func (r *record) Links() *ilist.Links {
	return &r.links
}

func (r *record) addr() uintptr {
	return rawmem.Addr(unsafe.Pointer(r))
}

func recordAt(addr uintptr) *record {
	return (*record)(rawmem.Pointer(addr))
}
