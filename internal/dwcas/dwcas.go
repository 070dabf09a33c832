package dwcas

import (
	"sync/atomic"
	"unsafe"
)

// Slot returns the 16-byte aligned two-word pair inside buf.
// buf must not be copied after the first call.
func Slot(buf *[3]uint64) *[2]uint64 {
	p := unsafe.Pointer(&buf[0])
	if uintptr(p)&15 != 0 {
		p = unsafe.Pointer(&buf[1])
	}
	return (*[2]uint64)(p)
}

// Load reads both words of addr.
//
// The two halves are read with separate atomic loads, so the result may be torn.
// That is fine for CAS loops: a torn snapshot never compares equal to memory and
// the subsequent CompareAndSwap fails.
func Load(addr *[2]uint64) (lo, hi uint64) {
	hi = atomic.LoadUint64(&addr[1])
	lo = atomic.LoadUint64(&addr[0])
	return lo, hi
}
