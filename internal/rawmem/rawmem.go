// Package rawmem is the one place where raw off-heap addresses become Go values.
//
// Memory handed out by the allocator lives in anonymous OS mappings the Go
// runtime does not know about. It is addressed with uintptr everywhere else so
// that neither the garbage collector nor the write barrier ever inspects it;
// this package converts those addresses to pointers and slices on demand.
package rawmem

import (
	"sync/atomic"
	"unsafe"
)

// WordSize is the size of a native pointer in bytes.
const WordSize = unsafe.Sizeof(uintptr(0))

// Pointer converts an off-heap address to an unsafe.Pointer.
func Pointer(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr) //nolint:govet // off-heap address, not managed by the GC
}

// Addr converts p to an address.
func Addr(p unsafe.Pointer) uintptr {
	return uintptr(p)
}

// Word returns the machine word stored at addr as a pointer.
func Word(addr uintptr) *uintptr {
	return (*uintptr)(Pointer(addr))
}

// LoadWord atomically reads the word at addr.
func LoadWord(addr uintptr) uintptr {
	return atomic.LoadUintptr(Word(addr))
}

// StoreWord atomically writes v to the word at addr.
func StoreWord(addr, v uintptr) {
	atomic.StoreUintptr(Word(addr), v)
}

// Bytes returns an n-byte slice backed by the memory at addr.
func Bytes(addr uintptr, n int) []byte {
	if n <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(Pointer(addr)), n)
}

// Fill sets n bytes at addr to b.
func Fill(addr uintptr, n int, b byte) {
	buf := Bytes(addr, n)
	if b == 0 {
		clear(buf)
		return
	}
	for i := range buf {
		buf[i] = b
	}
}

// Copy copies n bytes from src to dst. The regions may overlap.
func Copy(dst, src uintptr, n int) {
	copy(Bytes(dst, n), Bytes(src, n))
}

// AlignUp rounds x up to a multiple of a, which must be a power of two.
func AlignUp(x, a uintptr) uintptr {
	return (x + a - 1) &^ (a - 1)
}

// IsPowerOfTwo reports whether x is a non-zero power of two.
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && x&(x-1) == 0
}
