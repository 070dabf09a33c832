package mmap

import (
	"fmt"
	"os"
	"sync"
)

var pageSize = sync.OnceValue(func() uintptr {
	return uintptr(os.Getpagesize())
})

// PageSize returns the OS page size in bytes.
func PageSize() uintptr {
	return pageSize()
}

// RoundToPage rounds n up to a multiple of the page size.
func RoundToPage(n uintptr) uintptr {
	ps := PageSize()
	return (n + ps - 1) &^ (ps - 1)
}

// MapAnon maps size bytes of zeroed, read-write anonymous memory and returns
// its page-aligned base address. size is rounded up to a whole number of pages;
// callers must pass the same rounded length to Unmap.
func MapAnon(size uintptr) (uintptr, error) {
	if size == 0 || size > uintptr(maxMapping) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	addr, err := osMapAnon(RoundToPage(size))
	if err != nil {
		return 0, fmt.Errorf("mmap: map %d bytes: %w", size, err)
	}
	return addr, nil
}

// Unmap releases a mapping created by MapAnon.
func Unmap(addr, size uintptr) error {
	if addr == 0 {
		return ErrInvalidAddress
	}
	if size == 0 {
		return ErrInvalidSize
	}
	if err := osUnmap(addr, RoundToPage(size)); err != nil {
		return fmt.Errorf("mmap: unmap %#x (%d bytes): %w", addr, size, err)
	}
	return nil
}

// maxMapping caps a single request well below the address space so that the
// page rounding above cannot overflow.
const maxMapping = int(^uint(0) >> 2)
