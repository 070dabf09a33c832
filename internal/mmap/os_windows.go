//go:build windows

package mmap

import (
	"golang.org/x/sys/windows"
)

func osMapAnon(size uintptr) (uintptr, error) {
	// MEM_RESERVE|MEM_COMMIT with demand paging: pages are only backed by
	// physical memory when first touched, like an anonymous mmap on Unix.
	addr, err := windows.VirtualAlloc(0, size,
		windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, err
	}
	return addr, nil
}

func osUnmap(addr, _ uintptr) error {
	// MEM_RELEASE frees the entire region and requires a zero size.
	return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
}
