//go:build unix

package mmap

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func osMapAnon(size uintptr) (uintptr, error) {
	prot := unix.PROT_READ | unix.PROT_WRITE
	flags := unix.MAP_ANON | unix.MAP_PRIVATE

	data, err := unix.Mmap(-1, 0, int(size), prot, flags)
	if err != nil {
		return 0, err
	}

	return uintptr(unsafe.Pointer(&data[0])), nil
}

func osUnmap(addr, size uintptr) error {
	// unix.Munmap looks the mapping up by the address of its last byte, so the
	// rebuilt slice must have exactly the original length.
	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size) //nolint:govet // off-heap mapping
	return unix.Munmap(data)
}
