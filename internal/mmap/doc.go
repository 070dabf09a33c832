// Package mmap obtains and releases anonymous virtual memory from the OS.
//
// # Overview
//
// Every byte the allocator hands out comes from an anonymous, private,
// read-write mapping: slab chunks (1 MiB by default) and oversize requests
// that bypass the pools. The memory lives outside the Go heap, so the garbage
// collector never scans or moves it.
//
// Addresses are passed around as uintptr. A mapping is released with the same
// (address, length) pair it was created with.
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2)/munmap(2) via golang.org/x/sys/unix
//   - Windows: VirtualAlloc/VirtualFree via golang.org/x/sys/windows
//
// Pages are committed lazily on first touch on both platforms.
package mmap
