// Package heap implements a size-classed general-purpose allocator over slab pools.
//
// # Overview
//
// Requests are rounded up to one of eleven power-of-two size classes, by
// default 8, 16, 32, ... 8192 bytes, each served by its own slab.Pool.
// Requests larger than the biggest class are mapped directly from the OS.
// Every block carries a one-word header just before the returned pointer, so
// Free needs no size argument:
//
//	h := heap.New()
//	p := h.Allocate(24)   // class 2 (32 bytes) on 64-bit targets
//	h.SizeOf(p)           // 32
//	h.Free(p)
//
// # Aligned Blocks
//
// AllocateAligned returns blocks aligned to any power of two. Alignments up to
// 4096 are served from the class pools; larger ones and large sizes are mapped
// from the OS with enough slack to align the result. Aligned blocks must be
// released with FreeAligned and the same alignment.
//
// # Concurrency
//
// All methods except Destroy are safe for concurrent use and lock-free apart
// from the system calls that map and unmap memory.
package heap
