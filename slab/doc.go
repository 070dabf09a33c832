// Package slab provides fixed-size block pools backed by anonymous OS mappings.
//
// # Overview
//
// A Pool hands out blocks ("elements") of one size. Memory is obtained from
// the OS in chunks (1 MiB by default); each chunk is carved into elements that
// are pushed onto a lock-free free-list stack. Allocate pops, Free pushes, and
// an empty stack triggers Grow, which maps one more chunk. Chunks are only
// returned to the OS by Destroy.
//
//	pool := slab.New(64)
//	p := pool.Allocate()
//	defer pool.Free(p)
//
// # Alignment
//
// NewAligned builds a pool whose elements satisfy (p+offset) % alignment == 0
// for a power-of-two alignment up to 4096. Elements are padded to a multiple
// of the alignment.
//
// # Failure
//
// Allocation never returns 0. When the OS or the configured MemoryAcquirer
// refuses a chunk, the fatal handler runs with an error wrapping
// fault.ErrResourceExhausted; the default handler panics.
//
// # Concurrency
//
// Allocate, Free, Grow and Stats are safe for concurrent use. Destroy is not
// and must only run once every element has been returned or abandoned.
package slab
