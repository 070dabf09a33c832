// Package slabmem provides a process-wide off-heap memory allocator with an
// optional debug layer for catching corruption and leaks.
//
// Memory comes from anonymous OS mappings, never from the Go heap, so the
// garbage collector neither scans nor moves it. Blocks are addressed as
// uintptr; use Bytes to view one as a slice.
//
// # Quick Start
//
//	p := slabmem.Allocate(64)
//	buf := slabmem.Bytes(p, 64)
//	copy(buf, "hello")
//	slabmem.Free(p)
//
// The package-level functions use Default, which is created on first use.
// Independent allocators can be built with New:
//
//	a, _ := slabmem.New(slabmem.WithDebug(true), slabmem.WithLeakReport(os.Stderr))
//	defer a.Close(ctx)
//
// # Layers
//
//   - slab: fixed-size pools over 1 MiB chunks and a lock-free free list
//   - heap: eleven power-of-two size classes (8..8192 bytes) plus direct OS
//     mappings for larger requests
//   - track: guard sentinels, fill patterns, call-site attribution, a live
//     allocation registry and the leak report (debug mode only)
//
// # Debug Mode
//
// WithDebug(true), or building with the slabdebug tag, routes every call
// through the tracker. Threads attach a tracking block to attribute
// allocations to a source location and a tag:
//
//	th := a.AttachThread()
//	defer th.Detach()
//	th.PushAllocationTag("mesh-import")
//	p := th.Allocate(256, slabmem.KindNewArray, "mesh.go", 42, "mesh.Import")
//	th.Free(p, slabmem.KindNewArray, "mesh.go", 97, "mesh.Release")
//
// Close drains the registry and writes one line per leaked allocation:
//
//	address	size(hex)	size(decimal)	file	function	line	kind
//
// # Error Model
//
// Allocation never returns 0. Running out of OS memory or exceeding the
// configured budget is fatal: the fatal handler runs with an error wrapping
// ErrResourceExhausted and, by default, panics. Violations found by the debug
// layer are reported as *CorruptionError, *MismatchError or
// *InvalidPointerError; strict mode panics with them.
package slabmem
