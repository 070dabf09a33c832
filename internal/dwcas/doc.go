// Package dwcas provides a double-width (two machine word) compare-and-swap.
//
// The Go sync/atomic package stops at one machine word. The lock-free free-list
// stack needs to swap a pointer together with its depth and sequence counters,
// which on 64-bit targets takes 128 bits.
//
// # Platform Support
//
//   - amd64: LOCK CMPXCHG16B
//   - arm64: LDAXP/STLXP exclusive pair loop
//
// Other targets do not build this package's CAS; callers select a different
// head encoding at compile time (see internal/lfstack).
//
// # Alignment
//
// Both instructions fault on operands that are not 16-byte aligned. Use Slot to
// carve an aligned pair out of a [3]uint64 that lives inside a Go struct.
package dwcas
