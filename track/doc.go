// Package track is the debug layer of slabmem: it guards, attributes and
// registers every allocation made through a Tracker.
//
// # Overview
//
// Each tracked block is laid out inside a larger heap block:
//
//	[record][padding][prefix: 16 x 0xFD][reported region][postfix: 16 x 0xBD]
//
// The record address is stored both in the first word of the heap block and
// in the word just before the prefix, so a reported pointer leads back to its
// AllocationRecord in O(1). Fresh regions are filled with 0xCD, released
// blocks with 0xDD.
//
// Records live in a dedicated slab pool outside the Go heap and are linked
// into the live registry, which is the source of the teardown leak report.
//
// # Attribution
//
// A call site is taken from the explicit Site argument, else from the
// thread's pending site (consumed by that call), else from runtime.Caller
// when caller capture is enabled. The tag is the top of the thread's tag
// stack.
//
// # Violations
//
// Sentinel damage, mismatched allocate/release kinds and pointers without a
// valid record are reported as *CorruptionError, *MismatchError and
// *InvalidPointerError. In strict mode they panic; otherwise they are logged,
// throttled by a rate limiter.
package track
