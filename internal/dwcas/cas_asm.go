//go:build (amd64 || arm64) && !purego

package dwcas

// Supported reports whether CompareAndSwap is implemented on this target.
const Supported = true

// CompareAndSwap atomically compares the pair at addr with (oldLo, oldHi) and,
// if equal, replaces it with (newLo, newHi). addr must be 16-byte aligned.
//
//go:noescape
func CompareAndSwap(addr *[2]uint64, oldLo, oldHi, newLo, newHi uint64) (swapped bool)
