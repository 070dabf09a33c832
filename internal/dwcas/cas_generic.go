//go:build !(amd64 || arm64) || purego

package dwcas

// Supported reports whether CompareAndSwap is implemented on this target.
const Supported = false
