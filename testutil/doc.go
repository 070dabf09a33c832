// Package testutil provides testing utilities for slabmem.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Request Generation
//
//	rng := testutil.NewRNG(seed)
//	sizes := rng.Sizes(1000, 16384)      // request sizes in [1, 16384]
//	align := rng.Alignment(4096)         // power of two in [1, 4096]
//
// # Concurrency
//
//	err := testutil.Hammer(8, func(worker int) error { ... })
//
// # Fatal Paths
//
//	err := testutil.CatchPanic(func() { pool.Allocate() })
package testutil
