package testutil

import (
	"fmt"
	"math/bits"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Sizes returns n request sizes in [1, maxSize]. Small sizes are favoured the
// way real allocation traces are: the bit length is drawn uniformly, then the
// size within that power-of-two band.
func (r *RNG) Sizes(n, maxSize int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	maxBits := bits.Len(uint(maxSize)) //nolint:gosec // maxSize > 0
	out := make([]int, n)
	for i := range out {
		b := r.rand.Intn(maxBits) + 1
		lo := 1 << (b - 1)
		size := lo + r.rand.Intn(lo)
		out[i] = min(size, maxSize)
	}
	return out
}

// Alignment returns a random power of two in [1, maxAlign].
func (r *RNG) Alignment(maxAlign int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return 1 << r.rand.Intn(bits.Len(uint(maxAlign))) //nolint:gosec // maxAlign > 0
}

// Fill fills dst with pseudo-random bytes.
func (r *RNG) Fill(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Hammer runs fn on the given number of goroutines and waits for all of them.
// It returns the first error.
func Hammer(workers int, fn func(worker int) error) error {
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			return fn(w)
		})
	}
	return g.Wait()
}

// CatchPanic runs fn and returns the value it panicked with as an error, or
// nil if it returned normally.
func CatchPanic(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}
