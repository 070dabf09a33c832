// Package spin provides a test-and-set spin lock.
//
// The lock is meant for critical sections that only swap a handful of words,
// such as relinking an intrusive list node. Waiters yield the processor between
// attempts instead of parking.
package spin

import (
	"runtime"
	"sync/atomic"
)

// Lock is a single-flag spin lock. The zero value is unlocked.
type Lock struct {
	held atomic.Bool
}

// Lock acquires the lock, yielding until it is free.
func (l *Lock) Lock() {
	for !l.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *Lock) TryLock() bool {
	return l.held.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking an unlocked Lock panics.
func (l *Lock) Unlock() {
	if !l.held.Swap(false) {
		panic("spin: unlock of unlocked lock")
	}
}
