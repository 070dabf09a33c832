//go:build (amd64 || arm64) && !purego

package dwcas

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_Aligned(t *testing.T) {
	for range 64 {
		buf := new([3]uint64)
		s := Slot(buf)
		assert.Equal(t, uintptr(0), uintptr(unsafe.Pointer(s))&15)
	}
}

func TestCompareAndSwap(t *testing.T) {
	var buf [3]uint64
	s := Slot(&buf)

	require.True(t, CompareAndSwap(s, 0, 0, 1, 2))
	lo, hi := Load(s)
	assert.Equal(t, uint64(1), lo)
	assert.Equal(t, uint64(2), hi)

	// Wrong high word must fail even though the low word matches.
	assert.False(t, CompareAndSwap(s, 1, 3, 7, 7))
	lo, hi = Load(s)
	assert.Equal(t, uint64(1), lo)
	assert.Equal(t, uint64(2), hi)

	assert.True(t, CompareAndSwap(s, 1, 2, ^uint64(0), ^uint64(0)>>1))
	lo, hi = Load(s)
	assert.Equal(t, ^uint64(0), lo)
	assert.Equal(t, ^uint64(0)>>1, hi)
}

func TestCompareAndSwap_Concurrent(t *testing.T) {
	var buf [3]uint64
	s := Slot(&buf)

	const (
		workers    = 8
		increments = 10000
	)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range increments {
				for {
					lo, hi := Load(s)
					if CompareAndSwap(s, lo, hi, lo+1, hi+2) {
						break
					}
				}
			}
		}()
	}
	wg.Wait()

	lo, hi := Load(s)
	assert.Equal(t, uint64(workers*increments), lo)
	assert.Equal(t, uint64(2*workers*increments), hi)
}
