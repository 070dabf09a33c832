package heap

import (
	"math/bits"
)

const (
	// NumClasses is the number of size classes.
	NumClasses = 11
	// DefaultMinClassSize is the size of the smallest class.
	DefaultMinClassSize = 8
)

// classTable maps inflated request sizes to class indices.
type classTable struct {
	minShift int
}

func newClassTable(minClassSize uintptr) classTable {
	return classTable{minShift: bits.TrailingZeros64(uint64(minClassSize))}
}

func (c classTable) size(i int) uintptr {
	return 1 << (c.minShift + i)
}

func (c classTable) largest() uintptr {
	return c.size(NumClasses - 1)
}

// index returns the class for an n-byte element, n <= max().
func (c classTable) index(n uintptr) int {
	if n <= c.size(0) {
		return 0
	}
	return bits.Len64(uint64(n-1)) - c.minShift
}
