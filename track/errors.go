package track

import (
	"fmt"

	"github.com/hupe1980/slabmem/internal/fault"
)

// Region names the guard area a CorruptionError was found in.
type Region string

const (
	RegionPrefix  Region = "prefix"
	RegionPostfix Region = "postfix"
	RegionRecord  Region = "record"
)

// CorruptionError reports a guard sentinel that no longer holds its pattern.
type CorruptionError struct {
	Addr   uintptr // reported pointer
	Region Region
	Offset int  // byte offset inside the guard area
	Got    byte // value found
	Want   byte // expected pattern byte
	Site   Site // allocation site
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("slabmem: corruption detected: %s guard of %#x damaged at byte %d (got %#02x, want %#02x), allocated at %s",
		e.Region, e.Addr, e.Offset, e.Got, e.Want, e.Site)
}

func (e *CorruptionError) Unwrap() error {
	return fault.ErrCorruptionDetected
}

// MismatchError reports a release that does not pair with the allocation.
type MismatchError struct {
	Addr           uintptr
	Allocated      Kind
	Released       Kind
	AllocatedAlign int
	ReleasedAlign  int
	Site           Site // allocation site
}

func (e *MismatchError) Error() string {
	if e.Allocated == e.Released || Compatible(e.Allocated, e.Released) {
		return fmt.Sprintf("slabmem: mismatched operation: %#x allocated with alignment %d, released with alignment %d, allocated at %s",
			e.Addr, e.AllocatedAlign, e.ReleasedAlign, e.Site)
	}
	return fmt.Sprintf("slabmem: mismatched operation: %#x allocated as %s, released as %s, allocated at %s",
		e.Addr, e.Allocated, e.Released, e.Site)
}

func (e *MismatchError) Unwrap() error {
	return fault.ErrMismatchedOperation
}

// InvalidPointerError reports a pointer that has no live allocation record,
// such as a double free or a pointer the tracker never returned.
type InvalidPointerError struct {
	Addr uintptr
	Op   string
}

func (e *InvalidPointerError) Error() string {
	return fmt.Sprintf("slabmem: invalid argument: %s of %#x: no live allocation", e.Op, e.Addr)
}

func (e *InvalidPointerError) Unwrap() error {
	return fault.ErrInvalidArgument
}
