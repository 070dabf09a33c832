package slabmem

import (
	"errors"

	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/track"
)

var (
	// ErrResourceExhausted wraps every fatal failure to obtain memory from the
	// OS or from the configured budget.
	ErrResourceExhausted = fault.ErrResourceExhausted
	// ErrCorruptionDetected is matched by *CorruptionError.
	ErrCorruptionDetected = fault.ErrCorruptionDetected
	// ErrMismatchedOperation is matched by *MismatchError.
	ErrMismatchedOperation = fault.ErrMismatchedOperation
	// ErrInvalidArgument is matched by *InvalidPointerError and by invalid
	// options.
	ErrInvalidArgument = fault.ErrInvalidArgument

	// ErrDebugDisabled is returned by debug-only operations in release mode.
	ErrDebugDisabled = errors.New("slabmem: debug tracking disabled")
	// ErrClosed is returned when using an allocator after Close.
	ErrClosed = errors.New("slabmem: allocator closed")
)

// CorruptionError reports a damaged guard sentinel.
type CorruptionError = track.CorruptionError

// MismatchError reports a release that does not match its allocation.
type MismatchError = track.MismatchError

// InvalidPointerError reports a pointer without a live allocation record.
type InvalidPointerError = track.InvalidPointerError
