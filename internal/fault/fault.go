// Package fault defines the allocator's error taxonomy and the fatal path.
//
// Nothing on the common allocation path returns an error. OS exhaustion is
// fatal; corruption and mismatched operations are reported by the debug layer.
package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrResourceExhausted is the cause of every fatal OS or budget allocation failure.
	ErrResourceExhausted = errors.New("slabmem: resource exhausted")
	// ErrCorruptionDetected is reported when a guard sentinel no longer matches.
	ErrCorruptionDetected = errors.New("slabmem: corruption detected")
	// ErrMismatchedOperation is reported when allocation and release kinds disagree.
	ErrMismatchedOperation = errors.New("slabmem: mismatched operation")
	// ErrInvalidArgument is reported for pointers the allocator does not own.
	ErrInvalidArgument = errors.New("slabmem: invalid argument")
)

// Handler receives fatal errors. It must not return normally; if it does, the
// caller panics with the error anyway.
type Handler func(err error)

// Panic is the default Handler.
func Panic(err error) {
	panic(err)
}

// Exhausted builds the error passed to a Handler when size bytes could not be
// obtained.
func Exhausted(op string, size uintptr, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s %d bytes", ErrResourceExhausted, op, size)
	}
	return fmt.Errorf("%w: %s %d bytes: %w", ErrResourceExhausted, op, size, cause)
}

// Fatal invokes h (or Panic when h is nil) and panics if h returns.
func Fatal(h Handler, err error) {
	if h != nil {
		h(err)
	}
	panic(err)
}
