package mmap

import "errors"

var (
	// ErrInvalidSize is returned when a mapping length is not positive.
	ErrInvalidSize = errors.New("mmap: invalid mapping size")
	// ErrInvalidAddress is returned when unmapping the zero address.
	ErrInvalidAddress = errors.New("mmap: invalid mapping address")
)
