package slabmem

import "github.com/hupe1980/slabmem/track"

// Kind identifies the API family of an allocation. Debug mode reports a
// release whose kind does not pair with the allocation.
type Kind = track.Kind

const (
	KindUnknown         = track.KindUnknown
	KindNew             = track.KindNew
	KindNewAligned      = track.KindNewAligned
	KindNewArray        = track.KindNewArray
	KindNewArrayAligned = track.KindNewArrayAligned
	KindHeapAlloc       = track.KindHeapAlloc
	KindZeroInitAlloc   = track.KindZeroInitAlloc
	KindResize          = track.KindResize
	KindUnvalidated     = track.KindUnvalidated
)
