//go:build (amd64 || arm64) && !purego

package lfstack

import "github.com/hupe1980/slabmem/internal/dwcas"

// headWord stores {top} in the low word and {depth<<32 | seq} in the high word.
type headWord struct {
	buf [3]uint64
}

func (h *headWord) load() state {
	lo, hi := dwcas.Load(dwcas.Slot(&h.buf))
	return state{top: uintptr(lo), depth: uint32(hi >> 32), seq: uint32(hi)}
}

func (h *headWord) compareAndSwap(old, next state) bool {
	return dwcas.CompareAndSwap(dwcas.Slot(&h.buf),
		uint64(old.top), counters(old),
		uint64(next.top), counters(next))
}

func counters(s state) uint64 {
	return uint64(s.depth)<<32 | uint64(s.seq)
}
