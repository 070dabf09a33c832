//go:build 386 || arm || mips || mipsle

package lfstack

import "sync/atomic"

// headWord packs a 32-bit address with 16-bit depth and sequence counters into
// one 64-bit word.
type headWord struct {
	word atomic.Uint64
}

func (h *headWord) load() state {
	v := h.word.Load()
	return state{top: uintptr(v >> 32), depth: uint32(v>>16) & 0xffff, seq: uint32(v) & 0xffff}
}

func (h *headWord) compareAndSwap(old, next state) bool {
	return h.word.CompareAndSwap(pack(old), pack(next))
}

func pack(s state) uint64 {
	return uint64(s.top)<<32 | uint64(s.depth&0xffff)<<16 | uint64(s.seq&0xffff)
}
