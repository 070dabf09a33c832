//go:build !(386 || arm || mips || mipsle) && (!(amd64 || arm64) || purego)

package lfstack

import "github.com/hupe1980/slabmem/internal/spin"

// headWord guards the head with a spin lock on targets without a suitable
// double-width CAS.
type headWord struct {
	mu spin.Lock
	s  state
}

func (h *headWord) load() state {
	h.mu.Lock()
	s := h.s
	h.mu.Unlock()
	return s
}

func (h *headWord) compareAndSwap(old, next state) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.s != old {
		return false
	}
	h.s = next
	return true
}
