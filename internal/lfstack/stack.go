// Package lfstack implements a lock-free, ABA-safe LIFO stack of raw memory blocks.
//
// A node is any off-heap block of at least one machine word; while it is on the
// stack its first word holds the address of the next node. The stack never
// allocates, so none of its operations can fail.
//
// # Head Encoding
//
// The head packs the top-of-stack address, a depth counter and a sequence
// counter, and is replaced with a single compare-and-swap. The sequence counter
// is bumped by every successful operation, so a node that is popped, reused and
// pushed again between a reader's load and its CAS no longer compares equal.
//
//   - amd64, arm64: two 64-bit words swapped with a 128-bit CAS (internal/dwcas)
//   - 386, arm, mips, mipsle: one 64-bit word holding a 32-bit address and two
//     16-bit counters; depth wraps modulo 2^16
//   - other targets, or the purego build tag: the same state behind a spin lock
//     (not lock-free)
//
// Operations are lock-free, not wait-free: a CAS loser yields and retries.
package lfstack

import (
	"runtime"

	"github.com/hupe1980/slabmem/internal/rawmem"
)

type state struct {
	top   uintptr
	depth uint32
	seq   uint32
}

// Stack is a lock-free stack of off-heap nodes. The zero value is empty.
// A Stack must not be copied after first use.
type Stack struct {
	head headWord
}

// Push links node on top of the stack.
func (s *Stack) Push(node uintptr) {
	s.PushChain(node, node, 1)
}

// PushChain links a pre-built chain of n nodes, first through last, in one
// operation. The caller must already have linked first..last through their
// first words.
func (s *Stack) PushChain(first, last uintptr, n uint32) {
	for {
		old := s.head.load()
		rawmem.StoreWord(last, old.top)
		next := state{top: first, depth: old.depth + n, seq: old.seq + 1}
		if s.head.compareAndSwap(old, next) {
			return
		}
		runtime.Gosched()
	}
}

// Pop unlinks and returns the top node, or 0 if the stack is empty.
func (s *Stack) Pop() uintptr {
	for {
		old := s.head.load()
		if old.top == 0 {
			return 0
		}
		// old.top may already have been popped and reused by another goroutine;
		// the word read here is then garbage, but the CAS below fails on seq.
		next := state{top: rawmem.LoadWord(old.top), depth: old.depth - 1, seq: old.seq + 1}
		if s.head.compareAndSwap(old, next) {
			return old.top
		}
		runtime.Gosched()
	}
}

// Flush detaches the whole chain and returns its first node, or 0 if the stack
// is empty. The chain is terminated by a zero next word.
func (s *Stack) Flush() uintptr {
	for {
		old := s.head.load()
		if old.top == 0 {
			return 0
		}
		if s.head.compareAndSwap(old, state{seq: old.seq + 1}) {
			return old.top
		}
		runtime.Gosched()
	}
}

// Depth returns the number of nodes on the stack as recorded in the head.
func (s *Stack) Depth() int {
	return int(s.head.load().depth)
}

// Empty reports whether the stack currently has no nodes.
func (s *Stack) Empty() bool {
	return s.head.load().top == 0
}

// Next returns the node linked after node. It is only meaningful for chains
// the caller owns, such as the result of Flush.
func Next(node uintptr) uintptr {
	return rawmem.LoadWord(node)
}
