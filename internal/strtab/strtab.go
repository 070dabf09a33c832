// Package strtab interns strings as small integer ids.
//
// Allocation records live in off-heap memory that the garbage collector does
// not scan, so they cannot hold string headers. They store an id instead and
// resolve it through a Table, which keeps the strings alive on the Go heap.
package strtab

import (
	"sync"
)

// Table maps strings to stable ids. Id 0 is always the empty string.
// The zero value is ready to use.
type Table struct {
	ids sync.Map // string -> uint32

	mu   sync.RWMutex
	strs []string
}

// Intern returns the id of s, adding it on first use.
func (t *Table) Intern(s string) uint32 {
	if s == "" {
		return 0
	}
	if id, ok := t.ids.Load(s); ok {
		return id.(uint32)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.ids.Load(s); ok {
		return id.(uint32)
	}
	if len(t.strs) == 0 {
		t.strs = append(t.strs, "")
	}
	id := uint32(len(t.strs))
	t.strs = append(t.strs, s)
	t.ids.Store(s, id)
	return id
}

// Lookup returns the string for id, or "" for unknown ids.
func (t *Table) Lookup(id uint32) string {
	if id == 0 {
		return ""
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if int(id) >= len(t.strs) {
		return ""
	}
	return t.strs[id]
}

// Len returns the number of interned non-empty strings.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.strs) == 0 {
		return 0
	}
	return len(t.strs) - 1
}
