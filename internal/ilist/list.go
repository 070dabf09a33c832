// Package ilist implements an intrusive doubly linked list over off-heap nodes.
//
// A node type embeds Links as its first field and exposes it through a Links
// method. Links store plain addresses, so nodes may live in memory the Go
// garbage collector never scans. The list itself is not synchronized; callers
// serialize mutation.
package ilist

import (
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/slabmem/internal/rawmem"
)

// Links are the intrusive link words of a node. The zero value is unlinked.
type Links struct {
	prev  uintptr
	next  uintptr
	owner uint64
}

// Linked reports whether the node belongs to some list.
func (l *Links) Linked() bool {
	return l.owner != 0
}

// Node is the constraint for list elements: a pointer to T that exposes its
// embedded Links.
type Node[T any] interface {
	*T
	Links() *Links
}

var lastID atomic.Uint64

// List is an intrusive list of *T. The zero value is an empty list.
// A List must not be copied after first use.
type List[T any, PT Node[T]] struct {
	head uintptr
	tail uintptr
	n    int
	id   uint64
}

func (l *List[T, PT]) ident() uint64 {
	if l.id == 0 {
		l.id = lastID.Add(1)
	}
	return l.id
}

func addrOf[T any, PT Node[T]](node PT) uintptr {
	return rawmem.Addr(unsafe.Pointer(node))
}

func nodeAt[T any, PT Node[T]](addr uintptr) PT {
	return PT((*T)(rawmem.Pointer(addr)))
}

// InsertTail appends node. Inserting a node that is already linked panics.
func (l *List[T, PT]) InsertTail(node PT) {
	links := node.Links()
	if links.Linked() {
		panic("ilist: insert of linked node")
	}
	addr := addrOf[T](node)

	links.owner = l.ident()
	links.prev = l.tail
	links.next = 0
	if l.tail != 0 {
		nodeAt[T, PT](l.tail).Links().next = addr
	} else {
		l.head = addr
	}
	l.tail = addr
	l.n++
}

// Remove unlinks node. Removing a node that is not in l panics.
func (l *List[T, PT]) Remove(node PT) {
	links := node.Links()
	if links.owner == 0 || links.owner != l.id {
		panic("ilist: remove of node not in list")
	}

	if links.prev != 0 {
		nodeAt[T, PT](links.prev).Links().next = links.next
	} else {
		l.head = links.next
	}
	if links.next != 0 {
		nodeAt[T, PT](links.next).Links().prev = links.prev
	} else {
		l.tail = links.prev
	}
	*links = Links{}
	l.n--
}

// Contains reports whether node is linked into l.
func (l *List[T, PT]) Contains(node PT) bool {
	return l.id != 0 && node.Links().owner == l.id
}

// Front returns the first node, or nil.
func (l *List[T, PT]) Front() PT {
	if l.head == 0 {
		return nil
	}
	return nodeAt[T, PT](l.head)
}

// PopHead unlinks and returns the first node, or nil if the list is empty.
func (l *List[T, PT]) PopHead() PT {
	node := l.Front()
	if node != nil {
		l.Remove(node)
	}
	return node
}

// Len returns the number of linked nodes.
func (l *List[T, PT]) Len() int {
	return l.n
}

// Each calls fn for every node from head to tail until fn returns false.
// fn must not mutate the list.
func (l *List[T, PT]) Each(fn func(PT) bool) {
	for addr := l.head; addr != 0; {
		node := nodeAt[T, PT](addr)
		next := node.Links().next
		if !fn(node) {
			return
		}
		addr = next
	}
}
