package heap

import (
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/slabmem/internal/conv"
	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/internal/mmap"
	"github.com/hupe1980/slabmem/internal/rawmem"
	"github.com/hupe1980/slabmem/slab"
)

// Stats is a snapshot of heap usage.
type Stats struct {
	Classes        [NumClasses]slab.Stats
	OversizeBlocks int64 // Live OS-backed blocks
	OversizeBytes  int64 // Bytes mapped for OS-backed blocks
}

// MappedBytes returns the total bytes held from the OS.
func (s Stats) MappedBytes() int64 {
	total := s.OversizeBytes
	for _, c := range s.Classes {
		total += c.MappedBytes
	}
	return total
}

// Heap is a size-class allocator. See the package documentation.
type Heap struct {
	classes classTable
	pools   [NumClasses]*slab.Pool

	oversizeBlocks atomic.Int64
	oversizeBytes  atomic.Int64

	opts options
}

// New creates a heap. No memory is mapped until the first allocation.
func New(opts ...Option) *Heap {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.minClassSize < int(word) || !rawmem.IsPowerOfTwo(uintptr(o.minClassSize)) { //nolint:gosec // checked positive
		panic(fmt.Errorf("%w: heap: minimum class size %d must be a power of two >= %d", fault.ErrInvalidArgument, o.minClassSize, word))
	}

	h := &Heap{
		classes: newClassTable(uintptr(o.minClassSize)),
		opts:    o,
	}

	poolOpts := []slab.Option{
		slab.WithChunkSize(o.chunkSize),
		slab.WithFatalHandler(o.fatal),
		slab.WithObserver(o.observer),
		slab.WithLogger(o.logger),
	}
	if o.acquirer != nil {
		poolOpts = append(poolOpts, slab.WithMemoryAcquirer(o.acquirer))
	}
	for i := range h.pools {
		h.pools[i] = slab.New(int(h.classes.size(i)), poolOpts...) //nolint:gosec // at most 8192 << n
	}
	return h
}

// NumClasses returns the number of size classes.
func (h *Heap) NumClasses() int {
	return NumClasses
}

// ClassSize returns the element size of class i.
func (h *Heap) ClassSize(i int) int {
	if i < 0 || i >= NumClasses {
		return 0
	}
	return int(h.classes.size(i)) //nolint:gosec // small
}

// ClassOf returns the class Allocate(size) is served from, or false if the
// request is mapped from the OS.
func (h *Heap) ClassOf(size int) (int, bool) {
	if size < 0 {
		return 0, false
	}
	n := uintptr(size) + word
	if n > h.classes.largest() {
		return 0, false
	}
	return h.classes.index(n), true
}

// Allocate returns a block of at least size bytes aligned to the pointer size.
// It never returns 0; exhaustion goes to the fatal handler.
func (h *Heap) Allocate(size int) uintptr {
	n := h.request(size)
	if n+word <= h.classes.largest() {
		idx := h.classes.index(n + word)
		user := h.pools[idx].Allocate() + word
		setHeader(user, uintptr(idx))
		return user
	}

	length := osLength(n)
	base := h.mapOversize(length)
	user := base + word
	setHeader(user, n)
	return user
}

// AllocateAligned returns a block of at least size bytes whose address is a
// multiple of align, which must be a power of two. Release it with FreeAligned.
func (h *Heap) AllocateAligned(size, align int) uintptr {
	n := h.request(size)
	a := h.alignment(align)
	if a <= word {
		return h.Allocate(size)
	}

	if a <= slab.MaxAlignment {
		pad := alignPad(a)
		if n+pad <= h.classes.largest() {
			idx := max(h.classes.index(n+pad), h.classes.index(a))
			user := h.pools[idx].Allocate() + pad
			setHeader(user, uintptr(idx))
			return user
		}
	}

	// Tiny requests are recorded with a size that cannot be mistaken for a
	// class index.
	n = max(n, NumClasses)
	length := osAlignedLength(n, a)
	base := h.mapOversize(length)
	return placeAligned(base, a, n).user
}

// Free releases a block returned by Allocate or Resize. Free(0) is a no-op.
func (h *Heap) Free(p uintptr) {
	if p == 0 {
		return
	}
	hdr := header(p)
	if isClass(hdr) {
		h.pools[hdr].Free(p - word)
		return
	}
	h.unmapOversize(p-word, osLength(hdr))
}

// FreeAligned releases a block returned by AllocateAligned with the same
// alignment.
func (h *Heap) FreeAligned(p uintptr, align int) {
	if p == 0 {
		return
	}
	a := h.alignment(align)
	if a <= word {
		h.Free(p)
		return
	}
	b := h.locateAligned(p, a)
	hdr := header(p)
	if isClass(hdr) {
		h.pools[hdr].Free(b.base)
		return
	}
	h.unmapOversize(b.base, osAlignedLength(hdr, a))
}

func (h *Heap) locateAligned(p, a uintptr) block {
	hdr := header(p)
	if isClass(hdr) && a <= slab.MaxAlignment {
		return block{base: p - alignPad(a), user: p}
	}
	return block{base: alignedBase(p), user: p}
}

// Resize changes the size of a block returned by Allocate. Resize(0, n)
// allocates; Resize(p, 0) frees p and returns 0. Pool-backed blocks that
// still fit their class are returned unchanged, including when shrinking.
func (h *Heap) Resize(p uintptr, newSize int) uintptr {
	if p == 0 {
		return h.Allocate(newSize)
	}
	if newSize == 0 {
		h.Free(p)
		return 0
	}
	n := h.request(newSize)

	hdr := header(p)
	var usable uintptr
	if isClass(hdr) {
		usable = h.classes.size(int(hdr)) - word
		if n <= usable {
			return p
		}
	} else {
		if n == hdr {
			return p
		}
		usable = hdr
	}

	q := h.Allocate(newSize)
	rawmem.Copy(q, p, int(min(usable, n))) //nolint:gosec // bounded by request size
	h.Free(p)
	return q
}

// SizeOf returns the capacity of a pool-backed block (its class size) or the
// requested size of an OS-backed block. SizeOf(0) is 0.
func (h *Heap) SizeOf(p uintptr) int {
	if p == 0 {
		return 0
	}
	hdr := header(p)
	if isClass(hdr) {
		return int(h.classes.size(int(hdr))) //nolint:gosec // small
	}
	return int(hdr) //nolint:gosec // validated by request
}

// IsOversize reports whether p is backed by its own OS mapping.
func (h *Heap) IsOversize(p uintptr) bool {
	return p != 0 && !isClass(header(p))
}

// Stats returns a snapshot of the class pools and oversize mappings.
func (h *Heap) Stats() Stats {
	var s Stats
	for i, p := range h.pools {
		s.Classes[i] = p.Stats()
	}
	s.OversizeBlocks = h.oversizeBlocks.Load()
	s.OversizeBytes = h.oversizeBytes.Load()
	return s
}

// Destroy unmaps every class pool chunk. OS-backed blocks that were never
// freed stay mapped. Destroy is not safe for concurrent use.
func (h *Heap) Destroy() {
	for _, p := range h.pools {
		p.Destroy()
	}
}

// request validates a byte count from the public API.
func (h *Heap) request(size int) uintptr {
	n, err := conv.IntToUintptr(size)
	if err != nil {
		panic(fmt.Errorf("%w: heap: size: %w", fault.ErrInvalidArgument, err))
	}
	// Leave room for header, alignment slack and page rounding.
	if n > ^uintptr(0)>>2 {
		fault.Fatal(h.opts.fatal, fault.Exhausted("heap allocate", n, nil))
	}
	return n
}

func (h *Heap) alignment(align int) uintptr {
	a, err := conv.IntToUintptr(align)
	if err != nil || (a != 0 && !rawmem.IsPowerOfTwo(a)) {
		panic(fmt.Errorf("%w: heap: alignment %d is not a power of two", fault.ErrInvalidArgument, align))
	}
	return a
}

func (h *Heap) mapOversize(length uintptr) uintptr {
	bytes, err := conv.Int64FromUintptr(length)
	if err != nil {
		fault.Fatal(h.opts.fatal, fault.Exhausted("heap map", length, err))
	}
	if h.opts.acquirer != nil {
		if err := h.opts.acquirer.AcquireMemory(bytes); err != nil {
			fault.Fatal(h.opts.fatal, fault.Exhausted("heap map", length, err))
		}
	}

	base, err := mmap.MapAnon(length)
	if err != nil {
		if h.opts.acquirer != nil {
			h.opts.acquirer.ReleaseMemory(bytes)
		}
		fault.Fatal(h.opts.fatal, fault.Exhausted("heap map", length, err))
	}

	h.oversizeBlocks.Add(1)
	h.oversizeBytes.Add(bytes)
	h.opts.observer.OnOversizeMapped(int(bytes))
	return base
}

func (h *Heap) unmapOversize(base, length uintptr) {
	if err := mmap.Unmap(base, length); err != nil {
		h.opts.logger.Warn("heap: unmap oversize block", "addr", base, "size", length, "error", err)
		return
	}
	bytes := int64(length) //nolint:gosec // produced by mapOversize
	if h.opts.acquirer != nil {
		h.opts.acquirer.ReleaseMemory(bytes)
	}
	h.oversizeBlocks.Add(-1)
	h.oversizeBytes.Add(-bytes)
	h.opts.observer.OnOversizeUnmapped(int(bytes))
}
