package slab

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/internal/lfstack"
	"github.com/hupe1980/slabmem/internal/mmap"
	"github.com/hupe1980/slabmem/internal/rawmem"
)

const (
	// DefaultChunkSize is the default size of a chunk (1MB).
	DefaultChunkSize = 1 << 20
	// ChunkHeaderSize is the number of bytes at the start of every chunk that
	// hold the chunk header: the next chunk's address and the mapping length.
	ChunkHeaderSize = 2 * rawmem.WordSize
	// MaxAlignment is the largest alignment NewAligned accepts.
	MaxAlignment = 4096
)

// Stats is a point-in-time view of a pool.
type Stats struct {
	ElementSize int   // Stride between elements in bytes
	Chunks      int   // Mapped chunks
	Capacity    int   // Elements carved from all chunks
	Free        int   // Elements on the free list
	InUse       int   // Elements handed out and not yet freed
	MappedBytes int64 // Bytes held from the OS
}

// Pool is a fixed-size block allocator. See the package documentation.
type Pool struct {
	stride    uintptr // element stride, a multiple of max(alignment, word)
	alignment uintptr // 0 for plain pools
	offset    uintptr
	linkOff   uintptr // distance from an element to its word-aligned link word
	chunkSize uintptr

	free   lfstack.Stack
	chunks atomic.Uintptr // head of the chunk list

	indexMu sync.Mutex
	index   atomic.Pointer[[]uintptr] // sorted chunk bases, copy on write

	numChunks atomic.Int64
	capacity  atomic.Int64
	inUse     atomic.Int64

	opts options
}

// New creates a pool of elementSize-byte blocks. elementSize is rounded up to
// the pointer size. It panics if elementSize is not positive or an element
// does not fit in a chunk.
func New(elementSize int, opts ...Option) *Pool {
	return newPool(elementSize, 0, 0, opts)
}

// NewAligned creates a pool whose elements p satisfy (p+offset)%alignment == 0.
// An alignment of 0 yields a plain pool. It panics unless alignment is a power
// of two no larger than MaxAlignment.
func NewAligned(elementSize, alignment, offset int, opts ...Option) *Pool {
	if alignment < 0 || offset < 0 {
		panic(fmt.Errorf("%w: slab: alignment %d, offset %d", fault.ErrInvalidArgument, alignment, offset))
	}
	if alignment == 0 {
		return newPool(elementSize, 0, 0, opts)
	}
	a := uintptr(alignment)
	if !rawmem.IsPowerOfTwo(a) || a > MaxAlignment {
		panic(fmt.Errorf("%w: slab: alignment %d is not a power of two <= %d", fault.ErrInvalidArgument, alignment, MaxAlignment))
	}
	return newPool(elementSize, a, uintptr(offset)%a, opts)
}

func newPool(elementSize int, alignment, offset uintptr, opts []Option) *Pool {
	if elementSize <= 0 {
		panic(fmt.Errorf("%w: slab: element size %d", fault.ErrInvalidArgument, elementSize))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pool{
		alignment: alignment,
		offset:    offset,
		chunkSize: o.chunkSize,
		opts:      o,
	}

	step := max(alignment, rawmem.WordSize)
	// Every chunk base is page aligned, so the first element sits at the same
	// offset in every chunk and all elements share one residue mod the word size.
	first := p.firstElement(0)
	p.linkOff = (rawmem.WordSize - first%rawmem.WordSize) % rawmem.WordSize
	p.stride = rawmem.AlignUp(max(uintptr(elementSize), p.linkOff+rawmem.WordSize), step)

	if p.stride >= p.chunkSize-first {
		panic(fmt.Errorf("%w: slab: element size %d does not fit a %d byte chunk", fault.ErrInvalidArgument, elementSize, p.chunkSize))
	}
	return p
}

// firstElement returns the first element address of the chunk at base.
func (p *Pool) firstElement(base uintptr) uintptr {
	a := base + ChunkHeaderSize
	if p.alignment == 0 {
		return a
	}
	return rawmem.AlignUp(a+p.offset, p.alignment) - p.offset
}

// Allocate returns an element. It never returns 0.
func (p *Pool) Allocate() uintptr {
	for {
		if node := p.free.Pop(); node != 0 {
			p.inUse.Add(1)
			return node - p.linkOff
		}
		p.Grow()
	}
}

// Free returns an element obtained from Allocate. Free(0) is a no-op.
func (p *Pool) Free(elem uintptr) {
	if elem == 0 {
		return
	}
	p.inUse.Add(-1)
	p.free.Push(elem + p.linkOff)
}

// Grow maps one more chunk and puts all of its elements on the free list.
// Concurrent callers each add a chunk.
func (p *Pool) Grow() {
	size := p.chunkSize
	bytes := int64(size) //nolint:gosec // chunk size is page rounded and far below MaxInt64

	if p.opts.acquirer != nil {
		if err := p.opts.acquirer.AcquireMemory(bytes); err != nil {
			fault.Fatal(p.opts.fatal, fault.Exhausted("slab grow", size, err))
			return
		}
	}

	base, err := mmap.MapAnon(size)
	if err != nil {
		if p.opts.acquirer != nil {
			p.opts.acquirer.ReleaseMemory(bytes)
		}
		fault.Fatal(p.opts.fatal, fault.Exhausted("slab grow", size, err))
		return
	}

	rawmem.StoreWord(base+rawmem.WordSize, size)
	for {
		head := p.chunks.Load()
		rawmem.StoreWord(base, head)
		if p.chunks.CompareAndSwap(head, base) {
			break
		}
	}
	p.addToIndex(base)
	p.numChunks.Add(1)
	p.opts.observer.OnChunkMapped(int(size)) //nolint:gosec // see above

	first := p.firstElement(base) + p.linkOff
	n := (base + size - p.firstElement(base)) / p.stride
	last := first + (n-1)*p.stride
	for node := first; node < last; node += p.stride {
		rawmem.StoreWord(node, node+p.stride)
	}
	p.capacity.Add(int64(n)) //nolint:gosec // bounded by chunk size
	p.free.PushChain(first, last, uint32(n))
}

// Destroy unmaps every chunk. Elements still held become invalid. Destroy is
// not safe for concurrent use with any other method.
func (p *Pool) Destroy() {
	p.free.Flush()

	p.index.Store(nil)
	chunk := p.chunks.Swap(0)
	for chunk != 0 {
		next := rawmem.LoadWord(chunk)
		size := rawmem.LoadWord(chunk + rawmem.WordSize)
		if err := mmap.Unmap(chunk, size); err != nil {
			p.opts.logger.Warn("slab: unmap chunk", "addr", chunk, "size", size, "error", err)
		}
		if p.opts.acquirer != nil {
			p.opts.acquirer.ReleaseMemory(int64(size)) //nolint:gosec // written by Grow
		}
		p.opts.observer.OnChunkUnmapped(int(size)) //nolint:gosec // written by Grow
		chunk = next
	}

	p.numChunks.Store(0)
	p.capacity.Store(0)
	p.inUse.Store(0)
}

// Owns reports whether addr is the start of an element of one of the pool's
// chunks.
func (p *Pool) Owns(addr uintptr) bool {
	bases := p.index.Load()
	if bases == nil {
		return false
	}
	i, found := slices.BinarySearch(*bases, addr)
	if !found {
		i--
	}
	if i < 0 {
		return false
	}
	chunk := (*bases)[i]
	end := chunk + p.chunkSize
	if addr >= end {
		return false
	}
	first := p.firstElement(chunk)
	return addr >= first && (addr-first)%p.stride == 0 && addr+p.stride <= end
}

// addToIndex publishes base in the sorted chunk index. Growth is rare, so
// every insert copies the slice and Owns never takes a lock.
func (p *Pool) addToIndex(base uintptr) {
	p.indexMu.Lock()
	defer p.indexMu.Unlock()

	var bases []uintptr
	if old := p.index.Load(); old != nil {
		bases = make([]uintptr, 0, len(*old)+1)
		bases = append(bases, *old...)
	}
	i, _ := slices.BinarySearch(bases, base)
	bases = slices.Insert(bases, i, base)
	p.index.Store(&bases)
}

// ElementSize returns the element stride in bytes.
func (p *Pool) ElementSize() int {
	return int(p.stride) //nolint:gosec // below chunk size
}

// Alignment returns the pool alignment, 0 for plain pools.
func (p *Pool) Alignment() int {
	return int(p.alignment) //nolint:gosec // at most MaxAlignment
}

// Offset returns the alignment offset.
func (p *Pool) Offset() int {
	return int(p.offset) //nolint:gosec // below alignment
}

// ChunkSize returns the size of each chunk mapping.
func (p *Pool) ChunkSize() int {
	return int(p.chunkSize) //nolint:gosec // page rounded option value
}

// Stats returns a snapshot of the pool counters. Under concurrent use the
// fields are individually consistent but not mutually.
func (p *Pool) Stats() Stats {
	chunks := p.numChunks.Load()
	return Stats{
		ElementSize: p.ElementSize(),
		Chunks:      int(chunks),
		Capacity:    int(p.capacity.Load()),
		Free:        p.free.Depth(),
		InUse:       int(p.inUse.Load()),
		MappedBytes: chunks * int64(p.chunkSize), //nolint:gosec // see ChunkSize
	}
}
