package slabmem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/slabmem/heap"
	"github.com/hupe1980/slabmem/internal/rawmem"
	"github.com/hupe1980/slabmem/report"
	"github.com/hupe1980/slabmem/resource"
	"github.com/hupe1980/slabmem/slab"
	"github.com/hupe1980/slabmem/track"
)

// trackerSkip is the number of frames between the user and the tracker's
// exported entry points: the exported wrapper and Allocator.allocate (or
// free/resize).
const trackerSkip = 2

// Allocator is an off-heap allocator with a release backend (size-class heap)
// and a debug backend (guarded tracker over the same heap).
//
// All methods are safe for concurrent use, except Close.
type Allocator struct {
	heap    *heap.Heap
	tracker *track.Tracker // nil in release mode
	rc      *resource.Controller

	opts    options
	logger  *Logger
	metrics MetricsCollector
	started time.Time
	closed  atomic.Bool
}

// New creates an Allocator.
func New(optFns ...Option) (*Allocator, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	rc := opts.controller
	if opts.resourceConfig != nil {
		rc = resource.NewController(*opts.resourceConfig)
	}

	logger := opts.logger.WithMode(opts.debug)
	obs := metricsObserver{mc: opts.metricsCollector}

	heapOpts := []heap.Option{
		heap.WithMinClassSize(opts.minClassSize),
		heap.WithObserver(obs),
		heap.WithLogger(logger.Logger),
	}
	poolOpts := []slab.Option{
		slab.WithObserver(obs),
		slab.WithLogger(logger.Logger),
	}
	if opts.chunkSize > 0 {
		heapOpts = append(heapOpts, heap.WithChunkSize(opts.chunkSize))
	}
	if rc != nil {
		heapOpts = append(heapOpts, heap.WithMemoryAcquirer(rc))
		poolOpts = append(poolOpts, slab.WithMemoryAcquirer(rc))
	}
	if opts.fatalHandler != nil {
		heapOpts = append(heapOpts, heap.WithFatalHandler(opts.fatalHandler))
		poolOpts = append(poolOpts, slab.WithFatalHandler(opts.fatalHandler))
	}

	a := &Allocator{
		heap:    heap.New(heapOpts...),
		rc:      rc,
		opts:    opts,
		logger:  logger,
		metrics: opts.metricsCollector,
		started: time.Now(),
	}

	if opts.debug {
		trackOpts := []track.Option{
			track.WithStrict(opts.strict),
			track.WithLogger(logger.Logger),
			track.WithCallerCapture(opts.captureCaller),
			track.WithCallerSkip(trackerSkip),
			track.WithViolationHook(opts.metricsCollector.RecordViolation),
			track.WithRecordPoolOptions(poolOpts...),
		}
		if opts.breakHook != nil {
			trackOpts = append(trackOpts, track.WithBreakHook(opts.breakHook))
		}
		if opts.hasLogLimit {
			trackOpts = append(trackOpts, track.WithLogLimit(opts.logLimit, opts.logBurst))
		}
		a.tracker = track.New(a.heap, trackOpts...)
	}

	return a, nil
}

var defaultAllocator = sync.OnceValue(func() *Allocator {
	a, err := New()
	if err != nil {
		panic(err)
	}
	return a
})

// Default returns the process-wide allocator, creating it on first use.
func Default() *Allocator {
	return defaultAllocator()
}

// Debug reports whether a uses the tracking backend.
func (a *Allocator) Debug() bool {
	return a.tracker != nil
}

// Allocate returns a block of at least size bytes aligned to the pointer
// size. It never returns 0.
func (a *Allocator) Allocate(size int) uintptr {
	return a.allocate(nil, size, 0, KindHeapAlloc, track.Site{})
}

// AllocateZeroed is Allocate with the block cleared.
func (a *Allocator) AllocateZeroed(size int) uintptr {
	return a.allocate(nil, size, 0, KindZeroInitAlloc, track.Site{})
}

// AllocateAligned returns a block aligned to align, a power of two. Release it
// with FreeAligned and the same alignment.
func (a *Allocator) AllocateAligned(size, align int) uintptr {
	return a.allocate(nil, size, align, KindHeapAlloc, track.Site{})
}

// Reallocate resizes p, preserving the common prefix. Reallocate(0, n)
// allocates and Reallocate(p, 0) frees p and returns 0.
func (a *Allocator) Reallocate(p uintptr, size int) uintptr {
	return a.resize(nil, p, size, track.Site{})
}

// Free releases a block from Allocate, AllocateZeroed or Reallocate.
// Free(0) is a no-op.
func (a *Allocator) Free(p uintptr) {
	a.free(nil, p, 0, KindHeapAlloc, track.Site{})
}

// FreeAligned releases a block from AllocateAligned.
func (a *Allocator) FreeAligned(p uintptr, align int) {
	a.free(nil, p, align, KindHeapAlloc, track.Site{})
}

// SizeOf returns the usable size of p. In release mode this is the size class
// capacity; in debug mode it is the requested size, and the guards of p are
// checked.
func (a *Allocator) SizeOf(p uintptr) int {
	if p == 0 {
		return 0
	}
	if a.tracker != nil {
		return a.tracker.SizeOf(p)
	}
	return a.heap.SizeOf(p)
}

// AttachThread returns a tracking block for the calling goroutine.
func (a *Allocator) AttachThread() *Thread {
	th := &Thread{alloc: a}
	if a.tracker != nil {
		th.track = a.tracker.AttachThread()
	} else {
		th.track = new(track.Thread)
	}
	return th
}

func (a *Allocator) allocate(th *Thread, size, align int, kind Kind, site track.Site) uintptr {
	var p uintptr
	if a.tracker != nil {
		p = a.tracker.Allocate(th.tracking(), size, align, kind, site)
	} else {
		if align == 0 {
			p = a.heap.Allocate(size)
		} else {
			p = a.heap.AllocateAligned(size, align)
		}
		if kind == KindZeroInitAlloc {
			rawmem.Fill(p, size, 0)
		}
	}
	a.metrics.RecordAllocate(size)
	return p
}

func (a *Allocator) free(th *Thread, p uintptr, align int, kind Kind, site track.Site) {
	if a.tracker != nil {
		a.tracker.Free(th.tracking(), p, align, kind, site)
	} else if align == 0 {
		a.heap.Free(p)
	} else {
		a.heap.FreeAligned(p, align)
	}
	if p != 0 {
		a.metrics.RecordFree()
	}
}

func (a *Allocator) resize(th *Thread, p uintptr, size int, site track.Site) uintptr {
	if p == 0 && size == 0 {
		return 0
	}
	var q uintptr
	if a.tracker != nil {
		q = a.tracker.Resize(th.tracking(), p, size, site)
	} else {
		q = a.heap.Resize(p, size)
	}
	if p == 0 && q != 0 {
		a.metrics.RecordAllocate(size)
	} else if p != 0 && q == 0 {
		a.metrics.RecordFree()
	}
	return q
}

// Leaks returns a snapshot of all live tracked allocations.
func (a *Allocator) Leaks() ([]report.Leak, error) {
	if a.tracker == nil {
		return nil, ErrDebugDisabled
	}
	return a.tracker.Leaks(), nil
}

// Validate checks the guards of p.
func (a *Allocator) Validate(p uintptr) error {
	if a.tracker == nil {
		return ErrDebugDisabled
	}
	return a.tracker.Validate(p)
}

// ValidateAll checks the guards of every live allocation.
func (a *Allocator) ValidateAll() error {
	if a.tracker == nil {
		return ErrDebugDisabled
	}
	return a.tracker.ValidateAll()
}

// BreakOnAllocation fires the break hook when the seq-th allocation is made.
func (a *Allocator) BreakOnAllocation(seq uint32) error {
	if a.tracker == nil {
		return ErrDebugDisabled
	}
	a.tracker.BreakOnAllocation(seq)
	return nil
}

// SetBreakOnFree fires the break hook when p is freed.
func (a *Allocator) SetBreakOnFree(p uintptr, on bool) error {
	if a.tracker == nil {
		return ErrDebugDisabled
	}
	return a.tracker.SetBreakOnFree(p, on)
}

// SetBreakOnRealloc fires the break hook when p is reallocated.
func (a *Allocator) SetBreakOnRealloc(p uintptr, on bool) error {
	if a.tracker == nil {
		return ErrDebugDisabled
	}
	return a.tracker.SetBreakOnRealloc(p, on)
}

// CheckConfiguration reports whether token matches the mode of a.
func (a *Allocator) CheckConfiguration(token uint32) bool {
	want := ConfigTokenRelease
	if a.Debug() {
		want = ConfigTokenDebug
	}
	if token != want {
		a.logger.LogConfigurationMismatch(context.Background(), token, want)
		return false
	}
	return true
}

// Stats is a snapshot of allocator state.
type Stats struct {
	Debug   bool
	Heap    heap.Stats
	Tracker track.Stats // zero in release mode

	MemoryUsage int64 // bytes charged to the budget, if any
	PeakMemory  int64
}

// Stats returns a snapshot of allocator state.
func (a *Allocator) Stats() Stats {
	s := Stats{
		Debug:       a.Debug(),
		Heap:        a.heap.Stats(),
		MemoryUsage: a.rc.MemoryUsage(),
		PeakMemory:  a.rc.PeakMemoryUsage(),
	}
	if a.tracker != nil {
		s.Tracker = a.tracker.Stats()
	}
	return s
}

// Close tears the allocator down. In debug mode the remaining allocations are
// reported as leaks first: logged, written to the leak report writer and
// stored in the report sink. The size class chunks are then unmapped; leaked
// blocks larger than the biggest class stay mapped. Close must not run
// concurrently with other calls. A second Close returns ErrClosed.
func (a *Allocator) Close(ctx context.Context) error {
	if !a.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs []error
	if a.tracker != nil {
		leaks := a.tracker.Drain()
		a.logger.LogLeaks(ctx, leaks)

		var leaked int64
		for _, l := range leaks {
			leaked += int64(l.Size)
		}
		a.metrics.RecordLeaks(len(leaks), leaked)

		if err := a.writeReport(ctx, leaks); err != nil {
			errs = append(errs, err)
		}
		a.tracker.Close()
	}
	a.heap.Destroy()
	return errors.Join(errs...)
}

func (a *Allocator) writeReport(ctx context.Context, leaks []report.Leak) error {
	var errs []error
	if w := a.opts.leakReport; w != nil {
		var buf bytes.Buffer
		if err := report.WriteTSV(&buf, leaks); err != nil {
			errs = append(errs, err)
		} else if _, err := buf.WriteTo(resource.NewRateLimitedWriter(ctx, w, a.rc)); err != nil {
			errs = append(errs, fmt.Errorf("write leak report: %w", err))
		}
	}
	if s := a.opts.reportSink; s != nil && len(leaks) > 0 {
		name := report.Name(a.opts.reportPrefix, a.started)
		err := s.Store(ctx, name, leaks)
		a.logger.LogReport(ctx, name, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("store leak report: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Bytes returns the n bytes at p as a slice. The slice is valid until p is
// freed.
func Bytes(p uintptr, n int) []byte {
	return rawmem.Bytes(p, n)
}

// Allocate allocates from the default allocator.
func Allocate(size int) uintptr {
	return Default().allocate(nil, size, 0, KindHeapAlloc, track.Site{})
}

// AllocateZeroed allocates cleared memory from the default allocator.
func AllocateZeroed(size int) uintptr {
	return Default().allocate(nil, size, 0, KindZeroInitAlloc, track.Site{})
}

// AllocateAligned allocates aligned memory from the default allocator.
func AllocateAligned(size, align int) uintptr {
	return Default().allocate(nil, size, align, KindHeapAlloc, track.Site{})
}

// Reallocate resizes a block of the default allocator.
func Reallocate(p uintptr, size int) uintptr {
	return Default().resize(nil, p, size, track.Site{})
}

// Free releases a block of the default allocator.
func Free(p uintptr) {
	Default().free(nil, p, 0, KindHeapAlloc, track.Site{})
}

// FreeAligned releases an aligned block of the default allocator.
func FreeAligned(p uintptr, align int) {
	Default().free(nil, p, align, KindHeapAlloc, track.Site{})
}

// SizeOf returns the usable size of a block of the default allocator.
func SizeOf(p uintptr) int {
	return Default().SizeOf(p)
}

// AttachThread attaches a tracking block to the default allocator.
func AttachThread() *Thread {
	return Default().AttachThread()
}
