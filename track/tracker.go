package track

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/time/rate"

	"github.com/hupe1980/slabmem/heap"
	"github.com/hupe1980/slabmem/internal/conv"
	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/internal/ilist"
	"github.com/hupe1980/slabmem/internal/rawmem"
	"github.com/hupe1980/slabmem/internal/spin"
	"github.com/hupe1980/slabmem/internal/strtab"
	"github.com/hupe1980/slabmem/report"
	"github.com/hupe1980/slabmem/slab"
)

// Stats is a snapshot of tracker counters.
type Stats struct {
	Live        int    // Registered allocations
	Allocations uint64 // Sequence number of the last allocation
	Threads     int64  // Attached threads
	Violations  int64  // Violations detected
	Suppressed  int64  // Violations not logged because of the rate limit
}

// Tracker is the guarded allocation tracker. See the package documentation.
type Tracker struct {
	heap    *heap.Heap
	records *slab.Pool
	strings strtab.Table

	mu   spin.Lock
	live ilist.List[record, *record]

	seq        atomic.Uint64
	threads    atomic.Int64
	violations atomic.Int64
	suppressed atomic.Int64

	breakMu   sync.RWMutex
	breaks    *roaring.Bitmap
	hasBreaks atomic.Bool

	limiter *rate.Limiter
	opts    options
}

// New creates a tracker that allocates blocks from h.
func New(h *heap.Heap, opts ...Option) *Tracker {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Tracker{
		heap:    h,
		records: slab.New(int(recordSize), o.poolOpts...),
		breaks:  roaring.New(),
		limiter: rate.NewLimiter(o.logLimit, o.logBurst),
		opts:    o,
	}
}

// AttachThread returns a new tracking block for the calling thread.
func (t *Tracker) AttachThread() *Thread {
	t.threads.Add(1)
	return &Thread{tracker: t}
}

// Allocate returns a guarded block of size bytes aligned to align (0 or any
// power of two). th may be nil.
func (t *Tracker) Allocate(th *Thread, size, align int, kind Kind, site Site) uintptr {
	site = t.resolveSite(th, site)
	return t.allocate(th, size, align, kind, site)
}

// Free releases p. align and kind must match the allocation.
func (t *Tracker) Free(th *Thread, p uintptr, align int, kind Kind, site Site) {
	site = t.resolveSite(th, site)
	if p == 0 {
		return
	}
	r, err := t.lookup(p, "free")
	if err != nil {
		t.report(err, "free", site)
		return
	}
	t.checkRelease(r, align, kind, site, "free")
	if r.flags.Load()&flagBreakOnFree != 0 {
		t.fireBreak(BreakEvent{Reason: BreakFree, Seq: r.seq, Addr: p, Size: int(r.size), Site: site}) //nolint:gosec // request size
	}
	t.release(r)
}

// Resize moves p into a block of newSize bytes with the same alignment.
// Resize(th, 0, n) allocates and Resize(th, p, 0) frees and returns 0.
// Tracked blocks always move so that stale pointers hit released memory.
func (t *Tracker) Resize(th *Thread, p uintptr, newSize int, site Site) uintptr {
	site = t.resolveSite(th, site)
	if p == 0 {
		return t.allocate(th, newSize, 0, KindResize, site)
	}
	r, err := t.lookup(p, "resize")
	if err != nil {
		t.report(err, "resize", site)
		return 0
	}
	if err := t.check(r); err != nil {
		t.report(err, "resize", site)
	}
	if !Compatible(r.kind, KindResize) {
		t.report(t.mismatch(r, KindResize, int(r.align)), "resize", site) //nolint:gosec // alignment
	}
	if r.flags.Load()&flagBreakOnRealloc != 0 {
		t.fireBreak(BreakEvent{Reason: BreakRealloc, Seq: r.seq, Addr: p, Size: newSize, Site: site})
	}
	if newSize == 0 {
		t.release(r)
		return 0
	}

	kind := KindResize
	if r.kind == KindUnvalidated {
		kind = KindUnvalidated
	}
	q := t.allocate(th, newSize, int(r.align), kind, site) //nolint:gosec // alignment
	rawmem.Copy(q, p, int(min(r.size, uintptr(newSize))))  //nolint:gosec // request sizes
	t.release(r)
	return q
}

// SizeOf returns the requested size of p after validating its guards.
// Invalid pointers are reported and yield 0.
func (t *Tracker) SizeOf(p uintptr) int {
	r, err := t.lookup(p, "size query")
	if err != nil {
		t.report(err, "size query", Site{})
		return 0
	}
	if err := t.check(r); err != nil {
		t.report(err, "size query", Site{})
	}
	return int(r.size) //nolint:gosec // request size
}

// Validate checks the record and guards of p and returns the first problem
// without reporting it.
func (t *Tracker) Validate(p uintptr) error {
	r, err := t.lookup(p, "validate")
	if err != nil {
		return err
	}
	return t.check(r)
}

// ValidateAll checks every live allocation and returns all problems joined.
func (t *Tracker) ValidateAll() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	t.live.Each(func(r *record) bool {
		if err := t.check(r); err != nil {
			errs = append(errs, err)
		}
		return true
	})
	return errors.Join(errs...)
}

// Live returns the number of registered allocations.
func (t *Tracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live.Len()
}

// BreakOnAllocation fires the break hook when allocation number seq is made.
func (t *Tracker) BreakOnAllocation(seq uint32) {
	t.breakMu.Lock()
	defer t.breakMu.Unlock()
	t.breaks.Add(seq)
	t.hasBreaks.Store(true)
}

// ClearBreakOnAllocation removes a break set by BreakOnAllocation.
func (t *Tracker) ClearBreakOnAllocation(seq uint32) {
	t.breakMu.Lock()
	defer t.breakMu.Unlock()
	t.breaks.Remove(seq)
	t.hasBreaks.Store(!t.breaks.IsEmpty())
}

// SetBreakOnFree fires the break hook when p is freed.
func (t *Tracker) SetBreakOnFree(p uintptr, on bool) error {
	return t.setFlag(p, flagBreakOnFree, on)
}

// SetBreakOnRealloc fires the break hook when p is resized.
func (t *Tracker) SetBreakOnRealloc(p uintptr, on bool) error {
	return t.setFlag(p, flagBreakOnRealloc, on)
}

func (t *Tracker) setFlag(p uintptr, flag uint32, on bool) error {
	r, err := t.lookup(p, "set break")
	if err != nil {
		return err
	}
	if on {
		r.flags.Or(flag)
	} else {
		r.flags.And(^flag)
	}
	return nil
}

// Stats returns a snapshot of the tracker counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Live:        t.Live(),
		Allocations: t.seq.Load(),
		Threads:     t.threads.Load(),
		Violations:  t.violations.Load(),
		Suppressed:  t.suppressed.Load(),
	}
}

// Close discards all records and unmaps the record pool. Blocks still held
// by callers are not freed. Close is not safe for concurrent use.
func (t *Tracker) Close() {
	t.Drain()
	t.records.Destroy()
}

func (t *Tracker) allocate(th *Thread, size, align int, kind Kind, site Site) uintptr {
	n, err := conv.IntToUintptr(size)
	if err != nil {
		panic(fmt.Errorf("%w: track: size: %w", fault.ErrInvalidArgument, err))
	}
	a := normAlign(align)
	lead := leadSize(a)
	total, err := conv.UintptrToInt(blockSize(n, a))
	if err != nil {
		panic(fmt.Errorf("%w: track: size: %w", fault.ErrInvalidArgument, err))
	}

	var block uintptr
	if a == 0 {
		block = t.heap.Allocate(total)
	} else {
		block = t.heap.AllocateAligned(total, int(a)) //nolint:gosec // power of two from an int
	}
	reported := block + lead

	rec := t.records.Allocate()
	rawmem.Fill(rec, int(recordSize), 0)
	r := recordAt(rec)
	r.actual = block
	r.reported = reported
	r.size = n
	r.align = a
	r.kind = kind
	r.file = t.strings.Intern(site.File)
	r.function = t.strings.Intern(site.Function)
	r.line = conv.ClampUint32(site.Line)
	if th != nil && !th.detached {
		r.tag = t.strings.Intern(th.Tag())
	}

	rawmem.StoreWord(block, rec)
	recWord := reported - guardSize - word
	rawmem.StoreWord(recWord, rec)
	if recWord > block+word {
		rawmem.Fill(block+word, int(recWord-block-word), fillUnused) //nolint:gosec // below alignment
	}
	writeGuard(reported-guardSize, prefixPattern)
	if kind.zeroed() {
		rawmem.Fill(reported, size, 0)
	} else {
		rawmem.Fill(reported, size, fillUnused)
	}
	writeGuard(reported+n, postfixPattern)

	seq := t.seq.Add(1)
	r.seq = seq
	r.magic.Store(magicLive)

	t.mu.Lock()
	t.live.InsertTail(r)
	t.mu.Unlock()

	if t.hasBreaks.Load() && seq <= math.MaxUint32 {
		t.breakMu.RLock()
		hit := t.breaks.Contains(uint32(seq))
		t.breakMu.RUnlock()
		if hit {
			t.fireBreak(BreakEvent{Reason: BreakAllocation, Seq: seq, Addr: reported, Size: size, Site: site})
		}
	}
	return reported
}

// release unregisters r, poisons its block and returns both to their pools.
func (t *Tracker) release(r *record) {
	t.mu.Lock()
	t.live.Remove(r)
	t.mu.Unlock()

	r.magic.Store(0)
	block, align := r.actual, r.align
	rawmem.Fill(block, int(blockSize(r.size, align)), fillReleased) //nolint:gosec // allocated size
	t.records.Free(r.addr())

	if align == 0 {
		t.heap.Free(block)
	} else {
		t.heap.FreeAligned(block, int(align)) //nolint:gosec // power of two
	}
}

// lookup finds the live record of reported pointer p.
func (t *Tracker) lookup(p uintptr, op string) (*record, error) {
	if p < guardSize+word || p%word != 0 {
		return nil, &InvalidPointerError{Addr: p, Op: op}
	}
	rec := rawmem.LoadWord(p - guardSize - word)
	if !t.records.Owns(rec) {
		return nil, &InvalidPointerError{Addr: p, Op: op}
	}
	r := recordAt(rec)
	if r.magic.Load() != magicLive || r.reported != p {
		return nil, &InvalidPointerError{Addr: p, Op: op}
	}
	return r, nil
}

// check verifies the record word and both guards of r.
func (t *Tracker) check(r *record) error {
	if rawmem.LoadWord(r.actual) != r.addr() {
		return &CorruptionError{Addr: r.reported, Region: RegionRecord, Site: t.siteOf(r)}
	}
	if off, got, want := checkGuard(r.reported-guardSize, prefixPattern); off >= 0 {
		return &CorruptionError{Addr: r.reported, Region: RegionPrefix, Offset: off, Got: got, Want: want, Site: t.siteOf(r)}
	}
	if off, got, want := checkGuard(r.reported+r.size, postfixPattern); off >= 0 {
		return &CorruptionError{Addr: r.reported, Region: RegionPostfix, Offset: off, Got: got, Want: want, Site: t.siteOf(r)}
	}
	return nil
}

// checkRelease reports guard damage and kind or alignment disagreement.
// Problems are reported, never repaired; the block is released either way.
func (t *Tracker) checkRelease(r *record, align int, kind Kind, site Site, op string) {
	if err := t.check(r); err != nil {
		t.report(err, op, site)
	}
	if kind == KindUnvalidated || r.kind == KindUnvalidated {
		return
	}
	if !Compatible(r.kind, kind) || normAlign(align) != r.align {
		t.report(t.mismatch(r, kind, align), op, site)
	}
}

func (t *Tracker) mismatch(r *record, kind Kind, align int) error {
	return &MismatchError{
		Addr:           r.reported,
		Allocated:      r.kind,
		Released:       kind,
		AllocatedAlign: int(r.align),          //nolint:gosec // alignment
		ReleasedAlign:  int(normAlign(align)), //nolint:gosec // alignment
		Site:           t.siteOf(r),
	}
}

func (t *Tracker) siteOf(r *record) Site {
	return Site{
		File:     t.strings.Lookup(r.file),
		Function: t.strings.Lookup(r.function),
		Line:     int(r.line),
	}
}

func (t *Tracker) leakOf(r *record) report.Leak {
	s := t.siteOf(r)
	return report.Leak{
		Address:  r.reported,
		Size:     int(r.size), //nolint:gosec // request size
		File:     s.File,
		Function: s.Function,
		Line:     s.Line,
		Kind:     r.kind.String(),
		Tag:      t.strings.Lookup(r.tag),
		Seq:      r.seq,
	}
}

// resolveSite picks the attribution for a call: explicit, pending, captured.
// It must be called directly from the exported entry points.
func (t *Tracker) resolveSite(th *Thread, site Site) Site {
	pending, ok := th.takeSite()
	if !site.IsZero() {
		return site
	}
	if ok {
		return pending
	}
	if t.opts.captureCaller {
		return callerSite(2 + t.opts.callerSkip)
	}
	return Site{}
}

func (t *Tracker) report(err error, op string, site Site) {
	t.violations.Add(1)
	if t.opts.onViolation != nil {
		t.opts.onViolation(err)
	}
	if t.opts.strict {
		panic(err)
	}
	if !t.limiter.Allow() {
		t.suppressed.Add(1)
		return
	}
	t.opts.logger.Error("slabmem: allocation violation",
		"op", op,
		"site", site.String(),
		"suppressed", t.suppressed.Load(),
		"error", err)
}

func (t *Tracker) fireBreak(ev BreakEvent) {
	if t.opts.breakHook != nil {
		t.opts.breakHook(ev)
		return
	}
	t.opts.logger.Warn("slabmem: break",
		"reason", ev.Reason.String(),
		"seq", ev.Seq,
		"addr", fmt.Sprintf("%#x", ev.Addr),
		"size", ev.Size,
		"site", ev.Site.String())
}

// normAlign maps pointer-or-smaller alignments to 0 and validates the rest.
func normAlign(align int) uintptr {
	if align <= int(word) {
		return 0
	}
	a := uintptr(align)
	if !rawmem.IsPowerOfTwo(a) {
		panic(fmt.Errorf("%w: track: alignment %d is not a power of two", fault.ErrInvalidArgument, align))
	}
	return a
}
