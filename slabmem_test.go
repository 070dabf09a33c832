package slabmem_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/slabmem"
	"github.com/hupe1980/slabmem/report"
	"github.com/hupe1980/slabmem/resource"
	"github.com/hupe1980/slabmem/testutil"
)

func newAllocator(t *testing.T, opts ...slabmem.Option) *slabmem.Allocator {
	t.Helper()
	opts = append([]slabmem.Option{slabmem.WithLogger(slabmem.NoopLogger())}, opts...)
	a, err := slabmem.New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func TestAllocator_Release(t *testing.T) {
	a := newAllocator(t, slabmem.WithDebug(false))
	assert.False(t, a.Debug())

	p := a.Allocate(24)
	require.NotZero(t, p)
	assert.Equal(t, 32, a.SizeOf(p))
	copy(slabmem.Bytes(p, 24), "abcdefghijklmnopqrstuvwx")
	assert.Equal(t, "abcdefghijklmnopqrstuvwx", string(slabmem.Bytes(p, 24)))
	a.Free(p)

	assert.NotPanics(t, func() { a.Free(0) })
	assert.Equal(t, 0, a.SizeOf(0))

	_, err := a.Leaks()
	assert.ErrorIs(t, err, slabmem.ErrDebugDisabled)
	assert.ErrorIs(t, a.Validate(p), slabmem.ErrDebugDisabled)
	assert.ErrorIs(t, a.ValidateAll(), slabmem.ErrDebugDisabled)
	assert.ErrorIs(t, a.BreakOnAllocation(1), slabmem.ErrDebugDisabled)
	assert.ErrorIs(t, a.SetBreakOnFree(p, true), slabmem.ErrDebugDisabled)
	assert.ErrorIs(t, a.SetBreakOnRealloc(p, true), slabmem.ErrDebugDisabled)
}

func TestAllocator_Zeroed(t *testing.T) {
	for _, debug := range []bool{false, true} {
		a := newAllocator(t, slabmem.WithDebug(debug))

		p := a.Allocate(64)
		for i := range slabmem.Bytes(p, 64) {
			slabmem.Bytes(p, 64)[i] = 0xAA
		}
		a.Free(p)

		q := a.AllocateZeroed(64)
		assert.Equal(t, make([]byte, 64), slabmem.Bytes(q, 64), "debug=%v", debug)
		a.Free(q)
	}
}

func TestAllocator_Aligned(t *testing.T) {
	for _, debug := range []bool{false, true} {
		a := newAllocator(t, slabmem.WithDebug(debug))
		for align := 1; align <= 64<<10; align <<= 1 {
			for _, size := range []int{1, 100, 5000, 70000} {
				p := a.AllocateAligned(size, align)
				require.NotZero(t, p)
				assert.Zero(t, p%uintptr(align), "debug=%v align=%d size=%d", debug, align, size)
				slabmem.Bytes(p, size)[size-1] = 1
				a.FreeAligned(p, align)
			}
		}
	}
}

func TestAllocator_Reallocate(t *testing.T) {
	for _, debug := range []bool{false, true} {
		a := newAllocator(t, slabmem.WithDebug(debug))

		p := a.Reallocate(0, 16)
		require.NotZero(t, p)
		copy(slabmem.Bytes(p, 16), "0123456789abcdef")

		p = a.Reallocate(p, 40000)
		assert.Equal(t, "0123456789abcdef", string(slabmem.Bytes(p, 16)))

		p = a.Reallocate(p, 8)
		assert.Equal(t, "01234567", string(slabmem.Bytes(p, 8)))

		assert.Zero(t, a.Reallocate(p, 0))
		assert.Zero(t, a.Reallocate(0, 0))
	}
}

func TestAllocator_LeakReport(t *testing.T) {
	var buf bytes.Buffer
	a, err := slabmem.New(
		slabmem.WithDebug(true),
		slabmem.WithLogger(slabmem.NoopLogger()),
		slabmem.WithLeakReport(&buf),
	)
	require.NoError(t, err)

	th := a.AttachThread()
	freed := th.Allocate(16, slabmem.KindNew, "mesh.go", 10, "mesh.New")
	leaked := th.Allocate(48, slabmem.KindNewArray, "mesh.go", 42, "mesh.Import")
	th.Free(freed, slabmem.KindNew, "mesh.go", 11, "mesh.Release")
	th.Detach()

	require.NoError(t, a.Close(context.Background()))
	assert.ErrorIs(t, a.Close(context.Background()), slabmem.ErrClosed)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 7)
	assert.Equal(t, "0x30", fields[1])
	assert.Equal(t, "48", fields[2])
	assert.Equal(t, []string{"mesh.go", "mesh.Import", "42", "new-array"}, fields[3:])

	leaks, err := report.ParseTSV(&buf)
	require.NoError(t, err)
	require.Len(t, leaks, 1)
	assert.Equal(t, leaked, leaks[0].Address)
}

type recordingSink struct {
	mu    sync.Mutex
	names []string
	leaks [][]report.Leak
}

func (s *recordingSink) Store(_ context.Context, name string, leaks []report.Leak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.leaks = append(s.leaks, leaks)
	return nil
}

func TestAllocator_ReportSink(t *testing.T) {
	sink := &recordingSink{}
	mc := &slabmem.BasicMetricsCollector{}
	a, err := slabmem.New(
		slabmem.WithDebug(true),
		slabmem.WithLogger(slabmem.NoopLogger()),
		slabmem.WithReportSink(sink),
		slabmem.WithReportPrefix("unit"),
		slabmem.WithMetricsCollector(mc),
	)
	require.NoError(t, err)

	a.Allocate(100)
	a.Allocate(200)
	require.NoError(t, a.Close(context.Background()))

	require.Len(t, sink.names, 1)
	assert.True(t, strings.HasPrefix(sink.names[0], "unit-"))
	require.Len(t, sink.leaks[0], 2)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.LeakCount)
	assert.Equal(t, int64(300), stats.LeakBytes)
	assert.Zero(t, stats.MappedBytes)
}

func TestAllocator_ReportSinkSkippedWithoutLeaks(t *testing.T) {
	sink := &recordingSink{}
	a, err := slabmem.New(
		slabmem.WithDebug(true),
		slabmem.WithLogger(slabmem.NoopLogger()),
		slabmem.WithReportSink(sink),
	)
	require.NoError(t, err)

	a.Free(a.Allocate(8))
	require.NoError(t, a.Close(context.Background()))
	assert.Empty(t, sink.names)
}

func TestAllocator_ThreadAttribution(t *testing.T) {
	a := newAllocator(t, slabmem.WithDebug(true))

	th := a.AttachThread()
	th.PushAllocationTag("outer")
	th.PushAllocationTag("inner")
	assert.Equal(t, "inner", th.AllocationTag())

	th.SetThreadTrackingInformation("loader.go", 7, "loader.Read")
	p := th.Allocate(32, slabmem.KindHeapAlloc, "", 0, "")
	th.PopAllocationTag()
	q := th.Allocate(32, slabmem.KindHeapAlloc, "", 0, "")

	leaks, err := a.Leaks()
	require.NoError(t, err)
	require.Len(t, leaks, 2)
	assert.Equal(t, p, leaks[0].Address)
	assert.Equal(t, "loader.go", leaks[0].File)
	assert.Equal(t, 7, leaks[0].Line)
	assert.Equal(t, "loader.Read", leaks[0].Function)
	assert.Equal(t, "inner", leaks[0].Tag)

	assert.Equal(t, q, leaks[1].Address)
	assert.Empty(t, leaks[1].File, "pending location is used once")
	assert.Equal(t, "outer", leaks[1].Tag)

	th.Free(p, slabmem.KindHeapAlloc, "", 0, "")
	th.Free(q, slabmem.KindHeapAlloc, "", 0, "")
	th.Detach()
	assert.Equal(t, int64(0), a.Stats().Tracker.Threads)
}

func TestAllocator_CallerCapture(t *testing.T) {
	a := newAllocator(t, slabmem.WithDebug(true), slabmem.WithCallerCapture(true))

	p := a.Allocate(8)
	leaks, err := a.Leaks()
	require.NoError(t, err)
	require.Len(t, leaks, 1)
	assert.True(t, strings.HasSuffix(leaks[0].File, "slabmem_test.go"), leaks[0].File)
	assert.Contains(t, leaks[0].Function, "TestAllocator_CallerCapture")
	a.Free(p)

	th := a.AttachThread()
	defer th.Detach()
	q := th.Allocate(8, slabmem.KindNew, "", 0, "")
	leaks, err = a.Leaks()
	require.NoError(t, err)
	require.Len(t, leaks, 1)
	assert.Contains(t, leaks[0].Function, "TestAllocator_CallerCapture")
	th.Free(q, slabmem.KindNew, "", 0, "")
}

func TestAllocator_Violations(t *testing.T) {
	mc := &slabmem.BasicMetricsCollector{}
	a := newAllocator(t, slabmem.WithDebug(true), slabmem.WithMetricsCollector(mc))
	th := a.AttachThread()
	defer th.Detach()

	p := th.Allocate(16, slabmem.KindNew, "a.go", 1, "f")
	th.Free(p, slabmem.KindNewArray, "a.go", 2, "g")
	assert.Equal(t, int64(1), mc.GetStats().MismatchCount)

	p = a.Allocate(16)
	slabmem.Bytes(p, 17)[16] = 0
	assert.ErrorIs(t, a.Validate(p), slabmem.ErrCorruptionDetected)
	assert.ErrorIs(t, a.ValidateAll(), slabmem.ErrCorruptionDetected)
	a.Free(p)
	assert.Equal(t, int64(1), mc.GetStats().CorruptionCount)

	assert.Equal(t, int64(2), a.Stats().Tracker.Violations)
	assert.Equal(t, 0, a.Stats().Tracker.Live)
}

func TestAllocator_Strict(t *testing.T) {
	a := newAllocator(t, slabmem.WithDebug(true), slabmem.WithStrict(true))

	p := a.AllocateAligned(32, 64)
	err := testutil.CatchPanic(func() { a.Free(p) })

	var me *slabmem.MismatchError
	require.ErrorAs(t, err, &me)
	assert.ErrorIs(t, err, slabmem.ErrMismatchedOperation)
	assert.Equal(t, 64, me.AllocatedAlign)

	a.FreeAligned(p, 64)
}

func TestAllocator_Breaks(t *testing.T) {
	var events []slabmem.BreakEvent
	a := newAllocator(t,
		slabmem.WithDebug(true),
		slabmem.WithBreakHook(func(ev slabmem.BreakEvent) { events = append(events, ev) }),
	)

	require.NoError(t, a.BreakOnAllocation(2))
	p1 := a.Allocate(8)
	p2 := a.Allocate(8)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(2), events[0].Seq)
	assert.Equal(t, p2, events[0].Addr)

	require.NoError(t, a.SetBreakOnRealloc(p1, true))
	p1 = a.Reallocate(p1, 64)
	require.Len(t, events, 2)

	require.NoError(t, a.SetBreakOnFree(p2, true))
	a.Free(p2)
	require.Len(t, events, 3)
	a.Free(p1)
}

func TestAllocator_ConfigurationToken(t *testing.T) {
	rel := newAllocator(t, slabmem.WithDebug(false))
	assert.True(t, rel.CheckConfiguration(slabmem.ConfigTokenRelease))
	assert.False(t, rel.CheckConfiguration(slabmem.ConfigTokenDebug))

	dbg := newAllocator(t, slabmem.WithDebug(true))
	assert.True(t, dbg.CheckConfiguration(slabmem.ConfigTokenDebug))
	assert.False(t, dbg.CheckConfiguration(0))

	assert.True(t, slabmem.CheckConfiguration(slabmem.ConfigToken))
}

func TestAllocator_InvalidOptions(t *testing.T) {
	_, err := slabmem.New(slabmem.WithMinClassSize(12))
	assert.ErrorIs(t, err, slabmem.ErrInvalidArgument)

	_, err = slabmem.New(
		slabmem.WithResourceConfig(resource.Config{}),
		slabmem.WithResourceController(resource.NewController(resource.Config{})),
	)
	assert.ErrorIs(t, err, slabmem.ErrInvalidArgument)
}

func TestAllocator_Budget(t *testing.T) {
	var fatal error
	a := newAllocator(t,
		slabmem.WithDebug(false),
		slabmem.WithResourceConfig(resource.Config{MemoryLimitBytes: 1 << 20}),
		slabmem.WithChunkSize(64<<10),
		slabmem.WithFatalHandler(func(err error) {
			fatal = err
			panic(err)
		}),
	)

	p := a.Allocate(1000)
	assert.Equal(t, int64(64<<10), a.Stats().MemoryUsage)

	err := testutil.CatchPanic(func() { a.Allocate(2 << 20) })
	require.Error(t, err)
	assert.ErrorIs(t, err, slabmem.ErrResourceExhausted)
	assert.ErrorIs(t, fatal, resource.ErrMemoryLimitExceeded)

	a.Free(p)
	assert.LessOrEqual(t, a.Stats().PeakMemory, int64(1<<20))
}

func TestAllocator_Metrics(t *testing.T) {
	mc := &slabmem.BasicMetricsCollector{}
	a, err := slabmem.New(
		slabmem.WithDebug(false),
		slabmem.WithLogger(slabmem.NoopLogger()),
		slabmem.WithMetricsCollector(mc),
	)
	require.NoError(t, err)

	p := a.Allocate(100)
	q := a.Allocate(1 << 20)
	a.Free(p)

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.AllocateCount)
	assert.Equal(t, int64(100+1<<20), stats.AllocateBytes)
	assert.Equal(t, int64(1), stats.FreeCount)
	assert.Equal(t, int64(1), stats.LiveEstimate)
	assert.Equal(t, int64(2), stats.MappingCount)
	assert.Positive(t, stats.MappedBytes)

	a.Free(q)
	require.NoError(t, a.Close(context.Background()))
	assert.Zero(t, mc.GetStats().MappedBytes)
	assert.Zero(t, mc.GetStats().MappingCount)
}

func TestAllocator_Concurrent(t *testing.T) {
	for _, debug := range []bool{false, true} {
		a := newAllocator(t, slabmem.WithDebug(debug))

		err := testutil.Hammer(8, func(worker int) error {
			th := a.AttachThread()
			defer th.Detach()
			th.PushAllocationTag("worker")

			rng := testutil.NewRNG(int64(worker))
			held := make([]uintptr, 0, 64)
			for _, size := range rng.Sizes(2000, 20000) {
				p := th.Allocate(size, slabmem.KindHeapAlloc, "", 0, "")
				slabmem.Bytes(p, size)[0] = byte(worker)
				held = append(held, p)
				if len(held) == cap(held) {
					for _, q := range held {
						if slabmem.Bytes(q, 1)[0] != byte(worker) {
							return errors.New("block shared between workers")
						}
						th.Free(q, slabmem.KindHeapAlloc, "", 0, "")
					}
					held = held[:0]
				}
			}
			for _, q := range held {
				th.Free(q, slabmem.KindHeapAlloc, "", 0, "")
			}
			return nil
		})
		require.NoError(t, err)

		if debug {
			assert.Equal(t, 0, a.Stats().Tracker.Live)
			assert.NoError(t, a.ValidateAll())
		}
	}
}

func TestContext(t *testing.T) {
	a := newAllocator(t)
	th := a.AttachThread()
	defer th.Detach()

	_, ok := slabmem.ThreadFromContext(context.Background())
	assert.False(t, ok)

	ctx := slabmem.NewContext(context.Background(), th)
	got, ok := slabmem.ThreadFromContext(ctx)
	require.True(t, ok)
	assert.Same(t, th, got)
}

func TestDefault(t *testing.T) {
	assert.Same(t, slabmem.Default(), slabmem.Default())

	p := slabmem.Allocate(24)
	require.NotZero(t, p)
	assert.GreaterOrEqual(t, slabmem.SizeOf(p), 24)
	p = slabmem.Reallocate(p, 48)
	slabmem.Free(p)

	z := slabmem.AllocateZeroed(16)
	assert.Equal(t, make([]byte, 16), slabmem.Bytes(z, 16))
	slabmem.Free(z)

	q := slabmem.AllocateAligned(100, 256)
	assert.Zero(t, q%256)
	slabmem.FreeAligned(q, 256)

	th := slabmem.AttachThread()
	th.Detach()
}

func BenchmarkAllocate(b *testing.B) {
	for _, debug := range []bool{false, true} {
		name := "release"
		if debug {
			name = "debug"
		}
		b.Run(name, func(b *testing.B) {
			a, err := slabmem.New(slabmem.WithDebug(debug), slabmem.WithLogger(slabmem.NoopLogger()))
			require.NoError(b, err)
			defer a.Close(context.Background())

			for b.Loop() {
				a.Free(a.Allocate(64))
			}
		})
	}
}
