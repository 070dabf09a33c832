package heap

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/internal/rawmem"
	"github.com/hupe1980/slabmem/resource"
	"github.com/hupe1980/slabmem/testutil"
)

func TestHeap_Classes(t *testing.T) {
	h := New()
	defer h.Destroy()

	assert.Equal(t, NumClasses, h.NumClasses())
	for i := range NumClasses {
		assert.Equal(t, DefaultMinClassSize<<i, h.ClassSize(i))
	}
	assert.Equal(t, 0, h.ClassSize(-1))
	assert.Equal(t, 0, h.ClassSize(NumClasses))

	maxPooled := h.ClassSize(NumClasses-1) - int(word)
	tests := []struct {
		size   int
		class  int
		pooled bool
	}{
		{0, 0, true},
		{1, int(word / 8), true},
		{24, 2, true},
		{maxPooled, NumClasses - 1, true},
		{maxPooled + 1, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("size=%d", tt.size), func(t *testing.T) {
			class, ok := h.ClassOf(tt.size)
			assert.Equal(t, tt.pooled, ok)
			assert.Equal(t, tt.class, class)
		})
	}
}

func TestHeap_SizeOfRoutesThroughClass(t *testing.T) {
	h := New()
	defer h.Destroy()

	p := h.Allocate(24)
	assert.Equal(t, 32, h.SizeOf(p))
	assert.False(t, h.IsOversize(p))
	assert.Equal(t, 1, h.Stats().Classes[2].InUse)

	h.Free(p)
	assert.Equal(t, 0, h.Stats().Classes[2].InUse)
	assert.Equal(t, 0, h.SizeOf(0))
}

func TestHeap_MinClassSize(t *testing.T) {
	h := New(WithMinClassSize(16))
	defer h.Destroy()

	assert.Equal(t, 16, h.ClassSize(0))
	assert.Equal(t, 16<<10, h.ClassSize(NumClasses-1))

	p := h.Allocate(1)
	assert.Equal(t, 16, h.SizeOf(p))
	h.Free(p)

	for _, n := range []int{0, 12, int(word) / 2} {
		err := testutil.CatchPanic(func() { New(WithMinClassSize(n)) })
		assert.ErrorIs(t, err, fault.ErrInvalidArgument, "min class size %d", n)
	}
}

func TestHeap_AllocateSizes(t *testing.T) {
	h := New()
	defer h.Destroy()

	rng := testutil.NewRNG(4711)
	sizes := append(rng.Sizes(500, 64<<10), 0, 1, 8184, 8185, 1<<20)

	held := make([]uintptr, len(sizes))
	for i, size := range sizes {
		p := h.Allocate(size)
		require.NotZero(t, p)
		assert.Zero(t, p%word, "size %d", size)
		assert.GreaterOrEqual(t, h.SizeOf(p), size)
		rawmem.Fill(p, size, byte(i))
		held[i] = p
	}

	for i, p := range held {
		if sizes[i] > 0 {
			b := rawmem.Bytes(p, sizes[i])
			assert.Equal(t, byte(i), b[0])
			assert.Equal(t, byte(i), b[len(b)-1])
		}
		h.Free(p)
	}

	stats := h.Stats()
	assert.Equal(t, int64(0), stats.OversizeBlocks)
	for i, c := range stats.Classes {
		assert.Equal(t, 0, c.InUse, "class %d", i)
	}
}

func TestHeap_Oversize(t *testing.T) {
	obs := &countingObserver{}
	h := New(WithObserver(obs))
	defer h.Destroy()

	p := h.Allocate(100_000)
	assert.True(t, h.IsOversize(p))
	assert.Equal(t, 100_000, h.SizeOf(p))
	assert.Equal(t, int64(1), h.Stats().OversizeBlocks)
	assert.Equal(t, int64(1), obs.oversize.Load())

	rawmem.Fill(p, 100_000, 0xEE)
	h.Free(p)
	assert.Equal(t, int64(0), h.Stats().OversizeBlocks)
	assert.Equal(t, int64(0), h.Stats().OversizeBytes)
	assert.Equal(t, int64(0), obs.oversize.Load())
}

func TestHeap_AllocateAligned(t *testing.T) {
	h := New()
	defer h.Destroy()

	for a := 1; a <= 64<<10; a <<= 1 {
		for _, size := range []int{1, 24, 4000, 5000, 20_000} {
			t.Run(fmt.Sprintf("align=%d/size=%d", a, size), func(t *testing.T) {
				p := h.AllocateAligned(size, a)
				require.NotZero(t, p)
				assert.Zero(t, p%uintptr(a))
				assert.GreaterOrEqual(t, h.SizeOf(p), size)
				rawmem.Fill(p, size, 0x77)
				h.FreeAligned(p, a)
			})
		}
	}

	stats := h.Stats()
	assert.Equal(t, int64(0), stats.OversizeBlocks)
	for i, c := range stats.Classes {
		assert.Equal(t, 0, c.InUse, "class %d", i)
	}
}

func TestHeap_AllocateAlignedUsesClassOfAlignment(t *testing.T) {
	h := New()
	defer h.Destroy()

	// A 1-byte request aligned to 256 needs a 256-byte element.
	p := h.AllocateAligned(1, 256)
	assert.Equal(t, 256, h.SizeOf(p))
	assert.False(t, h.IsOversize(p))
	h.FreeAligned(p, 256)

	// Beyond the largest pool alignment the block is mapped.
	q := h.AllocateAligned(1, 2*4096)
	assert.True(t, h.IsOversize(q))
	assert.Zero(t, q%(2*4096))
	h.FreeAligned(q, 2*4096)
	assert.Equal(t, int64(0), h.Stats().OversizeBlocks)
}

func TestHeap_Resize(t *testing.T) {
	h := New()
	defer h.Destroy()

	t.Run("nil allocates", func(t *testing.T) {
		p := h.Resize(0, 10)
		require.NotZero(t, p)
		h.Free(p)
	})

	t.Run("zero frees", func(t *testing.T) {
		p := h.Allocate(10)
		class, ok := h.ClassOf(10)
		require.True(t, ok)
		assert.Equal(t, 1, h.Stats().Classes[class].InUse)
		assert.Zero(t, h.Resize(p, 0))
		assert.Equal(t, 0, h.Stats().Classes[class].InUse)
	})

	t.Run("in place within class", func(t *testing.T) {
		p := h.Allocate(24)
		assert.Equal(t, p, h.Resize(p, 32-int(word)))
		assert.Equal(t, p, h.Resize(p, 1))
		h.Free(p)
	})

	t.Run("grow copies", func(t *testing.T) {
		p := h.Allocate(24)
		rawmem.Fill(p, 24, 0x42)
		q := h.Resize(p, 100)
		assert.NotEqual(t, p, q)
		assert.Equal(t, 128, h.SizeOf(q))
		for _, b := range rawmem.Bytes(q, 24) {
			assert.Equal(t, byte(0x42), b)
		}
		h.Free(q)
	})

	t.Run("oversize", func(t *testing.T) {
		p := h.Allocate(10_000)
		rawmem.Fill(p, 10_000, 0x13)
		assert.Equal(t, p, h.Resize(p, 10_000))

		q := h.Resize(p, 20_000)
		assert.Equal(t, 20_000, h.SizeOf(q))
		assert.Equal(t, byte(0x13), rawmem.Bytes(q, 10_000)[9_999])

		r := h.Resize(q, 16)
		assert.False(t, h.IsOversize(r))
		assert.Equal(t, byte(0x13), rawmem.Bytes(r, 16)[15])
		h.Free(r)
		assert.Equal(t, int64(0), h.Stats().OversizeBlocks)
	})
}

func TestHeap_InvalidArguments(t *testing.T) {
	h := New()
	defer h.Destroy()

	assert.ErrorIs(t, testutil.CatchPanic(func() { h.Allocate(-1) }), fault.ErrInvalidArgument)
	assert.ErrorIs(t, testutil.CatchPanic(func() { h.AllocateAligned(8, 24) }), fault.ErrInvalidArgument)
	assert.NotPanics(t, func() { h.Free(0) })
	assert.NotPanics(t, func() { h.FreeAligned(0, 64) })
}

func TestHeap_BudgetExhausted(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 10})
	h := New(WithMemoryAcquirer(rc), WithChunkSize(32<<10))
	defer h.Destroy()

	p := h.Allocate(16)
	assert.Equal(t, int64(32<<10), rc.MemoryUsage())

	err := testutil.CatchPanic(func() { h.Allocate(1 << 20) })
	assert.ErrorIs(t, err, fault.ErrResourceExhausted)
	assert.Equal(t, int64(32<<10), rc.MemoryUsage())

	h.Free(p)
}

func TestHeap_Concurrent(t *testing.T) {
	h := New(WithChunkSize(64 << 10))
	defer h.Destroy()

	err := testutil.Hammer(8, func(w int) error {
		rng := testutil.NewRNG(int64(w))
		held := make([]uintptr, 0, 32)
		for _, size := range rng.Sizes(2000, 16<<10) {
			p := h.Allocate(size)
			if size > 0 {
				rawmem.Bytes(p, size)[0] = byte(w)
			}
			held = append(held, p)
			if len(held) == cap(held) {
				for _, q := range held {
					if rawmem.Bytes(q, 1)[0] != byte(w) {
						return fmt.Errorf("block %#x of worker %d overwritten", q, w)
					}
					h.Free(q)
				}
				held = held[:0]
			}
		}
		for _, q := range held {
			h.Free(q)
		}
		return nil
	})
	require.NoError(t, err)

	stats := h.Stats()
	assert.Equal(t, int64(0), stats.OversizeBlocks)
	for i, c := range stats.Classes {
		assert.Equal(t, 0, c.InUse, "class %d", i)
		assert.Equal(t, c.Capacity, c.Free, "class %d", i)
	}
}

type countingObserver struct {
	NoopObserver
	oversize atomic.Int64
}

func (o *countingObserver) OnOversizeMapped(int)   { o.oversize.Add(1) }
func (o *countingObserver) OnOversizeUnmapped(int) { o.oversize.Add(-1) }

func BenchmarkHeap_AllocateFree(b *testing.B) {
	h := New()
	defer h.Destroy()

	for _, size := range []int{16, 256, 4096} {
		b.Run(fmt.Sprintf("size=%d", size), func(b *testing.B) {
			for b.Loop() {
				h.Free(h.Allocate(size))
			}
		})
	}
}
