package slabmem

import (
	"errors"
	"sync/atomic"

	"github.com/hupe1980/slabmem/heap"
)

// MetricsCollector defines an interface for collecting allocator metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Methods are called on allocation hot paths and must be cheap and safe for
// concurrent use.
type MetricsCollector interface {
	// RecordAllocate is called after each allocation with the requested size.
	RecordAllocate(size int)

	// RecordFree is called after each release.
	RecordFree()

	// RecordMapped is called when a chunk or oversize block is mapped.
	RecordMapped(bytes int)

	// RecordUnmapped is called when a mapping is returned to the OS.
	RecordUnmapped(bytes int)

	// RecordViolation is called for every error found by the debug layer.
	RecordViolation(err error)

	// RecordLeaks is called once at Close with the leak totals.
	RecordLeaks(count int, bytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAllocate(int)     {}
func (NoopMetricsCollector) RecordFree()            {}
func (NoopMetricsCollector) RecordMapped(int)       {}
func (NoopMetricsCollector) RecordUnmapped(int)     {}
func (NoopMetricsCollector) RecordViolation(error)  {}
func (NoopMetricsCollector) RecordLeaks(int, int64) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocateCount   atomic.Int64
	AllocateBytes   atomic.Int64
	FreeCount       atomic.Int64
	MappedBytes     atomic.Int64
	MappingCount    atomic.Int64
	CorruptionCount atomic.Int64
	MismatchCount   atomic.Int64
	InvalidCount    atomic.Int64
	LeakCount       atomic.Int64
	LeakBytes       atomic.Int64
}

// RecordAllocate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAllocate(size int) {
	b.AllocateCount.Add(1)
	b.AllocateBytes.Add(int64(size))
}

// RecordFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFree() {
	b.FreeCount.Add(1)
}

// RecordMapped implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMapped(bytes int) {
	b.MappingCount.Add(1)
	b.MappedBytes.Add(int64(bytes))
}

// RecordUnmapped implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUnmapped(bytes int) {
	b.MappingCount.Add(-1)
	b.MappedBytes.Add(-int64(bytes))
}

// RecordViolation implements MetricsCollector.
func (b *BasicMetricsCollector) RecordViolation(err error) {
	switch {
	case errors.Is(err, ErrCorruptionDetected):
		b.CorruptionCount.Add(1)
	case errors.Is(err, ErrMismatchedOperation):
		b.MismatchCount.Add(1)
	default:
		b.InvalidCount.Add(1)
	}
}

// RecordLeaks implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLeaks(count int, bytes int64) {
	b.LeakCount.Add(int64(count))
	b.LeakBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocateCount:   b.AllocateCount.Load(),
		AllocateBytes:   b.AllocateBytes.Load(),
		FreeCount:       b.FreeCount.Load(),
		LiveEstimate:    b.AllocateCount.Load() - b.FreeCount.Load(),
		MappedBytes:     b.MappedBytes.Load(),
		MappingCount:    b.MappingCount.Load(),
		CorruptionCount: b.CorruptionCount.Load(),
		MismatchCount:   b.MismatchCount.Load(),
		InvalidCount:    b.InvalidCount.Load(),
		LeakCount:       b.LeakCount.Load(),
		LeakBytes:       b.LeakBytes.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocateCount   int64
	AllocateBytes   int64
	FreeCount       int64
	LiveEstimate    int64
	MappedBytes     int64
	MappingCount    int64
	CorruptionCount int64
	MismatchCount   int64
	InvalidCount    int64
	LeakCount       int64
	LeakBytes       int64
}

// metricsObserver feeds heap mapping events into a MetricsCollector.
type metricsObserver struct {
	mc MetricsCollector
}

var _ heap.Observer = metricsObserver{}

func (o metricsObserver) OnChunkMapped(bytes int)      { o.mc.RecordMapped(bytes) }
func (o metricsObserver) OnChunkUnmapped(bytes int)    { o.mc.RecordUnmapped(bytes) }
func (o metricsObserver) OnOversizeMapped(bytes int)   { o.mc.RecordMapped(bytes) }
func (o metricsObserver) OnOversizeUnmapped(bytes int) { o.mc.RecordUnmapped(bytes) }
