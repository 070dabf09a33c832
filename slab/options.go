package slab

import (
	"log/slog"

	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/internal/mmap"
)

// MemoryAcquirer reserves bytes against a budget before a chunk is mapped.
// AcquireMemory must not block; an error is treated as exhaustion.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Observer is notified when chunks are mapped or returned to the OS.
type Observer interface {
	OnChunkMapped(bytes int)
	OnChunkUnmapped(bytes int)
}

// NoopObserver is an Observer that does nothing.
type NoopObserver struct{}

// OnChunkMapped implements Observer.
func (NoopObserver) OnChunkMapped(int) {}

// OnChunkUnmapped implements Observer.
func (NoopObserver) OnChunkUnmapped(int) {}

// Option configures a Pool.
type Option func(*options)

type options struct {
	chunkSize uintptr
	acquirer  MemoryAcquirer
	fatal     fault.Handler
	observer  Observer
	logger    *slog.Logger
}

func defaultOptions() options {
	return options{
		chunkSize: DefaultChunkSize,
		fatal:     fault.Panic,
		observer:  NoopObserver{},
		logger:    slog.New(slog.DiscardHandler),
	}
}

// WithChunkSize sets the size of each OS mapping. It is rounded up to whole
// pages; non-positive values keep the default.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = mmap.RoundToPage(uintptr(n))
		}
	}
}

// WithMemoryAcquirer charges every chunk against m.
func WithMemoryAcquirer(m MemoryAcquirer) Option {
	return func(o *options) {
		o.acquirer = m
	}
}

// WithFatalHandler replaces the handler run on resource exhaustion.
func WithFatalHandler(h fault.Handler) Option {
	return func(o *options) {
		if h != nil {
			o.fatal = h
		}
	}
}

// WithObserver sets the chunk observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger used for teardown diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
