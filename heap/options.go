package heap

import (
	"log/slog"

	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/slab"
)

// Observer receives chunk and oversize-mapping events.
type Observer interface {
	slab.Observer
	OnOversizeMapped(bytes int)
	OnOversizeUnmapped(bytes int)
}

// NoopObserver is an Observer that does nothing.
type NoopObserver struct {
	slab.NoopObserver
}

// OnOversizeMapped implements Observer.
func (NoopObserver) OnOversizeMapped(int) {}

// OnOversizeUnmapped implements Observer.
func (NoopObserver) OnOversizeUnmapped(int) {}

// Option configures a Heap.
type Option func(*options)

type options struct {
	minClassSize int
	chunkSize    int
	acquirer     slab.MemoryAcquirer
	fatal        fault.Handler
	observer     Observer
	logger       *slog.Logger
}

func defaultOptions() options {
	return options{
		minClassSize: DefaultMinClassSize,
		chunkSize:    slab.DefaultChunkSize,
		fatal:        fault.Panic,
		observer:     NoopObserver{},
		logger:       slog.New(slog.DiscardHandler),
	}
}

// WithMinClassSize sets the smallest class size. It must be a power of two no
// smaller than a pointer; New panics otherwise.
func WithMinClassSize(n int) Option {
	return func(o *options) {
		o.minClassSize = n
	}
}

// WithChunkSize sets the chunk size of the class pools.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithMemoryAcquirer charges chunks and oversize mappings against m.
func WithMemoryAcquirer(m slab.MemoryAcquirer) Option {
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

// WithObserver sets the event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
