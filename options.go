package slabmem

import (
	"fmt"
	"io"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/hupe1980/slabmem/heap"
	"github.com/hupe1980/slabmem/internal/fault"
	"github.com/hupe1980/slabmem/report"
	"github.com/hupe1980/slabmem/resource"
	"github.com/hupe1980/slabmem/slab"
	"github.com/hupe1980/slabmem/track"
)

const wordSize = strconv.IntSize / 8

type options struct {
	debug            bool
	strict           bool
	captureCaller    bool
	logger           *Logger
	metricsCollector MetricsCollector
	resourceConfig   *resource.Config
	controller       *resource.Controller
	minClassSize     int
	chunkSize        int
	fatalHandler     func(error)
	breakHook        func(BreakEvent)
	logLimit         rate.Limit
	logBurst         int
	hasLogLimit      bool
	leakReport       io.Writer
	reportSink       report.Sink
	reportPrefix     string
}

// Option configures an Allocator.
type Option func(*options)

func defaultOptions() options {
	return options{
		debug:            defaultDebug,
		logger:           NewLogger(nil),
		metricsCollector: NoopMetricsCollector{},
		minClassSize:     8,
		reportPrefix:     "slabmem",
	}
}

func (o *options) validate() error {
	if o.minClassSize < wordSize || o.minClassSize&(o.minClassSize-1) != 0 {
		return fmt.Errorf("%w: min class size %d is not a power of two >= %d", fault.ErrInvalidArgument, o.minClassSize, wordSize)
	}
	largest := o.minClassSize << (heap.NumClasses - 1)
	if o.chunkSize < 0 || (o.chunkSize > 0 && o.chunkSize <= largest+int(slab.ChunkHeaderSize)) {
		return fmt.Errorf("%w: chunk size %d cannot hold a %d byte class", fault.ErrInvalidArgument, o.chunkSize, largest)
	}
	if o.resourceConfig != nil && o.controller != nil {
		return fmt.Errorf("%w: both a resource config and a controller are set", fault.ErrInvalidArgument)
	}
	return nil
}

// WithDebug selects the debug (tracking) backend. The default follows the
// slabdebug build tag.
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithStrict makes debug violations panic instead of being logged.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithCallerCapture attributes untagged debug allocations to the calling
// function using runtime.Caller. This costs a stack walk per call.
func WithCallerCapture(on bool) Option {
	return func(o *options) {
		o.captureCaller = on
	}
}

// WithLogger sets the logger.
//
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceConfig limits the bytes the allocator maps and the rate at
// which leak reports are written.
func WithResourceConfig(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = &cfg
	}
}

// WithResourceController shares a budget between several allocators.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithMinClassSize sets the smallest size class. It must be a power of two.
func WithMinClassSize(n int) Option {
	return func(o *options) {
		o.minClassSize = n
	}
}

// WithChunkSize sets the size of the mappings backing each size class.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

// WithFatalHandler replaces the default handler (panic) for memory
// exhaustion. The handler must not return.
func WithFatalHandler(h func(error)) Option {
	return func(o *options) {
		o.fatalHandler = h
	}
}

// WithBreakHook is called when a break set with BreakOnAllocation,
// SetBreakOnFree or SetBreakOnRealloc fires. Without a hook a warning is
// logged.
func WithBreakHook(fn func(BreakEvent)) Option {
	return func(o *options) {
		o.breakHook = fn
	}
}

// WithLogLimit throttles violation logging to r events per second.
func WithLogLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.logLimit, o.logBurst, o.hasLogLimit = r, burst, true
	}
}

// WithLeakReport writes the tab-separated leak report to w on Close.
func WithLeakReport(w io.Writer) Option {
	return func(o *options) {
		o.leakReport = w
	}
}

// WithReportSink stores the leak report in s on Close.
func WithReportSink(s report.Sink) Option {
	return func(o *options) {
		o.reportSink = s
	}
}

// WithReportPrefix sets the object name prefix used with WithReportSink.
func WithReportPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.reportPrefix = prefix
		}
	}
}

// BreakEvent describes a fired break.
type BreakEvent = track.BreakEvent
