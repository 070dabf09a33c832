package track

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/slabmem/slab"
)

// BreakReason says why a break event fired.
type BreakReason uint8

const (
	BreakAllocation BreakReason = iota + 1
	BreakFree
	BreakRealloc
)

func (r BreakReason) String() string {
	switch r {
	case BreakAllocation:
		return "allocation"
	case BreakFree:
		return "free"
	case BreakRealloc:
		return "realloc"
	default:
		return "unknown"
	}
}

// BreakEvent is delivered to the break hook.
type BreakEvent struct {
	Reason BreakReason
	Seq    uint64
	Addr   uintptr
	Size   int
	Site   Site
}

// Option configures a Tracker.
type Option func(*options)

type options struct {
	strict        bool
	logger        *slog.Logger
	logLimit      rate.Limit
	logBurst      int
	captureCaller bool
	callerSkip    int
	breakHook     func(BreakEvent)
	onViolation   func(error)
	poolOpts      []slab.Option
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		logLimit: rate.Every(100 * time.Millisecond),
		logBurst: 10,
	}
}

// WithStrict makes every violation panic with its error.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithLogger sets the logger violations and break events are written to.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLogLimit throttles violation logging to r events per second with the
// given burst. Suppressed events are counted in Stats.
func WithLogLimit(r rate.Limit, burst int) Option {
	return func(o *options) {
		o.logLimit = r
		o.logBurst = burst
	}
}

// WithCallerCapture attributes calls without an explicit or pending site to
// the caller of the tracker method.
func WithCallerCapture(on bool) Option {
	return func(o *options) {
		o.captureCaller = on
	}
}

// WithCallerSkip skips n additional frames when capturing the caller, for
// wrappers around the tracker.
func WithCallerSkip(n int) Option {
	return func(o *options) {
		o.callerSkip = max(n, 0)
	}
}

// WithBreakHook replaces the default break handler, which logs a warning.
func WithBreakHook(fn func(BreakEvent)) Option {
	return func(o *options) {
		o.breakHook = fn
	}
}

// WithViolationHook is called with every violation before it is reported.
func WithViolationHook(fn func(error)) Option {
	return func(o *options) {
		o.onViolation = fn
	}
}

// WithRecordPoolOptions configures the slab pool that holds allocation
// records.
func WithRecordPoolOptions(opts ...slab.Option) Option {
	return func(o *options) {
		o.poolOpts = append(o.poolOpts, opts...)
	}
}
