package resource

import (
	"context"
	"io"
)

// RateLimitedWriter throttles writes to an io.Writer with the controller's IO
// limit. Large writes are split into burst-sized pieces, so a cancelled
// context reports how much was written before it stopped.
type RateLimitedWriter struct {
	ctx context.Context
	dst io.Writer
	rc  *Controller
}

// NewRateLimitedWriter returns a writer that waits on rc before writing to
// dst. A nil rc writes through unthrottled.
func NewRateLimitedWriter(ctx context.Context, dst io.Writer, rc *Controller) *RateLimitedWriter {
	return &RateLimitedWriter{ctx: ctx, dst: dst, rc: rc}
}

func (w *RateLimitedWriter) Write(p []byte) (int, error) {
	step := w.rc.IOBurst()
	if step == 0 {
		return w.dst.Write(p)
	}

	written := 0
	for len(p) > 0 {
		piece := p[:min(len(p), step)]
		if err := w.rc.AcquireIO(w.ctx, len(piece)); err != nil {
			return written, err
		}
		n, err := w.dst.Write(piece)
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
