package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/slabmem/internal/fs"
	"github.com/hupe1980/slabmem/resource"
)

// Sink persists an encoded leak report under a name.
type Sink interface {
	Store(ctx context.Context, name string, leaks []Leak) error
}

// Name returns a report name for the process started at t.
func Name(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s-%d.tsv", prefix, t.UTC().Format("20060102T150405Z"), os.Getpid())
}

// FileSink writes reports into a directory.
type FileSink struct {
	fs          fs.FileSystem
	dir         string
	compression Compression
	rc          *resource.Controller
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithCompression sets the on-disk encoding.
func WithCompression(c Compression) FileSinkOption {
	return func(s *FileSink) {
		s.compression = c
	}
}

// WithResourceController throttles report writes with rc's IO limit.
func WithResourceController(rc *resource.Controller) FileSinkOption {
	return func(s *FileSink) {
		s.rc = rc
	}
}

// NewFileSink creates a sink writing into dir, which is created on demand.
func NewFileSink(dir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{fs: fs.Default, dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the file a report called name is written to.
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.dir, name+s.compression.Extension())
}

// Store writes the report atomically: it is encoded into a temporary file
// that is renamed into place.
func (s *FileSink) Store(ctx context.Context, name string, leaks []Leak) (err error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	f, err := s.fs.CreateTemp(s.dir, ".report-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	w, err := s.compression.NewWriter(resource.NewRateLimitedWriter(ctx, f, s.rc))
	if err != nil {
		_ = f.Close()
		return err
	}
	if err := WriteTSV(w, leaks); err != nil {
		_ = w.Close()
		_ = f.Close()
		return err
	}
	if err := errors.Join(w.Close(), f.Sync()); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.fs.Rename(tmp, s.Path(name))
}
