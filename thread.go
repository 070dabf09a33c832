package slabmem

import (
	"context"

	"github.com/hupe1980/slabmem/track"
)

// Thread is a per-goroutine tracking block. It carries a pending source
// location for the next call and a stack of allocation tags, and attributes
// the allocations made through it. A Thread must not be shared between
// goroutines.
//
// In release mode the source locations and kinds are accepted and ignored.
type Thread struct {
	alloc *Allocator
	track *track.Thread
}

func (th *Thread) tracking() *track.Thread {
	if th == nil {
		return nil
	}
	return th.track
}

func site(file string, line int, function string) track.Site {
	return track.Site{File: file, Line: line, Function: function}
}

// Allocate allocates size bytes attributed to file:line in function.
func (th *Thread) Allocate(size int, kind Kind, file string, line int, function string) uintptr {
	return th.alloc.allocate(th, size, 0, kind, site(file, line, function))
}

// AllocateAligned allocates size bytes aligned to align.
func (th *Thread) AllocateAligned(size, align int, kind Kind, file string, line int, function string) uintptr {
	return th.alloc.allocate(th, size, align, kind, site(file, line, function))
}

// Reallocate resizes p.
func (th *Thread) Reallocate(p uintptr, size int, file string, line int, function string) uintptr {
	return th.alloc.resize(th, p, size, site(file, line, function))
}

// Free releases p, which must have been allocated with a compatible kind.
func (th *Thread) Free(p uintptr, kind Kind, file string, line int, function string) {
	th.alloc.free(th, p, 0, kind, site(file, line, function))
}

// FreeAligned releases p, allocated with AllocateAligned and the same align.
func (th *Thread) FreeAligned(p uintptr, align int, kind Kind, file string, line int, function string) {
	th.alloc.free(th, p, align, kind, site(file, line, function))
}

// SetThreadTrackingInformation sets the location used by the next call on
// th that does not pass one itself.
func (th *Thread) SetThreadTrackingInformation(file string, line int, function string) {
	th.track.SetSite(site(file, line, function))
}

// PushAllocationTag tags the following allocations with text until the
// matching PopAllocationTag.
func (th *Thread) PushAllocationTag(text string) {
	th.track.PushTag(text)
}

// PopAllocationTag restores the previous tag.
func (th *Thread) PopAllocationTag() {
	th.track.PopTag()
}

// AllocationTag returns the current tag.
func (th *Thread) AllocationTag() string {
	return th.track.Tag()
}

// Detach releases th. Calls on a detached Thread are not attributed.
func (th *Thread) Detach() {
	th.track.Detach()
}

type threadKey struct{}

// NewContext returns a copy of ctx carrying th.
func NewContext(ctx context.Context, th *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, th)
}

// ThreadFromContext returns the Thread stored in ctx by NewContext.
func ThreadFromContext(ctx context.Context) (*Thread, bool) {
	th, ok := ctx.Value(threadKey{}).(*Thread)
	return th, ok && th != nil
}
