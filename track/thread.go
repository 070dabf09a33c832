package track

// MaxTags is the depth of a thread's tag stack.
const MaxTags = 16

// Thread is the per-thread tracking block: a pending call site for the next
// tracked call and a stack of allocation tags. A Thread belongs to one
// goroutine at a time and must not be shared.
type Thread struct {
	tracker *Tracker

	site    Site
	hasSite bool

	tags  [MaxTags]string
	depth int // may exceed MaxTags; the excess is counted, not stored

	detached bool
}

// SetSite sets the site used by the next tracked call on this thread.
func (th *Thread) SetSite(s Site) {
	th.site = s
	th.hasSite = !s.IsZero()
}

// takeSite returns and clears the pending site.
func (th *Thread) takeSite() (Site, bool) {
	if th == nil || th.detached || !th.hasSite {
		return Site{}, false
	}
	s := th.site
	th.site, th.hasSite = Site{}, false
	return s, true
}

// PushTag makes tag the current allocation tag. Tags beyond MaxTags are
// counted so that pops stay balanced, but are not recorded.
func (th *Thread) PushTag(tag string) {
	if th.depth < MaxTags {
		th.tags[th.depth] = tag
	} else if th.depth == MaxTags && th.tracker != nil {
		th.tracker.opts.logger.Warn("slabmem: allocation tag stack full", "max", MaxTags, "dropped", tag)
	}
	th.depth++
}

// PopTag removes the current allocation tag. Popping an empty stack is a no-op.
func (th *Thread) PopTag() {
	if th.depth == 0 {
		return
	}
	th.depth--
	if th.depth < MaxTags {
		th.tags[th.depth] = ""
	}
}

// Tag returns the current allocation tag, or "".
func (th *Thread) Tag() string {
	if th == nil || th.depth == 0 {
		return ""
	}
	return th.tags[min(th.depth, MaxTags)-1]
}

// Depth returns the tag stack depth, including tags that were not recorded.
func (th *Thread) Depth() int {
	return th.depth
}

// Detach releases the thread from its tracker and clears its state. A
// detached Thread passed to the tracker behaves like nil.
func (th *Thread) Detach() {
	if th.detached {
		return
	}
	if th.tracker != nil {
		th.tracker.threads.Add(-1)
	}
	*th = Thread{detached: true}
}

// Detached reports whether Detach was called.
func (th *Thread) Detached() bool {
	return th.detached
}
