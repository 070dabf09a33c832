package track

import "github.com/hupe1980/slabmem/report"

// Leaks returns a snapshot of every live allocation in allocation order.
func (t *Tracker) Leaks() []report.Leak {
	t.mu.Lock()
	defer t.mu.Unlock()

	leaks := make([]report.Leak, 0, t.live.Len())
	t.live.Each(func(r *record) bool {
		leaks = append(leaks, t.leakOf(r))
		return true
	})
	return leaks
}

// Drain empties the registry and returns one leak per record. The records
// are released; the blocks they describe are left alone. Pointers drained
// this way are unknown to the tracker afterwards.
func (t *Tracker) Drain() []report.Leak {
	t.mu.Lock()
	var recs []*record
	for r := t.live.PopHead(); r != nil; r = t.live.PopHead() {
		recs = append(recs, r)
	}
	t.mu.Unlock()

	leaks := make([]report.Leak, 0, len(recs))
	for _, r := range recs {
		leaks = append(leaks, t.leakOf(r))
		r.magic.Store(0)
		t.records.Free(r.addr())
	}
	return leaks
}
