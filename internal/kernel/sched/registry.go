package sched

import (
	"math"

	"kernsched/internal/maps"
)

// registry owns the set of all live threads. The all-threads slice and
// TID allocator are guarded by the kernel mutex because insertion and
// removal must be excluded from concurrent scheduling decisions; the
// byTID map is a lock-free concurrent map so diagnostics and metrics
// lookups never enter the scheduler's critical section.
type registry struct {
	byTID   maps.ConcurrentMap[TID, *Thread]
	all     []*Thread // guarded by Kernel.mu
	nextTID TID       // guarded by Kernel.mu
}

func newRegistry() *registry {
	return &registry{
		byTID:   maps.NewConcurrentMap[TID, *Thread](),
		nextTID: 1,
	}
}

// allocTID hands out the next identifier. Identifiers are monotonic and
// never reused while the kernel runs.
func (r *registry) allocTID() (TID, error) {
	if r.nextTID == math.MaxInt32 {
		return TIDError, ErrTIDExhausted
	}
	tid := r.nextTID
	r.nextTID++
	return tid, nil
}

func (r *registry) insert(t *Thread) {
	r.all = append(r.all, t)
	r.byTID.Store(t.tid, t)
}

func (r *registry) remove(t *Thread) {
	for i, cur := range r.all {
		if cur == t {
			r.all = append(r.all[:i], r.all[i+1:]...)
			break
		}
	}
	r.byTID.Delete(t.tid)
}

// Lookup resolves a TID to its thread without entering the scheduler's
// critical section. Returns false for unknown or already-reclaimed TIDs.
func (k *Kernel) Lookup(tid TID) (*Thread, bool) {
	return k.reg.byTID.Load(tid)
}

// ForEach applies visit to every live thread with the scheduler locked,
// so visitors observe a consistent state even while other threads run.
// Visitors must not block or call back into the kernel; code that only
// needs a point-in-time copy should use Snapshot instead.
func (k *Kernel) ForEach(visit func(*Thread)) {
	k.mu.Lock()
	for _, t := range k.reg.all {
		visit(t)
	}
	k.mu.Unlock()
}
