package sched

// maxDonationDepth bounds how far a donation propagates along a chain of
// nested lock waits. Lock-wait graphs are required to be acyclic, so
// propagation always terminates; the cap matches the nesting depth the
// original kernel's tests exercise, and deeper chains simply stop
// inheriting.
const maxDonationDepth = 8

// donate raises holder's effective priority to waiter's when the waiter
// outranks it, and walks the chain: if holder is itself blocked on a
// lock, its holder inherits too. Called when waiter is about to block on
// a lock held by holder. Disabled under MLFQS, where priority is fully
// derived. Caller holds k.mu.
func (k *Kernel) donate(waiter, holder *Thread) {
	if k.policy == MLFQS {
		return
	}
	for depth := 0; depth < maxDonationDepth && holder != nil; depth++ {
		if waiter.priority <= holder.priority {
			break
		}
		k.setEffective(holder, waiter.priority)
		holder.donated = true
		k.log.Trace().
			Int("from", int(waiter.tid)).
			Int("to", int(holder.tid)).
			Int("priority", waiter.priority).
			Msg("Priority donated")
		if holder.waitingOn == nil {
			break
		}
		holder = holder.waitingOn.holder
	}
}

// recomputeDonation recomputes t's effective priority from scratch: the
// maximum of its own base priority and the highest priority among
// waiters of every lock it still holds. A simple "pop last donation"
// would be wrong because a thread may hold several locks donated from
// different waiters at once. Caller holds k.mu.
func (k *Kernel) recomputeDonation(t *Thread) {
	if k.policy == MLFQS {
		return
	}
	best := t.basePriority
	donated := false
	for _, l := range t.heldLocks {
		for _, w := range l.waiters {
			if w.priority > best {
				best = w.priority
				donated = true
			}
		}
	}
	t.donated = donated
	k.setEffective(t, best)
}
