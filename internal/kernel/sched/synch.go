package sched

// Reference synchronization primitives. The scheduling core proper only
// depends on their contract (who holds a lock, what a thread waits on,
// block/unblock); these implementations exist so the donation manager
// has a collaborator to drive and so workloads and tests can exercise
// the full acquire/block/donate/release cycle. All operations must be
// called from a running thread's context.

// Semaphore is a counting semaphore. The highest-priority waiter wakes
// first, FIFO among equals.
type Semaphore struct {
	k       *Kernel
	value   int
	waiters []*Thread
}

// NewSemaphore creates a semaphore with the given initial value.
func (k *Kernel) NewSemaphore(value int) *Semaphore {
	return &Semaphore{k: k, value: value}
}

// Down decrements the semaphore, blocking the calling thread until the
// value is positive.
func (s *Semaphore) Down() {
	k := s.k
	k.mu.Lock()
	for s.value == 0 {
		s.waiters = append(s.waiters, k.current)
		k.blockLocked()
	}
	s.value--
	k.mu.Unlock()
}

// TryDown decrements the semaphore without blocking; it reports whether
// the decrement happened.
func (s *Semaphore) TryDown() bool {
	k := s.k
	k.mu.Lock()
	ok := s.value > 0
	if ok {
		s.value--
	}
	k.mu.Unlock()
	return ok
}

// Up increments the semaphore and wakes the highest-priority waiter. If
// the woken thread outranks the caller, the caller yields before Up
// returns; preemption on unblock is synchronous, not deferred to the
// next tick.
func (s *Semaphore) Up() {
	k := s.k
	k.mu.Lock()
	s.value++
	preempt := false
	if len(s.waiters) > 0 {
		w := popHighestWaiter(&s.waiters)
		preempt = k.unblockLocked(w)
	}
	if preempt {
		k.yieldLocked()
	}
	k.mu.Unlock()
}

// Lock is a mutual-exclusion lock with priority donation under the
// round-robin policy. Not recursive.
type Lock struct {
	k       *Kernel
	holder  *Thread
	waiters []*Thread
}

// NewLock creates an unheld lock.
func (k *Kernel) NewLock() *Lock {
	return &Lock{k: k}
}

// Holder returns the thread currently holding the lock, or nil.
func (l *Lock) Holder() *Thread {
	l.k.mu.Lock()
	h := l.holder
	l.k.mu.Unlock()
	return h
}

// Acquire blocks the calling thread until it holds the lock, donating
// its priority to the holder chain while it waits.
func (l *Lock) Acquire() {
	k := l.k
	k.mu.Lock()
	cur := k.current
	if l.holder == cur {
		k.panicf("thread %d acquiring lock it already holds", cur.tid)
	}

	for l.holder != nil {
		cur.waitingOn = l
		k.donate(cur, l.holder)
		l.waiters = append(l.waiters, cur)
		k.blockLocked()
		removeWaiter(&l.waiters, cur)
	}

	cur.waitingOn = nil
	l.holder = cur
	cur.heldLocks = append(cur.heldLocks, l)
	k.mu.Unlock()
}

// Release hands the lock off, reverting any donated priority the caller
// no longer deserves and waking the highest-priority waiter. Releasing a
// donation can drop the caller below a ready thread, so a preemption
// check runs before Release returns.
func (l *Lock) Release() {
	k := l.k
	k.mu.Lock()
	cur := k.current
	if l.holder != cur {
		k.panicf("thread %d releasing lock held by %v", cur.tid, threadID(l.holder))
	}

	l.holder = nil
	for i, held := range cur.heldLocks {
		if held == l {
			cur.heldLocks = append(cur.heldLocks[:i], cur.heldLocks[i+1:]...)
			break
		}
	}
	k.recomputeDonation(cur)

	preempt := false
	if len(l.waiters) > 0 {
		w := popHighestWaiter(&l.waiters)
		if k.unblockLocked(w) {
			preempt = true
		}
	}
	if k.ready.top() > cur.priority {
		preempt = true
	}
	if preempt {
		k.yieldLocked()
	}
	k.mu.Unlock()
}

// Cond is a condition variable used together with a Lock. Each waiter
// parks on its own single-use semaphore; Signal wakes the waiter whose
// thread has the highest priority.
type Cond struct {
	k       *Kernel
	waiters []*Semaphore
}

// NewCond creates a condition variable.
func (k *Kernel) NewCond() *Cond {
	return &Cond{k: k}
}

// Wait atomically releases l and blocks until signaled, then reacquires
// l before returning.
func (c *Cond) Wait(l *Lock) {
	sem := &Semaphore{k: c.k}
	c.k.mu.Lock()
	c.waiters = append(c.waiters, sem)
	c.k.mu.Unlock()

	l.Release()
	sem.Down()
	l.Acquire()
}

// Signal wakes the highest-priority thread waiting on c, if any. The
// caller must hold l.
func (c *Cond) Signal(l *Lock) {
	k := c.k
	k.mu.Lock()
	if l.holder != k.current {
		k.panicf("cond signal without holding the lock")
	}
	var sem *Semaphore
	if len(c.waiters) > 0 {
		sem = c.popHighestLocked()
	}
	k.mu.Unlock()
	if sem != nil {
		sem.Up()
	}
}

// Broadcast wakes every thread waiting on c. The caller must hold l.
func (c *Cond) Broadcast(l *Lock) {
	for {
		k := c.k
		k.mu.Lock()
		empty := len(c.waiters) == 0
		k.mu.Unlock()
		if empty {
			return
		}
		c.Signal(l)
	}
}

// popHighestLocked removes the waiter semaphore whose parked thread has
// the highest priority; a semaphore not yet parked on counts as lowest.
// Caller holds k.mu.
func (c *Cond) popHighestLocked() *Semaphore {
	bestIdx, bestPri := 0, PriMin-1
	for i, sem := range c.waiters {
		if len(sem.waiters) > 0 && sem.waiters[0].priority > bestPri {
			bestIdx, bestPri = i, sem.waiters[0].priority
		}
	}
	sem := c.waiters[bestIdx]
	c.waiters = append(c.waiters[:bestIdx], c.waiters[bestIdx+1:]...)
	return sem
}

// popHighestWaiter removes and returns the highest-priority thread from
// a wait list, preserving FIFO order among equals.
func popHighestWaiter(waiters *[]*Thread) *Thread {
	ws := *waiters
	bestIdx := 0
	for i, w := range ws {
		if w.priority > ws[bestIdx].priority {
			bestIdx = i
		}
	}
	w := ws[bestIdx]
	*waiters = append(ws[:bestIdx], ws[bestIdx+1:]...)
	return w
}

// removeWaiter unlinks t from a wait list if present.
func removeWaiter(waiters *[]*Thread, t *Thread) {
	ws := *waiters
	for i, w := range ws {
		if w == t {
			*waiters = append(ws[:i], ws[i+1:]...)
			return
		}
	}
}

func threadID(t *Thread) any {
	if t == nil {
		return "nobody"
	}
	return t.tid
}
