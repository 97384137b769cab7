package sched

import (
	"fmt"
	"sync"
	"sync/atomic"

	"kernsched/internal/fixedpoint"
	"kernsched/internal/logger"

	"github.com/phuslu/log"
)

// Policy selects how the ready set is ordered. Chosen once at boot and
// immutable for the run.
type Policy int

const (
	// RoundRobin schedules strictly by effective priority with FIFO
	// rotation inside a band; priorities are set by callers and may be
	// raised by donation.
	RoundRobin Policy = iota
	// MLFQS derives priority from decayed CPU usage and niceness;
	// manual priority setting and donation are disabled.
	MLFQS
)

func (p Policy) String() string {
	if p == MLFQS {
		return "mlfqs"
	}
	return "round-robin"
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "round-robin":
		return RoundRobin, nil
	case "mlfqs":
		return MLFQS, nil
	default:
		return RoundRobin, fmt.Errorf("sched: unknown policy %q", s)
	}
}

// Dispatcher is the context-switch collaborator. The kernel decides who
// runs next; the dispatcher moves execution there. Register/stack
// handling is entirely its problem.
type Dispatcher interface {
	// Adopt binds the calling goroutine to t, which becomes the initial
	// running thread.
	Adopt(t *Thread)
	// Start creates an execution context for t that invokes run when t
	// is first scheduled.
	Start(t *Thread, run func())
	// Switch transfers execution from prev to next. It wakes next and,
	// unless prevExits, parks the caller until prev is scheduled again.
	// With prevExits set it returns immediately so the dying thread's
	// context can unwind.
	Switch(prev, next *Thread, prevExits bool)
}

// nopDispatcher drives no execution contexts at all; the kernel degrades
// to a pure state machine. Used by tests that assert on scheduling
// decisions without running thread bodies.
type nopDispatcher struct{}

func (nopDispatcher) Adopt(*Thread)                 {}
func (nopDispatcher) Start(*Thread, func())         {}
func (nopDispatcher) Switch(*Thread, *Thread, bool) {}

// Config carries the boot-time scheduler settings.
type Config struct {
	Policy     Policy
	TickHz     int        // timer ticks per second; 0 means 100
	TimeSlice  int        // ticks per round-robin slice; 0 means 4
	Dispatcher Dispatcher // nil means no execution contexts
}

// Kernel is the thread-scheduling core: registry, ready set, donation,
// and MLFQS accounting for a single modeled CPU. All bookkeeping is
// guarded by one mutex, preserving the original's "global critical
// section" semantics on a platform with real parallelism.
type Kernel struct {
	mu sync.Mutex

	policy    Policy
	tickHz    int
	timeSlice int
	disp      Dispatcher

	reg     *registry
	ready   readyQueue
	current *Thread
	idle    *Thread
	zombie  *Thread // dying thread awaiting reclamation at the next switch

	// idleKick wakes the idle thread when an external context readies a
	// thread while idle is on the CPU.
	idleKick chan struct{}

	// yieldPending asks the running thread to yield at its next safe
	// preemption point. Set from interrupt (timer) context.
	yieldPending atomic.Bool

	loadAvg fixedpoint.FP

	ticks       uint64
	idleTicks   uint64
	kernelTicks uint64
	ctxSwitches uint64
	spawns      uint64
	exits       uint64
	sliceTicks  int

	log log.Logger
}

// New boots a kernel. The calling goroutine is adopted as the initial
// "main" thread, running at PriDefault; an idle thread is created to
// soak up CPU when the ready set is empty.
func New(cfg Config) *Kernel {
	if cfg.TickHz <= 0 {
		cfg.TickHz = 100
	}
	if cfg.TimeSlice <= 0 {
		cfg.TimeSlice = 4
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = nopDispatcher{}
	}

	k := &Kernel{
		policy:    cfg.Policy,
		tickHz:    cfg.TickHz,
		timeSlice: cfg.TimeSlice,
		disp:      cfg.Dispatcher,
		reg:       newRegistry(),
		idleKick:  make(chan struct{}, 1),
		log:       logger.NewLoggerWithContext("sched"),
	}

	tid, _ := k.reg.allocTID()
	main := newThread(tid, "main", PriDefault, NiceDefault, 0)
	main.status = StatusRunning
	k.reg.insert(main)
	k.current = main
	k.disp.Adopt(main)

	tid, _ = k.reg.allocTID()
	idle := newThread(tid, "idle", PriMin, NiceDefault, 0)
	idle.status = StatusBlocked
	k.reg.insert(idle)
	k.idle = idle
	k.disp.Start(idle, k.idleLoop)

	k.log.Info().
		Str("policy", cfg.Policy.String()).
		Int("tick_hz", cfg.TickHz).
		Int("time_slice", cfg.TimeSlice).
		Msg("Scheduler booted")

	return k
}

// idleLoop runs on the idle thread: sleep until an external wakeup
// readies somebody, then get off the CPU.
func (k *Kernel) idleLoop() {
	for {
		<-k.idleKick
		k.Yield()
	}
}

// Spawn creates a new thread in READY state with the given base priority
// and makes it eligible for scheduling. Under MLFQS the priority argument
// is still validated but the effective priority is derived from the
// inherited niceness and recent CPU usage. If the new thread outranks the
// caller, the caller yields immediately.
func (k *Kernel) Spawn(name string, priority int, entry func()) (TID, error) {
	if priority < PriMin || priority > PriMax {
		return TIDError, ErrPriorityRange
	}

	k.mu.Lock()
	tid, err := k.reg.allocTID()
	if err != nil {
		k.mu.Unlock()
		return TIDError, err
	}

	// Niceness and recent CPU are inherited from the spawning thread.
	parent := k.current
	t := newThread(tid, name, priority, parent.nice, parent.recentCPU)
	if k.policy == MLFQS {
		t.priority = k.mlfqsPriority(t)
		t.basePriority = t.priority
	}
	k.reg.insert(t)
	k.spawns++

	k.disp.Start(t, func() {
		k.onScheduledIn()
		entry()
		k.Exit()
	})

	t.status = StatusReady
	k.ready.push(t)

	k.log.Debug().Int("tid", int(tid)).Str("name", t.name).
		Int("priority", t.priority).Msg("Thread spawned")

	if t.priority > k.current.priority {
		k.yieldLocked()
	}
	k.mu.Unlock()
	return tid, nil
}

// Current returns the thread owning the calling context. Defined for any
// code running on a thread's execution context, including the timer
// collaborator borrowing it.
func (k *Kernel) Current() *Thread {
	k.mu.Lock()
	t := k.current
	k.mu.Unlock()
	return t
}

// Yield moves the running thread to the tail of its priority band and
// reschedules.
func (k *Kernel) Yield() {
	k.mu.Lock()
	k.yieldLocked()
	k.mu.Unlock()
}

// MaybeYield yields if a preemption was requested from interrupt context
// since the last switch. Threads call this at their safe preemption
// points.
func (k *Kernel) MaybeYield() {
	if k.yieldPending.Load() {
		k.Yield()
	}
}

// yieldLocked re-enqueues the current thread and schedules. Caller holds
// k.mu; it is still held on return.
func (k *Kernel) yieldLocked() {
	t := k.current
	k.yieldPending.Store(false)
	if t == k.idle {
		t.status = StatusBlocked
	} else {
		t.status = StatusReady
		k.ready.push(t)
	}
	k.schedule()
}

// Block transitions the calling thread RUNNING→BLOCKED and schedules.
// The caller is responsible for arranging its own wakeup; losing one is
// not possible while k.mu is held across the status change, which is why
// the synchronization primitives enqueue themselves on a wait list under
// the same critical section.
func (k *Kernel) Block() {
	k.mu.Lock()
	k.blockLocked()
	k.mu.Unlock()
}

func (k *Kernel) blockLocked() {
	t := k.current
	if t == k.idle {
		k.panicf("idle thread attempted to block")
	}
	t.status = StatusBlocked
	k.schedule()
}

// Unblock transitions t BLOCKED→READY. It returns true when t outranks
// the running thread, i.e. a preemption is warranted: callers on a
// thread context should yield immediately, external contexts (the timer,
// a wakeup from outside the kernel) rely on the pending-yield flag and
// the idle kick instead.
func (k *Kernel) Unblock(t *Thread) bool {
	k.mu.Lock()
	preempt := k.unblockLocked(t)
	if preempt {
		k.yieldPending.Store(true)
		if k.current == k.idle {
			select {
			case k.idleKick <- struct{}{}:
			default:
			}
		}
	}
	k.mu.Unlock()
	return preempt
}

func (k *Kernel) unblockLocked(t *Thread) bool {
	if t.status != StatusBlocked {
		k.panicf("unblock of thread %d in state %s", t.tid, t.status)
	}
	t.status = StatusReady
	k.ready.push(t)
	return t.priority > k.current.priority
}

// Exit terminates the calling thread. The transition to DYING and the
// switch away happen as one atomic step under k.mu; the control block is
// reclaimed by whichever thread runs next, never by the exiting thread,
// which is still executing on its own context.
func (k *Kernel) Exit() {
	k.mu.Lock()
	t := k.current
	if len(t.heldLocks) > 0 {
		k.log.Warn().Int("tid", int(t.tid)).Int("locks", len(t.heldLocks)).
			Msg("Thread exiting while holding locks")
	}
	t.status = StatusDying
	k.exits++
	k.schedule()
	// Not reached by spawned threads: Switch returns without parking and
	// the goroutine unwinds through the entry wrapper.
}

// schedule switches to the next ready thread, falling back to idle when
// the ready set is empty. Caller holds k.mu and has already moved the
// current thread out of RUNNING (into the ready queue, BLOCKED, or
// DYING). On return k.mu is held again, except on the dying path where
// the caller's context is unwinding and must not touch kernel state.
func (k *Kernel) schedule() {
	prev := k.current
	next := k.ready.pop()
	if next == nil {
		next = k.idle
	}
	if next == prev {
		// prev is still the highest-priority runnable thread.
		prev.status = StatusRunning
		return
	}

	next.status = StatusRunning
	k.current = next
	k.sliceTicks = 0
	k.ctxSwitches++

	prevExits := prev.status == StatusDying
	if prevExits {
		if k.zombie != nil {
			k.panicf("unreclaimed zombie thread %d at exit of %d", k.zombie.tid, prev.tid)
		}
		k.zombie = prev
	}

	k.mu.Unlock()
	k.disp.Switch(prev, next, prevExits)
	if prevExits {
		return
	}

	// prev has been scheduled back in.
	k.mu.Lock()
	k.reapLocked()
}

// onScheduledIn runs as the first act of a freshly started thread, which
// arrives without passing through schedule's tail and so must reclaim a
// predecessor that died switching to it.
func (k *Kernel) onScheduledIn() {
	k.mu.Lock()
	k.reapLocked()
	k.mu.Unlock()
}

// reapLocked frees the control block of a thread that died at the
// previous context switch. Caller holds k.mu.
func (k *Kernel) reapLocked() {
	if z := k.zombie; z != nil {
		k.zombie = nil
		k.reg.remove(z)
		k.log.Debug().Int("tid", int(z.tid)).Str("name", z.name).Msg("Thread reclaimed")
	}
}

// Tick is called by the timer collaborator once per interrupt period. It
// runs the MLFQS accounting cadence and reports whether the running
// thread should be preempted at its next safe point. Tick never blocks.
func (k *Kernel) Tick() bool {
	k.mu.Lock()
	k.ticks++
	t := k.current
	if t == k.idle {
		k.idleTicks++
	} else {
		k.kernelTicks++
	}

	if k.policy == MLFQS {
		k.mlfqsTick()
	}

	k.sliceTicks++
	preempt := false
	if t != k.idle {
		top := k.ready.top()
		if top > t.priority {
			preempt = true
		} else if top == t.priority && k.sliceTicks >= k.timeSlice {
			preempt = true
		}
	} else if k.ready.len() > 0 {
		// Idle is on the CPU with work waiting; kick it off.
		select {
		case k.idleKick <- struct{}{}:
		default:
		}
	}
	if preempt {
		k.yieldPending.Store(true)
	}
	k.mu.Unlock()
	return preempt
}

// GetPriority returns the calling thread's effective priority.
func (k *Kernel) GetPriority() int {
	k.mu.Lock()
	p := k.current.priority
	k.mu.Unlock()
	return p
}

// SetPriority sets the calling thread's base priority. Under MLFQS
// priority is derived, not set: the call is a defined no-op so callers
// written against either policy remain safe. Lowering the priority below
// a ready thread's yields immediately.
func (k *Kernel) SetPriority(priority int) error {
	if priority < PriMin || priority > PriMax {
		return ErrPriorityRange
	}
	if k.policy == MLFQS {
		return nil
	}

	k.mu.Lock()
	t := k.current
	t.basePriority = priority
	// Effective priority is the max of the new base and any active
	// donations; recomputing covers both raising and lowering.
	k.recomputeDonation(t)
	if k.ready.top() > t.priority {
		k.yieldLocked()
	}
	k.mu.Unlock()
	return nil
}

// GetNice returns the calling thread's niceness.
func (k *Kernel) GetNice() int {
	k.mu.Lock()
	n := k.current.nice
	k.mu.Unlock()
	return n
}

// SetNice sets the calling thread's niceness and, under MLFQS, re-derives
// its priority immediately, yielding if it no longer ranks highest.
func (k *Kernel) SetNice(nice int) error {
	if nice < NiceMin || nice > NiceMax {
		return ErrNiceRange
	}

	k.mu.Lock()
	t := k.current
	t.nice = nice
	if k.policy == MLFQS {
		k.setEffective(t, k.mlfqsPriority(t))
		if k.ready.top() > t.priority {
			k.yieldLocked()
		}
	}
	k.mu.Unlock()
	return nil
}

// GetLoadAvg returns 100 times the system load average, rounded to the
// nearest integer.
func (k *Kernel) GetLoadAvg() int {
	k.mu.Lock()
	v := k.loadAvg.MulInt(100).Round()
	k.mu.Unlock()
	return v
}

// GetRecentCPU returns 100 times the calling thread's recent CPU usage,
// rounded to the nearest integer.
func (k *Kernel) GetRecentCPU() int {
	k.mu.Lock()
	v := k.current.recentCPU.MulInt(100).Round()
	k.mu.Unlock()
	return v
}

// setEffective updates t's effective priority, keeping the ready queue's
// band placement consistent. Caller holds k.mu.
func (k *Kernel) setEffective(t *Thread, priority int) {
	if priority == t.priority {
		return
	}
	if t.status == StatusReady {
		if !k.ready.remove(t) {
			k.panicf("ready thread %d missing from ready queue", t.tid)
		}
		t.priority = priority
		k.ready.push(t)
	} else {
		t.priority = priority
	}
}

// panicf halts the kernel with a diagnostic. Invariant violations are
// never recovered from; continuing risks silent corruption of scheduler
// state.
func (k *Kernel) panicf(format string, args ...any) {
	msg := "kernel panic: " + fmt.Sprintf(format, args...)
	k.log.Error().Msg(msg)
	panic(msg)
}
