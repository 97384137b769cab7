package sched

import (
	"errors"

	"kernsched/internal/fixedpoint"
)

// TID is a thread identifier. TIDs are assigned monotonically and never
// reused for the lifetime of the kernel.
type TID int32

// TIDError is returned by Spawn when no thread could be created.
const TIDError TID = -1

// Status is a thread's scheduling state.
type Status int32

const (
	// StatusRunning is the single thread currently executing.
	StatusRunning Status = iota
	// StatusReady is runnable but not running; the thread sits in the
	// ready queue.
	StatusReady
	// StatusBlocked waits for an event (lock, semaphore, external wakeup).
	StatusBlocked
	// StatusDying is about to be destroyed; reclaimed at the next
	// context switch, never by the thread itself.
	StatusDying
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusReady:
		return "READY"
	case StatusBlocked:
		return "BLOCKED"
	case StatusDying:
		return "DYING"
	default:
		return "UNKNOWN"
	}
}

// Thread priorities and niceness bounds.
const (
	PriMin     = 0  // Lowest priority.
	PriDefault = 31 // Default priority.
	PriMax     = 63 // Highest priority.

	NiceMin     = -20
	NiceDefault = 0
	NiceMax     = 20
)

// maxNameLen bounds thread names; longer names are truncated. Names are
// for debugging only.
const maxNameLen = 16

var (
	// ErrPriorityRange reports a priority outside [PriMin, PriMax].
	// Out-of-range priorities are an error, not a silent clamp, to
	// surface programmer mistakes.
	ErrPriorityRange = errors.New("sched: priority outside [0, 63]")

	// ErrNiceRange reports a niceness outside [NiceMin, NiceMax].
	ErrNiceRange = errors.New("sched: nice outside [-20, 20]")

	// ErrTIDExhausted reports that the identifier space ran out.
	ErrTIDExhausted = errors.New("sched: thread identifier space exhausted")
)

// Thread is a unit of schedulable execution. All fields are guarded by
// the kernel's scheduling mutex; the exported accessors are safe to call
// from the thread itself while it runs, or from any context while the
// scheduler is quiescent (diagnostics paths read a Snapshot instead).
type Thread struct {
	tid    TID
	name   string
	status Status

	priority     int  // effective priority, possibly raised by donation
	basePriority int  // donation-immune priority
	donated      bool // holds a donated priority right now

	nice      int
	recentCPU fixedpoint.FP

	// Locks this thread currently holds, so donation can be recomputed
	// when any of them changes hands, and the single lock it is blocked
	// trying to acquire (nil when not waiting).
	heldLocks []*Lock
	waitingOn *Lock
}

func newThread(tid TID, name string, priority, nice int, recentCPU fixedpoint.FP) *Thread {
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return &Thread{
		tid:          tid,
		name:         name,
		status:       StatusBlocked,
		priority:     priority,
		basePriority: priority,
		nice:         nice,
		recentCPU:    recentCPU,
	}
}

// TID returns the thread's identifier.
func (t *Thread) TID() TID { return t.tid }

// Name returns the thread's debugging name.
func (t *Thread) Name() string { return t.name }

// Status returns the thread's scheduling state.
func (t *Thread) Status() Status { return t.status }

// Priority returns the effective priority used for scheduling.
func (t *Thread) Priority() int { return t.priority }

// BasePriority returns the priority before any donation.
func (t *Thread) BasePriority() int { return t.basePriority }

// Donated reports whether the thread currently holds a donated priority.
func (t *Thread) Donated() bool { return t.donated }

// Nice returns the thread's niceness. Only meaningful under MLFQS.
func (t *Thread) Nice() int { return t.nice }
