// Package process tracks exit and load status between a parent and its
// children. Each parent/child pair shares one Relationship record guarded
// by its own kernel lock and condition variable: a waiting parent is
// descheduled like any other blocked thread, so the child keeps getting
// the CPU to report, and the parent holds no scheduler-global state while
// it waits. All operations must be called from a running thread's context.
package process

import (
	"errors"
	"sync"

	"kernsched/internal/kernel/sched"
	"kernsched/internal/logger"

	"github.com/phuslu/log"
)

// LoadStatus reports how far a child got through its startup handshake.
type LoadStatus int32

const (
	// LoadRunning means the child has not reported yet.
	LoadRunning LoadStatus = iota
	// LoadFailed means the child's initialization failed.
	LoadFailed
	// LoadSuccess means the child initialized and is running.
	LoadSuccess
)

// ErrNoSuchChild is returned by Wait when the TID does not name a living,
// not-yet-awaited child of this parent. A child may be waited for at most
// once; the first successful wait removes it from the parent's table.
var ErrNoSuchChild = errors.New("process: no such child or already waited")

// Relationship is the record shared between exactly one parent and one
// child. Whichever side finishes second releases it: if the parent exits
// first, the child cleans up at its own exit; if the child exits first,
// the parent cleans up when it waits or exits. The released flag turns a
// would-be use-after-free into a diagnosable fault.
type Relationship struct {
	lock *sched.Lock
	cond *sched.Cond

	childID      sched.TID
	parentExited bool
	childExited  bool
	released     bool

	exitStatus int
	loadStatus LoadStatus
}

func newRelationship(k *sched.Kernel, childID sched.TID) *Relationship {
	return &Relationship{
		lock:    k.NewLock(),
		cond:    k.NewCond(),
		childID: childID,
	}
}

// ChildID returns the child's thread identifier.
func (r *Relationship) ChildID() sched.TID { return r.childID }

// ReportLoad is called once by the child during startup to tell a
// potentially waiting parent whether initialization succeeded. It is a
// silent no-op when the parent side has already been torn down.
func (r *Relationship) ReportLoad(status LoadStatus) {
	r.lock.Acquire()
	if !r.released && !r.parentExited && r.loadStatus == LoadRunning {
		r.loadStatus = status
		r.cond.Broadcast(r.lock)
	}
	r.lock.Release()
}

// WaitLoad blocks the parent until the child reports its load status or
// exits without reporting. An unreported exit counts as a failed load.
func (r *Relationship) WaitLoad() LoadStatus {
	r.lock.Acquire()
	for r.loadStatus == LoadRunning && !r.childExited {
		r.cond.Wait(r.lock)
	}
	status := r.loadStatus
	r.lock.Release()
	if status == LoadRunning {
		return LoadFailed
	}
	return status
}

// ReportExit is called by the child at termination: it records the exit
// status and signals the condition. If the parent exited first, the
// child owns cleanup and releases the record instead of waking anyone.
func (r *Relationship) ReportExit(status int) {
	r.lock.Acquire()
	if r.released {
		r.lock.Release()
		panic("process: exit reported on a released relationship")
	}
	r.childExited = true
	r.exitStatus = status
	if r.parentExited {
		r.releaseLocked()
	} else {
		r.cond.Broadcast(r.lock)
	}
	r.lock.Release()
}

// releaseLocked marks the record dead. Both sides must be done; a second
// release is a double-free and fatal. Caller holds r.lock.
func (r *Relationship) releaseLocked() {
	if r.released {
		panic("process: relationship released twice")
	}
	if !r.parentExited || !r.childExited {
		panic("process: relationship released with a side still live")
	}
	r.released = true
}

// Table tracks the children of one parent. The table mutex guards only
// the map and is never held across a blocking operation; all blocking
// happens on the per-relationship kernel lock.
type Table struct {
	mu       sync.Mutex
	k        *sched.Kernel
	children map[sched.TID]*Relationship
	log      log.Logger
}

// NewTable creates an empty child table for threads of k.
func NewTable(k *sched.Kernel) *Table {
	return &Table{
		k:        k,
		children: make(map[sched.TID]*Relationship),
		log:      logger.NewLoggerWithContext("process"),
	}
}

// RegisterChild creates the shared record at child-creation time and
// links it from the parent's table. The child side keeps the returned
// pointer.
func (tb *Table) RegisterChild(childID sched.TID) *Relationship {
	tb.mu.Lock()
	if _, dup := tb.children[childID]; dup {
		tb.mu.Unlock()
		panic("process: child registered twice")
	}
	r := newRelationship(tb.k, childID)
	tb.children[childID] = r
	tb.mu.Unlock()
	return r
}

// Wait blocks the parent until the named child reports exit, returns the
// recorded status, and releases the relationship. Each child may be
// waited for at most once; a second wait, or a wait for an unknown TID,
// returns ErrNoSuchChild.
func (tb *Table) Wait(childID sched.TID) (int, error) {
	tb.mu.Lock()
	r, ok := tb.children[childID]
	if !ok {
		tb.mu.Unlock()
		return 0, ErrNoSuchChild
	}
	delete(tb.children, childID)
	tb.mu.Unlock()

	r.lock.Acquire()
	for !r.childExited {
		r.cond.Wait(r.lock)
	}
	status := r.exitStatus
	r.parentExited = true
	r.releaseLocked()
	r.lock.Release()

	tb.log.Debug().Int("child", int(childID)).Int("status", status).Msg("Child reaped")
	return status, nil
}

// Abandon is called when the parent exits without waiting: every
// remaining relationship is marked parent-exited, and any child that has
// already exited is released here since nobody will ever wait for it.
func (tb *Table) Abandon() {
	tb.mu.Lock()
	children := tb.children
	tb.children = make(map[sched.TID]*Relationship)
	tb.mu.Unlock()

	for _, r := range children {
		r.lock.Acquire()
		r.parentExited = true
		if r.childExited {
			r.releaseLocked()
		}
		r.lock.Release()
	}
}
