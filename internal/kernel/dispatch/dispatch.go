// Package dispatch implements the kernel's context-switch collaborator
// on top of goroutines. Every thread gets its own goroutine gated on a
// channel; at most one gate is signaled at a time, so exactly one thread
// executes kernel code at once even though the Go runtime sees many
// goroutines.
package dispatch

import (
	"sync"

	"kernsched/internal/kernel/sched"
	"kernsched/internal/logger"

	"github.com/phuslu/log"
)

// Goroutine is a sched.Dispatcher backed by one goroutine per thread.
type Goroutine struct {
	mu    sync.Mutex
	gates map[sched.TID]chan struct{}
	log   log.Logger
}

// NewGoroutine creates an empty dispatcher.
func NewGoroutine() *Goroutine {
	return &Goroutine{
		gates: make(map[sched.TID]chan struct{}),
		log:   logger.NewLoggerWithContext("dispatch"),
	}
}

// gate returns t's gate channel, creating it on first use. Buffered by
// one so a switch can signal the next thread before the caller parks.
func (d *Goroutine) gate(t *sched.Thread) chan struct{} {
	d.mu.Lock()
	g, ok := d.gates[t.TID()]
	if !ok {
		g = make(chan struct{}, 1)
		d.gates[t.TID()] = g
	}
	d.mu.Unlock()
	return g
}

// Adopt binds the calling goroutine to t. The caller keeps running; its
// gate only matters once it is switched away from.
func (d *Goroutine) Adopt(t *sched.Thread) {
	d.gate(t)
}

// Start creates t's execution context. The goroutine parks until the
// scheduler switches to t for the first time, then invokes run.
func (d *Goroutine) Start(t *sched.Thread, run func()) {
	g := d.gate(t)
	go func() {
		<-g
		run()
	}()
}

// Switch wakes next and parks the caller until prev runs again. When
// prev is exiting it returns immediately instead, letting the dying
// goroutine unwind; its gate is dropped since nothing will ever signal
// it again.
func (d *Goroutine) Switch(prev, next *sched.Thread, prevExits bool) {
	d.gate(next) <- struct{}{}
	if prevExits {
		d.mu.Lock()
		delete(d.gates, prev.TID())
		d.mu.Unlock()
		return
	}
	<-d.gate(prev)
}
