package sched

import "kernsched/internal/fixedpoint"

// Multi-level feedback queue accounting. Only active when the MLFQS
// policy is selected. All arithmetic is 17.14 fixed point; the rounding
// behavior of the conversions is load-bearing for parity with the
// reference formulas, not a style choice. Nothing here ever blocks.

// priorityUpdateInterval is how often (in ticks) every thread's priority
// is re-derived.
const priorityUpdateInterval = 4

// mlfqsTick runs the per-tick accounting cadence. Caller holds k.mu.
func (k *Kernel) mlfqsTick() {
	// The running thread pays for the tick; idle time is nobody's usage.
	if k.current != k.idle {
		k.current.recentCPU = k.current.recentCPU.AddInt(1)
	}

	// Once per second: recompute the load average, then decay every
	// thread's recent CPU with the new coefficient.
	if k.ticks%uint64(k.tickHz) == 0 {
		k.updateLoadAvg()
		k.decayRecentCPU()
	}

	// Every fourth tick: re-derive every thread's priority.
	if k.ticks%priorityUpdateInterval == 0 {
		k.updatePriorities()
	}
}

// updateLoadAvg folds the current runnable count into the exponentially
// weighted load average: load_avg = (59/60)·load_avg + (1/60)·ready.
// The running thread counts as runnable; idle does not. Caller holds k.mu.
func (k *Kernel) updateLoadAvg() {
	ready := k.ready.len()
	if k.current != k.idle {
		ready++
	}
	k.loadAvg = k.loadAvg.MulInt(59).DivInt(60).
		Add(fixedpoint.FromInt(ready).DivInt(60))
}

// decayRecentCPU applies recent_cpu = (2·load)/(2·load+1)·recent_cpu + nice
// to every thread. Caller holds k.mu.
func (k *Kernel) decayRecentCPU() {
	twice := k.loadAvg.MulInt(2)
	coeff := twice.Div(twice.AddInt(1))
	for _, t := range k.reg.all {
		if t == k.idle {
			continue
		}
		t.recentCPU = coeff.Mul(t.recentCPU).AddInt(t.nice)
	}
}

// mlfqsPriority derives a thread's priority:
// PRI_MAX − recent_cpu/4 − nice·2, clamped to [PriMin, PriMax].
// Caller holds k.mu.
func (k *Kernel) mlfqsPriority(t *Thread) int {
	p := PriMax - t.recentCPU.DivInt(4).Round() - t.nice*2
	if p < PriMin {
		p = PriMin
	} else if p > PriMax {
		p = PriMax
	}
	return p
}

// updatePriorities re-derives every thread's priority and requests a
// preemption if the running thread no longer ranks highest. Caller holds
// k.mu.
func (k *Kernel) updatePriorities() {
	for _, t := range k.reg.all {
		if t == k.idle || t.status == StatusDying {
			continue
		}
		p := k.mlfqsPriority(t)
		k.setEffective(t, p)
		t.basePriority = p
	}
	if k.current != k.idle && k.ready.top() > k.current.priority {
		k.yieldPending.Store(true)
	}
}
