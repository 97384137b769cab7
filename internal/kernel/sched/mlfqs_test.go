package sched

import "testing"

// The expected values below are the exact results of the 17.14
// fixed-point formulas, not approximations; a drift of one indicates a
// rounding bug, not test flakiness.

func TestMLFQSRecentCPUCharging(t *testing.T) {
	k := New(Config{Policy: MLFQS})

	if k.Tick() {
		t.Fatal("tick requested preemption with nothing ready")
	}
	if got := k.GetRecentCPU(); got != 100 {
		t.Errorf("GetRecentCPU() after one tick = %d, want 100", got)
	}
	if got := k.GetLoadAvg(); got != 0 {
		t.Errorf("GetLoadAvg() before the first second = %d, want 0", got)
	}
}

func TestMLFQSPriorityDerivation(t *testing.T) {
	k := New(Config{Policy: MLFQS})

	// Four ticks charge recent_cpu to 4.0; the fourth re-derives
	// priorities: 63 - round(4/4) - 0 = 62.
	for i := 0; i < priorityUpdateInterval; i++ {
		k.Tick()
	}
	if got := k.GetRecentCPU(); got != 400 {
		t.Errorf("GetRecentCPU() = %d, want 400", got)
	}
	if got := k.GetPriority(); got != PriMax-1 {
		t.Errorf("GetPriority() = %d, want %d", got, PriMax-1)
	}
}

func TestMLFQSLoadAvgAndDecay(t *testing.T) {
	// A 4 Hz clock reaches the once-per-second boundary on the fourth
	// tick: load_avg = 0*(59/60) + 1*(1/60), then recent_cpu (4.0 at
	// that point) decays by (2L)/(2L+1).
	k := New(Config{Policy: MLFQS, TickHz: 4})
	for i := 0; i < 4; i++ {
		k.Tick()
	}
	if got := k.GetLoadAvg(); got != 2 {
		t.Errorf("GetLoadAvg() = %d, want 2 (100/60 rounded)", got)
	}
	if got := k.GetRecentCPU(); got != 13 {
		t.Errorf("GetRecentCPU() = %d, want 13 after decay", got)
	}
}

func TestMLFQSIdleNotCharged(t *testing.T) {
	k := New(Config{Policy: MLFQS, TickHz: 2})

	// Park the only thread so idle takes the CPU, then cross a second
	// boundary: no runnable threads means load_avg stays at zero and
	// idle accrues no usage.
	k.mu.Lock()
	k.current.status = StatusBlocked
	k.schedule()
	k.mu.Unlock()
	if k.Current() != k.idle {
		t.Fatal("idle thread did not take the CPU")
	}

	k.Tick()
	k.Tick()
	if got := k.GetLoadAvg(); got != 0 {
		t.Errorf("GetLoadAvg() = %d, want 0 with no runnable threads", got)
	}
	if got := k.idle.recentCPU; got != 0 {
		t.Errorf("idle recent_cpu = %v, want 0", got)
	}
	s := k.Stats()
	if s.IdleTicks != 2 || s.KernelTicks != 0 {
		t.Errorf("idle/kernel ticks = %d/%d, want 2/0", s.IdleTicks, s.KernelTicks)
	}
}

func TestMLFQSNiceDrivesPriority(t *testing.T) {
	k := New(Config{Policy: MLFQS})

	if err := k.SetNice(10); err != nil {
		t.Fatal(err)
	}
	// 63 - 0 - 2*10
	if got := k.GetPriority(); got != 43 {
		t.Errorf("GetPriority() with nice 10 = %d, want 43", got)
	}

	// Negative niceness clamps at PriMax rather than exceeding it.
	if err := k.SetNice(-5); err != nil {
		t.Fatal(err)
	}
	if got := k.GetPriority(); got != PriMax {
		t.Errorf("GetPriority() with nice -5 = %d, want %d", got, PriMax)
	}
}

func TestMLFQSSetPriorityIgnored(t *testing.T) {
	k := New(Config{Policy: MLFQS})

	before := k.GetPriority()
	if err := k.SetPriority(5); err != nil {
		t.Fatalf("SetPriority under mlfqs must be a defined no-op, got %v", err)
	}
	if got := k.GetPriority(); got != before {
		t.Errorf("priority changed %d -> %d under mlfqs", before, got)
	}
	// Range validation still applies.
	if err := k.SetPriority(PriMax + 1); err == nil {
		t.Error("out-of-range priority accepted under mlfqs")
	}
}

func TestMLFQSSpawnInheritsAccounting(t *testing.T) {
	k := New(Config{Policy: MLFQS})
	if err := k.SetNice(4); err != nil {
		t.Fatal(err)
	}

	tid, err := k.Spawn("child", PriDefault, func() {})
	if err != nil {
		t.Fatal(err)
	}
	child, ok := k.Lookup(tid)
	if !ok {
		t.Fatal("child not in registry")
	}
	if child.Nice() != 4 {
		t.Errorf("child nice = %d, want inherited 4", child.Nice())
	}
	// Derived, not the requested argument: 63 - 0 - 8.
	if child.Priority() != 55 {
		t.Errorf("child priority = %d, want 55", child.Priority())
	}
}
