package sched

// ThreadInfo is a point-in-time copy of a thread's observable state, for
// diagnostics and metrics. No stability contract.
type ThreadInfo struct {
	TID          TID
	Name         string
	Status       Status
	Priority     int
	BasePriority int
	Nice         int
	RecentCPU100 int // recent CPU usage, times 100
}

// Stats is a point-in-time copy of the kernel's counters.
type Stats struct {
	Ticks           uint64
	IdleTicks       uint64
	KernelTicks     uint64
	ContextSwitches uint64
	Spawns          uint64
	Exits           uint64
	ReadyThreads    int
	LoadAvg100      int // load average, times 100
}

// Snapshot returns the state of every live thread.
func (k *Kernel) Snapshot() []ThreadInfo {
	k.mu.Lock()
	infos := make([]ThreadInfo, 0, len(k.reg.all))
	for _, t := range k.reg.all {
		infos = append(infos, ThreadInfo{
			TID:          t.tid,
			Name:         t.name,
			Status:       t.status,
			Priority:     t.priority,
			BasePriority: t.basePriority,
			Nice:         t.nice,
			RecentCPU100: t.recentCPU.MulInt(100).Round(),
		})
	}
	k.mu.Unlock()
	return infos
}

// Stats returns the kernel's counters.
func (k *Kernel) Stats() Stats {
	k.mu.Lock()
	s := Stats{
		Ticks:           k.ticks,
		IdleTicks:       k.idleTicks,
		KernelTicks:     k.kernelTicks,
		ContextSwitches: k.ctxSwitches,
		Spawns:          k.spawns,
		Exits:           k.exits,
		ReadyThreads:    k.ready.len(),
		LoadAvg100:      k.loadAvg.MulInt(100).Round(),
	}
	k.mu.Unlock()
	return s
}

// LogStats dumps the tick counters and every live thread's name, status,
// and priority. Debugging only.
func (k *Kernel) LogStats() {
	s := k.Stats()
	k.log.Info().
		Uint64("ticks", s.Ticks).
		Uint64("idle_ticks", s.IdleTicks).
		Uint64("kernel_ticks", s.KernelTicks).
		Uint64("context_switches", s.ContextSwitches).
		Int("load_avg_x100", s.LoadAvg100).
		Msg("Scheduler statistics")
	for _, ti := range k.Snapshot() {
		k.log.Info().
			Int("tid", int(ti.TID)).
			Str("name", ti.Name).
			Str("status", ti.Status.String()).
			Int("priority", ti.Priority).
			Msg("Thread")
	}
}
