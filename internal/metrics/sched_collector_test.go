package metrics

import (
	"strings"
	"testing"

	"kernsched/internal/kernel/sched"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSchedCollector(t *testing.T) {
	k := sched.New(sched.Config{})
	k.Spawn("worker", 10, func() {})
	k.Tick()
	k.Tick()

	c := NewSchedCollector(k)
	if _, err := testutil.CollectAndLint(c); err != nil {
		t.Fatalf("lint: %v", err)
	}

	if got := testutil.CollectAndCount(c, "kernsched_thread_priority"); got != 3 {
		t.Errorf("priority series = %d, want 3 (main, idle, worker)", got)
	}
	if got := testutil.CollectAndCount(c, "kernsched_threads"); got == 0 {
		t.Error("no per-state thread gauges emitted")
	}

	expected := strings.NewReader(`
# HELP kernsched_ticks_total Total timer ticks processed by the scheduler
# TYPE kernsched_ticks_total counter
kernsched_ticks_total 2
# HELP kernsched_threads_spawned_total Total threads created
# TYPE kernsched_threads_spawned_total counter
kernsched_threads_spawned_total 1
`)
	if err := testutil.CollectAndCompare(c, expected,
		"kernsched_ticks_total", "kernsched_threads_spawned_total"); err != nil {
		t.Errorf("counter mismatch: %v", err)
	}
}
