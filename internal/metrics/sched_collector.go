// Package metrics exposes scheduler state as Prometheus metrics.
package metrics

import (
	"strconv"

	"kernsched/internal/kernel/sched"
	"kernsched/internal/logger"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
)

// SchedCollector implements prometheus.Collector over a live kernel.
// Metrics are built fresh on each scrape from a Snapshot, so a scrape
// never holds scheduler state while the registry serializes output.
// Per-thread series are labeled by TID and name; thread counts are small
// by construction, so cardinality stays bounded.
type SchedCollector struct {
	kernel *sched.Kernel
	log    log.Logger

	ticksDesc      *prometheus.Desc
	switchesDesc   *prometheus.Desc
	spawnsDesc     *prometheus.Desc
	exitsDesc      *prometheus.Desc
	readyDesc      *prometheus.Desc
	loadAvgDesc    *prometheus.Desc
	priorityDesc   *prometheus.Desc
	recentCPUDesc  *prometheus.Desc
	threadStatDesc *prometheus.Desc
}

// NewSchedCollector creates a collector for k.
func NewSchedCollector(k *sched.Kernel) *SchedCollector {
	return &SchedCollector{
		kernel: k,
		log:    logger.NewLoggerWithContext("metrics"),
		ticksDesc: prometheus.NewDesc(
			"kernsched_ticks_total",
			"Total timer ticks processed by the scheduler",
			nil, nil,
		),
		switchesDesc: prometheus.NewDesc(
			"kernsched_context_switches_total",
			"Total context switches",
			nil, nil,
		),
		spawnsDesc: prometheus.NewDesc(
			"kernsched_threads_spawned_total",
			"Total threads created",
			nil, nil,
		),
		exitsDesc: prometheus.NewDesc(
			"kernsched_threads_exited_total",
			"Total threads exited",
			nil, nil,
		),
		readyDesc: prometheus.NewDesc(
			"kernsched_ready_threads",
			"Threads currently in the ready queue",
			nil, nil,
		),
		loadAvgDesc: prometheus.NewDesc(
			"kernsched_load_avg",
			"Exponentially weighted average of runnable threads",
			nil, nil,
		),
		priorityDesc: prometheus.NewDesc(
			"kernsched_thread_priority",
			"Effective priority per live thread",
			[]string{"tid", "name"}, nil,
		),
		recentCPUDesc: prometheus.NewDesc(
			"kernsched_thread_recent_cpu",
			"Decayed recent CPU usage per live thread",
			[]string{"tid", "name"}, nil,
		),
		threadStatDesc: prometheus.NewDesc(
			"kernsched_threads",
			"Live threads by scheduling state",
			[]string{"state"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *SchedCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ticksDesc
	ch <- c.switchesDesc
	ch <- c.spawnsDesc
	ch <- c.exitsDesc
	ch <- c.readyDesc
	ch <- c.loadAvgDesc
	ch <- c.priorityDesc
	ch <- c.recentCPUDesc
	ch <- c.threadStatDesc
}

// Collect implements prometheus.Collector.
func (c *SchedCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.kernel.Stats()

	ch <- prometheus.MustNewConstMetric(c.ticksDesc, prometheus.CounterValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(c.switchesDesc, prometheus.CounterValue, float64(stats.ContextSwitches))
	ch <- prometheus.MustNewConstMetric(c.spawnsDesc, prometheus.CounterValue, float64(stats.Spawns))
	ch <- prometheus.MustNewConstMetric(c.exitsDesc, prometheus.CounterValue, float64(stats.Exits))
	ch <- prometheus.MustNewConstMetric(c.readyDesc, prometheus.GaugeValue, float64(stats.ReadyThreads))
	ch <- prometheus.MustNewConstMetric(c.loadAvgDesc, prometheus.GaugeValue, float64(stats.LoadAvg100)/100)

	byState := make(map[sched.Status]int)
	for _, ti := range c.kernel.Snapshot() {
		byState[ti.Status]++
		tid := strconv.Itoa(int(ti.TID))
		ch <- prometheus.MustNewConstMetric(c.priorityDesc, prometheus.GaugeValue,
			float64(ti.Priority), tid, ti.Name)
		ch <- prometheus.MustNewConstMetric(c.recentCPUDesc, prometheus.GaugeValue,
			float64(ti.RecentCPU100)/100, tid, ti.Name)
	}
	for state, n := range byState {
		ch <- prometheus.MustNewConstMetric(c.threadStatDesc, prometheus.GaugeValue,
			float64(n), state.String())
	}
}
