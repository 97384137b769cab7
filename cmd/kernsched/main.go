package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"kernsched/internal/config"
	"kernsched/internal/kernel/dispatch"
	"kernsched/internal/kernel/process"
	"kernsched/internal/kernel/sched"
	"kernsched/internal/logger"
	"kernsched/internal/metrics"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "kernsched",
		Short:   "Instructional kernel thread scheduler with a demo workload",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (optional)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the scheduler and drive the configured workload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if policy, _ := cmd.Flags().GetString("policy"); policy != "" {
				cfg.Scheduler.Policy = policy
			}
			if addr, _ := cmd.Flags().GetString("listen"); addr != "" {
				cfg.Server.ListenAddress = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := logger.ConfigureLogging(cfg.Logging); err != nil {
				return fmt.Errorf("failed to configure logging: %w", err)
			}
			return run(cfg)
		},
	}
	runCmd.Flags().String("policy", "", "Override scheduler policy (round-robin or mlfqs)")
	runCmd.Flags().String("listen", "", "Override metrics listen address")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig) error {
	policy, err := sched.ParsePolicy(cfg.Scheduler.Policy)
	if err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Str("policy", cfg.Scheduler.Policy).
		Int("tick_hz", cfg.Scheduler.TickHz).
		Int("workers", cfg.Workload.Threads).
		Msg("Starting kernsched")

	k := sched.New(sched.Config{
		Policy:     policy,
		TickHz:     cfg.Scheduler.TickHz,
		TimeSlice:  cfg.Scheduler.TimeSlice,
		Dispatcher: dispatch.NewGoroutine(),
	})

	// Metrics endpoint.
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewSchedCollector(k))
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Server.ListenAddress, Handler: mux}
	go func() {
		log.Info().Str("address", cfg.Server.ListenAddress).Msg("Metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	defer srv.Close()

	// Timer collaborator: one tick per interrupt period, from outside
	// any thread context.
	tickerStop := make(chan struct{})
	defer close(tickerStop)
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(cfg.Scheduler.TickHz))
		defer ticker.Stop()
		for {
			select {
			case <-tickerStop:
				return
			case <-ticker.C:
				k.Tick()
			}
		}
	}()

	var stopFlag atomic.Bool
	timer := time.AfterFunc(time.Duration(cfg.Workload.DurationSeconds)*time.Second, func() {
		stopFlag.Store(true)
	})
	defer timer.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal")
		stopFlag.Store(true)
	}()

	// Workload: spawn workers as children of the main thread, with a
	// startup handshake so each child is registered before it reports.
	table := process.NewTable(k)
	tids := make([]sched.TID, 0, cfg.Workload.Threads)

	for i := 0; i < cfg.Workload.Threads; i++ {
		priority := sched.PriDefault - i%8
		nice := i % 5

		// The child gates on a kernel semaphore until its relationship
		// exists; the parent then parks in WaitLoad until the child
		// reports in.
		var rel *process.Relationship
		registered := k.NewSemaphore(0)
		tid, err := k.Spawn(fmt.Sprintf("worker-%d", i), priority, func() {
			registered.Down()
			rel.ReportLoad(process.LoadSuccess)
			if policy == sched.MLFQS {
				k.SetNice(nice)
			}
			iters := 0
			for !stopFlag.Load() {
				iters++
				k.MaybeYield()
			}
			rel.ReportExit(iters % 256)
		})
		if err != nil {
			return fmt.Errorf("spawning worker %d: %w", i, err)
		}
		rel = table.RegisterChild(tid)
		registered.Up()
		if rel.WaitLoad() != process.LoadSuccess {
			return fmt.Errorf("worker %d failed to start", i)
		}
		tids = append(tids, tid)
	}

	for _, tid := range tids {
		status, err := table.Wait(tid)
		if err != nil {
			log.Error().Err(err).Int("tid", int(tid)).Msg("Wait failed")
			continue
		}
		log.Debug().Int("tid", int(tid)).Int("status", status).Msg("Worker exited")
	}

	k.LogStats()
	log.Info().Msg("kernsched stopped")
	return nil
}
