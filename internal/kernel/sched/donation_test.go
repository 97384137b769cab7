package sched_test

import (
	"testing"

	"kernsched/internal/kernel/dispatch"
	"kernsched/internal/kernel/sched"
)

// These tests run with the goroutine dispatcher: the test goroutine is
// adopted as the main thread, and every Spawn/Acquire/Release below is a
// real scheduling event. Execution is deterministic because the gated
// dispatcher runs exactly one thread at a time and preemption on unblock
// is synchronous, so by the time a call returns, every thread it handed
// the CPU to has either blocked or exited.

func bootKernel() *sched.Kernel {
	return sched.New(sched.Config{Dispatcher: dispatch.NewGoroutine()})
}

func TestLockDonationBasic(t *testing.T) {
	k := bootKernel()
	if err := k.SetPriority(10); err != nil {
		t.Fatal(err)
	}
	lock := k.NewLock()
	lock.Acquire()

	ran := false
	if _, err := k.Spawn("high", 20, func() {
		lock.Acquire()
		lock.Release()
		ran = true
	}); err != nil {
		t.Fatal(err)
	}

	// The spawn preempted us; high is now blocked on the lock and its
	// priority flowed down.
	if got := k.GetPriority(); got != 20 {
		t.Errorf("holder priority = %d, want donated 20", got)
	}
	if !k.Current().Donated() {
		t.Error("holder not marked as running on a donation")
	}
	if ran {
		t.Fatal("waiter ran while the lock was held")
	}

	lock.Release()
	// Release reverts the donation and hands the CPU to the waiter,
	// which runs to completion before we resume.
	if !ran {
		t.Fatal("waiter did not run after release")
	}
	if got := k.GetPriority(); got != 10 {
		t.Errorf("priority after release = %d, want base 10", got)
	}
	if k.Current().Donated() {
		t.Error("donation flag still set after release")
	}
	if lock.Holder() != nil {
		t.Errorf("lock still held by %v", lock.Holder())
	}
}

func TestLockDonationChained(t *testing.T) {
	k := bootKernel()
	if err := k.SetPriority(5); err != nil {
		t.Fatal(err)
	}
	lockA := k.NewLock()
	lockB := k.NewLock()
	lockB.Acquire()

	// L takes A, then blocks on B (held by us).
	lTID, err := k.Spawn("mid", 10, func() {
		lockA.Acquire()
		lockB.Acquire()
		lockB.Release()
		lockA.Release()
	})
	if err != nil {
		t.Fatal(err)
	}
	// W blocks on A; its priority must flow through L to us.
	wTID, err := k.Spawn("top", 30, func() {
		lockA.Acquire()
		lockA.Release()
	})
	if err != nil {
		t.Fatal(err)
	}

	mid, ok := k.Lookup(lTID)
	if !ok {
		t.Fatal("mid thread missing from registry")
	}
	if mid.Priority() != 30 {
		t.Errorf("mid priority = %d, want 30 inherited through the chain", mid.Priority())
	}
	if got := k.GetPriority(); got != 30 {
		t.Errorf("bottom holder priority = %d, want 30", got)
	}

	lockB.Release()
	// Releasing B unwinds the whole chain: mid wakes at 30, finishes its
	// critical sections, top runs, both exit.
	if got := k.GetPriority(); got != 5 {
		t.Errorf("priority after unwind = %d, want base 5", got)
	}
	if _, alive := k.Lookup(lTID); alive {
		t.Error("mid thread not reclaimed")
	}
	if _, alive := k.Lookup(wTID); alive {
		t.Error("top thread not reclaimed")
	}
}

func TestLockDonationMultipleSources(t *testing.T) {
	k := bootKernel()
	lockA := k.NewLock()
	lockB := k.NewLock()
	lockA.Acquire()
	lockB.Acquire()

	k.Spawn("h1", 40, func() {
		lockA.Acquire()
		lockA.Release()
	})
	k.Spawn("h2", 45, func() {
		lockB.Acquire()
		lockB.Release()
	})

	if got := k.GetPriority(); got != 45 {
		t.Errorf("priority with two donors = %d, want 45", got)
	}

	// Dropping B sheds only its donation; A's waiter still props us up.
	lockB.Release()
	if got := k.GetPriority(); got != 40 {
		t.Errorf("priority after releasing one lock = %d, want 40", got)
	}
	if !k.Current().Donated() {
		t.Error("donation flag cleared while a donor still waits")
	}

	lockA.Release()
	if got := k.GetPriority(); got != sched.PriDefault {
		t.Errorf("priority after releasing both = %d, want %d", got, sched.PriDefault)
	}
	if k.Current().Donated() {
		t.Error("donation flag still set with no donors")
	}
}

func TestSemaphoreWakesHighestFirst(t *testing.T) {
	k := bootKernel()
	sem := k.NewSemaphore(0)

	var order []string
	k.Spawn("a", 40, func() {
		sem.Down()
		order = append(order, "a")
	})
	k.Spawn("b", 45, func() {
		sem.Down()
		order = append(order, "b")
	})

	sem.Up()
	sem.Up()
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("wake order = %v, want [b a]", order)
	}
}

func TestSemaphoreTryDown(t *testing.T) {
	k := bootKernel()
	sem := k.NewSemaphore(1)

	if !sem.TryDown() {
		t.Error("TryDown on a positive semaphore failed")
	}
	if sem.TryDown() {
		t.Error("TryDown on a zero semaphore succeeded")
	}
	sem.Up()
	if !sem.TryDown() {
		t.Error("TryDown after Up failed")
	}
}

func TestCondSignalWakesHighest(t *testing.T) {
	k := bootKernel()
	lock := k.NewLock()
	cond := k.NewCond()

	var order []string
	waiter := func(name string) func() {
		return func() {
			lock.Acquire()
			cond.Wait(lock)
			order = append(order, name)
			lock.Release()
		}
	}
	k.Spawn("a", 40, waiter("a"))
	k.Spawn("b", 45, waiter("b"))

	lock.Acquire()
	cond.Signal(lock)
	cond.Signal(lock)
	lock.Release()

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Errorf("wake order = %v, want [b a]", order)
	}
	if got := k.GetPriority(); got != sched.PriDefault {
		t.Errorf("priority after signaling = %d, want %d", got, sched.PriDefault)
	}
}

func TestCondBroadcast(t *testing.T) {
	k := bootKernel()
	lock := k.NewLock()
	cond := k.NewCond()

	woken := 0
	for i := 0; i < 3; i++ {
		k.Spawn("w", 40, func() {
			lock.Acquire()
			cond.Wait(lock)
			woken++
			lock.Release()
		})
	}

	lock.Acquire()
	cond.Broadcast(lock)
	lock.Release()

	if woken != 3 {
		t.Errorf("broadcast woke %d waiters, want 3", woken)
	}
}

func TestExitReclaimsThread(t *testing.T) {
	k := bootKernel()
	tid, err := k.Spawn("short", 50, func() {})
	if err != nil {
		t.Fatal(err)
	}
	// 50 outranks us, so the thread ran and exited before Spawn returned;
	// its control block must already be gone.
	if _, alive := k.Lookup(tid); alive {
		t.Error("exited thread still in registry")
	}
	if s := k.Stats(); s.Exits != 1 {
		t.Errorf("exits = %d, want 1", s.Exits)
	}
}

func TestBlockUnblockRoundTrip(t *testing.T) {
	k := bootKernel()
	main := k.Current()

	visited := false
	k.Spawn("waker", 10, func() {
		visited = true
		if !k.Unblock(main) {
			t.Error("unblocking the higher-priority main must request preemption")
		}
		k.Yield()
	})

	// The waker is lower priority, so it only runs once we block; its
	// yield after the unblock puts us straight back on the CPU.
	k.Block()
	if !visited {
		t.Fatal("resumed without the waker running")
	}
	if k.Current() != main {
		t.Errorf("current = %q after wakeup, want main", k.Current().Name())
	}
}
