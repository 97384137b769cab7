package sched

import "testing"

func rqThread(tid TID, priority int) *Thread {
	t := newThread(tid, "t", priority, NiceDefault, 0)
	t.status = StatusReady
	return t
}

func TestReadyQueueOrder(t *testing.T) {
	var q readyQueue

	a := rqThread(1, 5)
	b := rqThread(2, 5)
	c := rqThread(3, 7)
	d := rqThread(4, 3)
	for _, th := range []*Thread{a, b, c, d} {
		q.push(th)
	}

	if q.len() != 4 {
		t.Fatalf("len = %d, want 4", q.len())
	}
	if q.top() != 7 {
		t.Errorf("top = %d, want 7", q.top())
	}
	for i, want := range []*Thread{c, a, b, d} {
		if got := q.pop(); got != want {
			t.Fatalf("pop %d = tid %d, want tid %d", i, got.tid, want.tid)
		}
	}
	if q.pop() != nil {
		t.Error("pop on empty queue returned a thread")
	}
	if q.top() != PriMin-1 {
		t.Errorf("top on empty = %d, want %d", q.top(), PriMin-1)
	}
}

func TestReadyQueueRemove(t *testing.T) {
	var q readyQueue

	a := rqThread(1, 5)
	b := rqThread(2, 5)
	c := rqThread(3, 5)
	for _, th := range []*Thread{a, b, c} {
		q.push(th)
	}

	if !q.remove(b) {
		t.Fatal("remove of present thread failed")
	}
	if q.remove(b) {
		t.Error("remove of absent thread succeeded")
	}
	if q.contains(b) {
		t.Error("contains after remove")
	}
	if got := q.pop(); got != a {
		t.Errorf("pop = tid %d, want tid 1", got.tid)
	}
	if got := q.pop(); got != c {
		t.Errorf("pop = tid %d, want tid 3", got.tid)
	}
	if q.len() != 0 {
		t.Errorf("len = %d, want 0", q.len())
	}
}
