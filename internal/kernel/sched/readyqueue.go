package sched

// readyQueue holds READY threads in 64 priority bands, FIFO within a
// band so equal-priority threads run in strict arrival order. The queue
// owns its membership outright: a thread is linked here if and only if
// its status is StatusReady, and drift between the two is an invariant
// violation. Guarded by the kernel mutex.
type readyQueue struct {
	bands [PriMax + 1][]*Thread
	size  int
}

// push appends t to the tail of its priority band.
func (q *readyQueue) push(t *Thread) {
	q.bands[t.priority] = append(q.bands[t.priority], t)
	q.size++
}

// pop removes and returns the head of the highest nonempty band, or nil
// when no thread is ready.
func (q *readyQueue) pop() *Thread {
	for p := PriMax; p >= PriMin; p-- {
		band := q.bands[p]
		if len(band) == 0 {
			continue
		}
		t := band[0]
		q.bands[p] = band[1:]
		q.size--
		return t
	}
	return nil
}

// remove unlinks t from its band, preserving the order of the rest.
// Used when a ready thread's effective priority changes.
func (q *readyQueue) remove(t *Thread) bool {
	band := q.bands[t.priority]
	for i, cur := range band {
		if cur == t {
			q.bands[t.priority] = append(band[:i], band[i+1:]...)
			q.size--
			return true
		}
	}
	return false
}

// top returns the highest priority among ready threads, or PriMin-1 when
// the queue is empty.
func (q *readyQueue) top() int {
	for p := PriMax; p >= PriMin; p-- {
		if len(q.bands[p]) > 0 {
			return p
		}
	}
	return PriMin - 1
}

func (q *readyQueue) len() int { return q.size }

// contains reports membership; diagnostics and invariant checks only.
func (q *readyQueue) contains(t *Thread) bool {
	for _, cur := range q.bands[t.priority] {
		if cur == t {
			return true
		}
	}
	return false
}
