package priosched

import "container/heap"

// Ensure readyQueue implements [heap.Interface].
var _ heap.Interface = (*readyQueue)(nil)

// readyQueue orders READY threads by effective priority, then by arrival. A
// thread re-entering the queue (after a yield or a wakeup) arrives anew.
type readyQueue struct {
	threads []*thread

	// The seq is stamped on each thread as it becomes ready, so equal
	// priority threads leave the queue in FIFO order.
	seq uint64
}

func (q *readyQueue) push(t *thread) {
	t.readySeq = q.seq
	q.seq++
	heap.Push(q, t)
}

// pop removes the thread select_next would choose, or returns nil.
func (q *readyQueue) pop() *thread {
	if len(q.threads) == 0 {
		return nil
	}
	return heap.Pop(q).(*thread)
}

func (q *readyQueue) peek() *thread {
	if len(q.threads) == 0 {
		return nil
	}
	return q.threads[0]
}

// fix reorders t after its effective priority changed.
func (q *readyQueue) fix(t *thread) {
	if t.readyIndex >= 0 {
		heap.Fix(q, t.readyIndex)
	}
}

// Len returns the number of ready threads.
func (q *readyQueue) Len() int {
	return len(q.threads)
}

// Less orders by effective priority descending, then by arrival. It is
// without side effects.
func (q *readyQueue) Less(i, j int) bool {
	a, b := q.threads[i], q.threads[j]
	if a.eff != b.eff {
		return a.eff > b.eff
	}
	return a.readySeq < b.readySeq
}

// Swap is used by the heap to reorder threads. It should not be called
// directly.
func (q *readyQueue) Swap(i, j int) {
	q.threads[i], q.threads[j] = q.threads[j], q.threads[i]
	q.threads[i].readyIndex = i
	q.threads[j].readyIndex = j
}

// Push is used by the heap to add threads. It should not be called directly.
func (q *readyQueue) Push(x any) {
	t := x.(*thread)
	t.readyIndex = len(q.threads)
	q.threads = append(q.threads, t)
}

// Pop is used by the heap to remove threads. It should not be called
// directly.
func (q *readyQueue) Pop() any {
	old := q.threads
	n := len(old)
	t := old[n-1]
	old[n-1] = nil    // avoid memory leak
	t.readyIndex = -1 // for safety
	q.threads = old[0 : n-1]
	return t
}
