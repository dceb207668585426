package priosched

// Semaphore is a counting semaphore. Waiters are woken highest effective
// priority first; waiting on a semaphore donates nothing. The zero value is a
// semaphore with a count of zero. A Semaphore must not be copied after first
// use.
type Semaphore struct {
	value   uint
	waiters orderedList[*thread]
}

// NewSemaphore returns a semaphore with the given initial count.
func NewSemaphore(value uint) *Semaphore {
	return &Semaphore{value: value}
}

// Down decrements sem, blocking the running thread while the count is zero.
func (s *Scheduler) Down(sem *Semaphore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.running(`Down`)
	if sem.value > 0 {
		sem.value--
		return
	}
	s.block(t, &sem.waiters)
}

// TryDown decrements sem if the count is positive, without blocking.
func (s *Scheduler) TryDown(sem *Semaphore) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running(`TryDown`)
	if sem.value == 0 {
		return false
	}
	sem.value--
	return true
}

// Up increments sem, or passes the unit directly to the highest priority
// waiter. Up may be called while the processor is idle, as an interrupt
// handler would.
func (s *Scheduler) Up(sem *Semaphore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := sem.waiters.popFront()
	if !ok {
		sem.value++
		return
	}
	w.queue = nil
	s.wake(w)
}

// Value returns the count of sem.
func (s *Scheduler) Value(sem *Semaphore) uint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sem.value
}

// SemaphoreWaiters returns the threads blocked on sem, in wake order.
func (s *Scheduler) SemaphoreWaiters(sem *Semaphore) []ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ids(sem.waiters.snapshot())
}
