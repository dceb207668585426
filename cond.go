package priosched

// Cond is a condition variable used together with a [Lock]. Signals wake the
// highest priority waiter, which then contends for the lock again (donating to
// its holder if it has to wait). The zero value is ready to use.
// A Cond must not be copied after first use.
type Cond struct {
	waiters orderedList[*thread]
}

// Wait atomically releases l, which the running thread must hold, and blocks
// on c. Once signalled the thread reacquires l before it runs again.
func (s *Scheduler) Wait(c *Cond, l *Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.running(`Wait`)
	if l.holder != t {
		panic(contractf(`Wait`, "thread %d does not hold the lock", t.id))
	}

	resume := s.holdPreemption()
	s.release(t, l)
	t.reacquire = l
	s.block(t, &c.waiters)
	resume()
}

// Signal wakes the highest priority waiter of c, if any. The running thread
// must hold l.
func (s *Scheduler) Signal(c *Cond, l *Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkCondHolder(`Signal`, l)
	resume := s.holdPreemption()
	s.signal(c)
	resume()
}

// Broadcast wakes every waiter of c. The running thread must hold l.
func (s *Scheduler) Broadcast(c *Cond, l *Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkCondHolder(`Broadcast`, l)
	resume := s.holdPreemption()
	for s.signal(c) {
	}
	resume()
}

// CondWaiters returns the threads blocked on c, in wake order.
func (s *Scheduler) CondWaiters(c *Cond) []ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ids(c.waiters.snapshot())
}

func (s *Scheduler) checkCondHolder(op string, l *Lock) {
	t := s.running(op)
	if l.holder != t {
		panic(contractf(op, "thread %d does not hold the lock", t.id))
	}
}

// signal moves the front waiter of c onto its lock. It reports whether there
// was a waiter.
func (s *Scheduler) signal(c *Cond) bool {
	w, ok := c.waiters.popFront()
	if !ok {
		return false
	}
	w.queue = nil
	l := w.reacquire
	w.reacquire = nil
	if s.contend(`Signal`, w, l) {
		s.wake(w)
	}
	return true
}
