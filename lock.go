package priosched

// Lock is a mutual exclusion lock with priority donation: a thread blocked on
// a held Lock donates its effective priority to the holder. The zero value is
// an unlocked Lock. A Lock must only be used with one [Scheduler] and must not
// be copied after first use.
type Lock struct {
	holder  *thread
	waiters orderedList[*thread]
}

// Acquire takes l for the running thread. If l is held, the thread blocks
// behind the holder, donating its priority, until l is handed to it.
func (s *Scheduler) Acquire(l *Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.running(`Acquire`)
	resume := s.holdPreemption()
	if !s.contend(`Acquire`, t, l) {
		s.schedule()
	}
	resume()
}

// TryAcquire takes l for the running thread if it is free, without blocking.
func (s *Scheduler) TryAcquire(l *Lock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.running(`TryAcquire`)
	switch l.holder {
	case nil:
		s.grant(t, l)
		return true
	case t:
		panic(contractf(`TryAcquire`, "thread %d already holds the lock", t.id))
	default:
		return false
	}
}

// Release frees l, which the running thread must hold. Only the donations
// made by waiters of l are withdrawn; those tied to other locks the thread
// holds remain. The highest priority waiter, if any, receives l.
func (s *Scheduler) Release(l *Lock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.running(`Release`)
	if l.holder != t {
		panic(contractf(`Release`, "thread %d does not hold the lock", t.id))
	}

	resume := s.holdPreemption()
	s.release(t, l)
	resume()
}

// HeldByCurrent reports whether the running thread holds l.
func (s *Scheduler) HeldByCurrent(l *Lock) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current != nil && l.holder == s.current
}

// Holder returns the thread holding l, or [NoThread].
func (s *Scheduler) Holder(l *Lock) ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return idOf(l.holder)
}

// LockWaiters returns the threads blocked on l, in the order they would
// receive it.
func (s *Scheduler) LockWaiters(l *Lock) []ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	return ids(l.waiters.snapshot())
}

// contend makes t the holder of l, or queues it behind the current holder and
// donates. It reports whether t now holds l. t may be the running thread or a
// blocked condition variable waiter being moved onto l.
func (s *Scheduler) contend(op string, t *thread, l *Lock) bool {
	h := l.holder
	if h == nil {
		s.grant(t, l)
		return true
	}
	if h == t {
		panic(contractf(op, "thread %d already holds the lock", t.id))
	}
	s.walkChain(op, h, func(c *thread) bool {
		if c == t {
			panic(contractf(op, "thread %d would wait on itself through thread %d", t.id, h.id))
		}
		return true
	})

	t.state = StateBlocked
	t.waitingOn = l
	t.donee = h.id
	t.queue = &l.waiters
	l.waiters.insert(t)

	s.log.Debug().
		Int(`thread`, int(t.id)).
		Int(`holder`, int(h.id)).
		Log(`thread blocked on lock`)

	s.donate(t, h)
	return false
}

func (s *Scheduler) grant(t *thread, l *Lock) {
	l.holder = t
	t.held = append(t.held, l)
}

// release withdraws the waiters' donations from t, then hands l to the
// highest priority waiter. The remaining waiters donate to the new holder.
func (s *Scheduler) release(t *thread, l *Lock) {
	for _, w := range l.waiters.snapshot() {
		s.undonate(w, t)
	}
	l.holder = nil
	t.dropHeld(l)

	next, ok := l.waiters.popFront()
	if !ok {
		return
	}
	next.queue = nil
	next.waitingOn = nil
	next.donee = NoThread
	s.grant(next, l)

	for w := range l.waiters.all() {
		w.donee = next.id
		s.donate(w, next)
	}

	s.wake(next)
}

func ids(ts []*thread) []ThreadID {
	out := make([]ThreadID, len(ts))
	for i, t := range ts {
		out[i] = t.id
	}
	return out
}
