package priosched

import (
	"iter"
	"sync"

	"github.com/joeycumines/logiface"
)

// MetricsHook defines hooks for monitoring context switches, donations and
// effective priority changes. Hooks run with the scheduler locked and must not
// call back into it.
type MetricsHook interface {
	OnSwitch(prev, next ThreadID)
	OnDonate(donor, donee ThreadID)
	OnPriorityChange(id ThreadID, from, to Priority)
}

// Stats holds cumulative scheduler counters.
type Stats struct {
	Ticks     uint64
	IdleTicks uint64
	BusyTicks uint64
	Switches  uint64
	Donations uint64
}

// Scheduler is a single processor, preemptive priority scheduler with
// priority donation. It supports the following operations:
//
//   - Spawn, Yield, Exit and base priority changes for threads
//   - Lock acquire and release, donating the waiter's priority to the holder
//   - Counting semaphores and condition variables
//   - Timer ticks, with optional round-robin among equal priorities
//
// The thread with the highest effective priority runs. Ties among ready
// threads go to the one that became ready first. Operations named after a
// thread action (Acquire, Down, Yield, ...) act on behalf of the running
// thread.
//
// All state is guarded by one mutex, held for the whole of every operation,
// standing in for disabled interrupts: no caller ever observes a partially
// updated donation graph.
type Scheduler struct {
	mu      sync.Mutex
	log     *logiface.Logger[logiface.Event]
	metrics MetricsHook

	// Registry indexed by ThreadID-1. Slots of destroyed threads are nil.
	threads []*thread
	live    int

	ready   readyQueue
	current *thread // nil when idle

	timeSlice  int
	roundRobin bool
	sliceTicks int

	// Preemption is held off while a compound operation (such as a release
	// that both undonates and hands off) is in progress.
	holdDepth      int
	preemptPending bool

	stats Stats
}

// New creates a new [Scheduler] with the given options. The scheduler starts
// with a single running thread named "main".
func New(opts ...Option) *Scheduler {
	o := &Options{
		TimeSlice:    DefaultTimeSlice,
		MainPriority: PriDefault,
	}
	for _, opt := range opts {
		opt(o)
	}

	s := &Scheduler{
		log:        o.Logger,
		metrics:    o.Metrics,
		timeSlice:  o.TimeSlice,
		roundRobin: o.RoundRobin,
	}

	main := s.register("main", o.MainPriority)
	main.state = StateRunning
	s.current = main

	return s
}

func (s *Scheduler) register(name string, base Priority) *thread {
	t := newThread(ThreadID(len(s.threads)+1), name, base.Clamp())
	s.threads = append(s.threads, t)
	s.live++
	return t
}

// Spawn creates a READY thread with the given base priority. If it outranks
// the running thread, it runs immediately.
func (s *Scheduler) Spawn(name string, base Priority) ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.register(name, base)
	s.ready.push(t)

	s.log.Info().
		Int(`thread`, int(t.id)).
		Str(`name`, name).
		Int(`priority`, int(t.base)).
		Log(`thread spawned`)

	s.maybePreempt()
	return t.id
}

// Current returns the running thread, or [NoThread] if the processor is idle.
func (s *Scheduler) Current() ThreadID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return NoThread
	}
	return s.current.id
}

// Yield moves the running thread to the back of the ready queue among its
// equals and runs the highest priority ready thread, which may be the caller.
func (s *Scheduler) Yield() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running(`Yield`)
	s.yieldCurrent()
}

// Exit terminates the running thread. The thread must hold no locks and so
// have no donors.
func (s *Scheduler) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.running(`Exit`)
	if n := len(t.held); n > 0 {
		panic(contractf(`Exit`, "thread %d exiting while holding %d lock(s)", t.id, n))
	}
	if t.donors.len() > 0 {
		panic(contractf(`Exit`, "thread %d exiting with %d donor(s)", t.id, t.donors.len()))
	}

	t.state = StateDying
	s.schedule()
}

// SetPriority sets the base priority of the running thread.
func (s *Scheduler) SetPriority(p Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setBase(s.running(`SetPriority`), p)
}

// SetBasePriority sets the base priority of any live thread. The effective
// priority is recomputed and any change is carried along the donation chain.
// Donations the thread receives are untouched.
func (s *Scheduler) SetBasePriority(id ThreadID, p Priority) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setBase(s.lookup(`SetBasePriority`, id), p)
}

func (s *Scheduler) setBase(t *thread, p Priority) {
	t.base = p.Clamp()
	s.propagate(t)
	s.maybePreempt()
}

// EffectivePriority returns the priority the scheduler uses for id.
func (s *Scheduler) EffectivePriority(id ThreadID) Priority {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(`EffectivePriority`, id).eff
}

// BasePriority returns the priority id was assigned, ignoring donations.
func (s *Scheduler) BasePriority(id ThreadID) Priority {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(`BasePriority`, id).base
}

// State returns the run state of id.
func (s *Scheduler) State(id ThreadID) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lookup(`State`, id).state
}

// Lookup returns a snapshot of id, or false if id was never created or has
// been destroyed.
func (s *Scheduler) Lookup(id ThreadID) (ThreadInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.find(id)
	if t == nil {
		return ThreadInfo{}, false
	}
	return t.info(), true
}

// Threads returns an iterator over snapshots of all live threads, in creation
// order. The snapshots are taken when iteration starts.
func (s *Scheduler) Threads() iter.Seq[ThreadInfo] {
	return func(yield func(ThreadInfo) bool) {
		s.mu.Lock()
		infos := make([]ThreadInfo, 0, s.live)
		for _, t := range s.threads {
			if t != nil {
				infos = append(infos, t.info())
			}
		}
		s.mu.Unlock()

		for _, info := range infos {
			if !yield(info) {
				return
			}
		}
	}
}

// Live returns the number of threads not yet destroyed.
func (s *Scheduler) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live
}

// Ready returns the number of threads in the ready queue.
func (s *Scheduler) Ready() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready.Len()
}

// Stats returns a copy of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stats
}

// Tick is the timer interrupt. It accounts the tick to the running thread or
// to idle time, then decides preemption as the interrupt returns: a strictly
// higher priority ready thread always preempts, and with round-robin enabled
// a thread that used up its time slice gives way to an equal one.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Ticks++
	t := s.current
	if t == nil {
		s.stats.IdleTicks++
		s.maybePreempt()
		return
	}

	s.stats.BusyTicks++
	s.sliceTicks++
	if s.roundRobin && s.sliceTicks >= s.timeSlice {
		if top := s.ready.peek(); top != nil && top.eff >= t.eff {
			s.yieldCurrent()
			return
		}
	}
	s.maybePreempt()
}

func (s *Scheduler) find(id ThreadID) *thread {
	if id <= NoThread || int(id) > len(s.threads) {
		return nil
	}
	return s.threads[id-1]
}

func (s *Scheduler) lookup(op string, id ThreadID) *thread {
	t := s.find(id)
	if t == nil {
		panic(contractf(op, "no such thread %d", id))
	}
	return t
}

func (s *Scheduler) running(op string) *thread {
	if s.current == nil {
		panic(contractf(op, "no running thread"))
	}
	return s.current
}

// holdPreemption defers preemption until the returned function is called.
// Holds nest.
func (s *Scheduler) holdPreemption() func() {
	s.holdDepth++
	return func() {
		s.holdDepth--
		if s.holdDepth == 0 && s.preemptPending {
			s.preemptPending = false
			s.maybePreempt()
		}
	}
}

// maybePreempt switches away from the running thread if a ready thread has a
// strictly higher effective priority, or if the processor is idle.
func (s *Scheduler) maybePreempt() {
	if s.holdDepth > 0 {
		s.preemptPending = true
		return
	}

	top := s.ready.peek()
	if top == nil {
		return
	}
	if s.current == nil || top.eff > s.current.eff {
		s.yieldCurrent()
	}
}

func (s *Scheduler) yieldCurrent() {
	if t := s.current; t != nil {
		t.state = StateReady
		s.ready.push(t)
	}
	s.schedule()
}

// wake moves a blocked thread to the ready queue.
func (s *Scheduler) wake(t *thread) {
	if t.state != StateBlocked {
		panic(contractf(`wake`, "thread %d is %s, not blocked", t.id, t.state))
	}
	t.state = StateReady
	s.ready.push(t)

	s.log.Debug().
		Int(`thread`, int(t.id)).
		Int(`priority`, int(t.eff)).
		Log(`thread woken`)

	s.maybePreempt()
}

// block parks the running thread in q and switches away.
func (s *Scheduler) block(t *thread, q *orderedList[*thread]) {
	t.state = StateBlocked
	t.queue = q
	q.insert(t)

	s.log.Debug().
		Int(`thread`, int(t.id)).
		Log(`thread blocked`)

	s.schedule()
}

// schedule switches to the highest priority ready thread. The caller has
// already moved the outgoing thread out of the running state.
func (s *Scheduler) schedule() {
	prev := s.current
	next := s.ready.pop()

	s.current = next
	s.sliceTicks = 0
	if next != nil {
		next.state = StateRunning
	}

	if prev != next {
		s.stats.Switches++
		prevID, nextID := idOf(prev), idOf(next)

		s.log.Debug().
			Int(`from`, int(prevID)).
			Int(`to`, int(nextID)).
			Log(`context switch`)

		if s.metrics != nil {
			s.metrics.OnSwitch(prevID, nextID)
		}
	}

	if prev != nil && prev.state == StateDying {
		s.destroy(prev)
	}
}

func (s *Scheduler) destroy(t *thread) {
	s.threads[t.id-1] = nil
	s.live--

	s.log.Info().
		Int(`thread`, int(t.id)).
		Str(`name`, t.name).
		Log(`thread exited`)
}

func idOf(t *thread) ThreadID {
	if t == nil {
		return NoThread
	}
	return t.id
}
