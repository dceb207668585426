package priosched

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/joeycumines/logiface"
)

// Runner executes thread bodies on goroutines, one per thread, such that only
// the goroutine of the thread the [Scheduler] has running makes progress.
// Every other goroutine is parked on its gate until dispatched. The baton
// passes at kernel calls made through [Thread], so preemption takes effect at
// the next call the running thread makes.
type Runner struct {
	s   *Scheduler
	log *logiface.Logger[logiface.Event]

	mu      sync.Mutex
	gates   map[ThreadID]chan struct{}
	aborted bool
	err     error
	panicV  any
	done    chan struct{}

	wg sync.WaitGroup
}

// Thread is the handle a thread body uses to make kernel calls. Its methods
// must only be called from the body's own goroutine.
type Thread struct {
	r    *Runner
	id   ThreadID
	gate chan struct{}
}

// NewRunner returns a [Runner] driving s. It logs through the scheduler's
// logger.
func NewRunner(s *Scheduler) *Runner {
	return &Runner{
		s:   s,
		log: s.log,
	}
}

// Run executes main as the body of the scheduler's running thread and blocks
// until every thread has exited, in which case it returns nil. It returns an
// error wrapping [ErrDeadlock] if every live thread blocks, or the context's
// error if ctx is done first. A contract violation inside a body is re-raised
// as a panic on the caller's goroutine.
func (r *Runner) Run(ctx context.Context, main func(*Thread)) error {
	id := r.s.Current()
	if id == NoThread {
		panic(contractf(`Run`, "no running thread"))
	}

	r.mu.Lock()
	r.gates = make(map[ThreadID]chan struct{})
	r.done = make(chan struct{})
	r.aborted = false
	r.err = nil
	r.panicV = nil
	r.mu.Unlock()

	r.start(id, main)
	r.dispatch(id)

	select {
	case <-r.done:
	case <-ctx.Done():
		r.finish(ctx.Err())
	}
	r.wg.Wait()

	r.mu.Lock()
	err, pv := r.err, r.panicV
	r.mu.Unlock()

	if pv != nil {
		panic(pv)
	}
	return err
}

func (r *Runner) start(id ThreadID, body func(*Thread)) {
	gate := make(chan struct{}, 1)
	r.mu.Lock()
	if r.aborted {
		close(gate)
	} else {
		r.gates[id] = gate
	}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			// runtime.Goexit leaves nothing to recover.
			if v := recover(); v != nil {
				r.fail(v)
			}
		}()

		t := &Thread{r: r, id: id, gate: gate}
		t.park()
		body(t)
		t.exit()
	}()
}

// dispatch wakes the goroutine of next, or ends the run when the processor
// has gone idle.
func (r *Runner) dispatch(next ThreadID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aborted {
		return
	}

	if next == NoThread {
		if live := r.s.Live(); live > 0 {
			r.log.Warning().
				Int(`live`, live).
				Log(`all threads blocked`)
			r.finishLocked(fmt.Errorf("%w: %d live thread(s) blocked", ErrDeadlock, live))
			return
		}
		r.finishLocked(nil)
		return
	}

	gate, ok := r.gates[next]
	if !ok {
		r.failLocked(contractf(`dispatch`, "thread %d has no body", next))
		return
	}
	gate <- struct{}{}
}

func (r *Runner) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finishLocked(err)
}

// finishLocked aborts the run. Closing the gates releases every parked
// goroutine, which then exits.
func (r *Runner) finishLocked(err error) {
	if r.aborted {
		return
	}
	r.aborted = true
	r.err = err
	for _, gate := range r.gates {
		close(gate)
	}
	close(r.done)
}

func (r *Runner) fail(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failLocked(v)
}

func (r *Runner) failLocked(v any) {
	if r.panicV == nil && !r.aborted {
		r.panicV = v
	}
	r.finishLocked(nil)
}

func (r *Runner) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.aborted
}

// ID returns the thread's handle.
func (t *Thread) ID() ThreadID { return t.id }

// Scheduler returns the scheduler the thread runs on, for read-only queries.
func (t *Thread) Scheduler() *Scheduler { return t.r.s }

// Priority returns the thread's effective priority.
func (t *Thread) Priority() Priority {
	return t.r.s.EffectivePriority(t.id)
}

// Spawn creates a thread running body. The new thread runs at once if it
// outranks the caller.
func (t *Thread) Spawn(name string, p Priority, body func(*Thread)) ThreadID {
	t.enter(`Spawn`)
	id := t.r.s.Spawn(name, p)
	t.r.start(id, body)
	t.handoff()
	return id
}

// Acquire takes l, blocking behind its holder if necessary.
func (t *Thread) Acquire(l *Lock) {
	t.enter(`Acquire`)
	t.r.s.Acquire(l)
	t.handoff()
}

// TryAcquire takes l if it is free.
func (t *Thread) TryAcquire(l *Lock) bool {
	t.enter(`TryAcquire`)
	return t.r.s.TryAcquire(l)
}

// Release frees l, possibly running a waiter that outranks the caller.
func (t *Thread) Release(l *Lock) {
	t.enter(`Release`)
	t.r.s.Release(l)
	t.handoff()
}

// Down decrements sem, blocking while it is zero.
func (t *Thread) Down(sem *Semaphore) {
	t.enter(`Down`)
	t.r.s.Down(sem)
	t.handoff()
}

// Up increments sem or wakes its highest priority waiter.
func (t *Thread) Up(sem *Semaphore) {
	t.enter(`Up`)
	t.r.s.Up(sem)
	t.handoff()
}

// Wait releases l, blocks on c, and reacquires l once signalled.
func (t *Thread) Wait(c *Cond, l *Lock) {
	t.enter(`Wait`)
	t.r.s.Wait(c, l)
	t.handoff()
}

// Signal wakes the highest priority waiter of c.
func (t *Thread) Signal(c *Cond, l *Lock) {
	t.enter(`Signal`)
	t.r.s.Signal(c, l)
	t.handoff()
}

// Broadcast wakes every waiter of c.
func (t *Thread) Broadcast(c *Cond, l *Lock) {
	t.enter(`Broadcast`)
	t.r.s.Broadcast(c, l)
	t.handoff()
}

// Yield gives the processor to an equal or higher priority ready thread.
func (t *Thread) Yield() {
	t.enter(`Yield`)
	t.r.s.Yield()
	t.handoff()
}

// SetPriority sets the thread's base priority.
func (t *Thread) SetPriority(p Priority) {
	t.enter(`SetPriority`)
	t.r.s.SetPriority(p)
	t.handoff()
}

// Work burns the given number of timer ticks of processor time. The thread
// may be preempted at any tick boundary.
func (t *Thread) Work(ticks int) {
	for range ticks {
		t.enter(`Work`)
		t.r.s.Tick()
		t.handoff()
	}
}

// enter checks that the run is live and the caller is the running thread.
func (t *Thread) enter(op string) {
	if t.r.isAborted() {
		runtime.Goexit()
	}
	if cur := t.r.s.Current(); cur != t.id {
		panic(contractf(op, "thread %d called while thread %d is running", t.id, cur))
	}
}

// handoff passes the baton to whichever thread the scheduler now runs and
// parks the caller until it is dispatched again.
func (t *Thread) handoff() {
	next := t.r.s.Current()
	if next == t.id {
		return
	}
	t.r.dispatch(next)
	t.park()
}

func (t *Thread) park() {
	<-t.gate
	if t.r.isAborted() {
		runtime.Goexit()
	}
}

func (t *Thread) exit() {
	t.enter(`Exit`)
	t.r.s.Exit()

	t.r.mu.Lock()
	delete(t.r.gates, t.id)
	t.r.mu.Unlock()

	t.r.dispatch(t.r.s.Current())
}
