package priosched

import "fmt"

// ThreadID is a stable handle to a thread in a [Scheduler]'s registry. Handles
// are never reused, so a handle to a destroyed thread can be detected rather
// than aliasing a new one.
type ThreadID int

// NoThread is the null handle.
const NoThread ThreadID = 0

// State is the run state of a thread.
type State int

const (
	StateReady State = iota
	StateRunning
	StateBlocked
	StateDying
)

var strStateMap = map[State]string{
	StateReady:   "ready",
	StateRunning: "running",
	StateBlocked: "blocked",
	StateDying:   "dying",
}

func (s State) String() string {
	if v, ok := strStateMap[s]; ok {
		return v
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// ThreadInfo is a point in time snapshot of a thread.
type ThreadInfo struct {
	ID        ThreadID
	Name      string
	Base      Priority
	Effective Priority
	State     State

	// Donee is the thread this one donates to, or NoThread.
	Donee ThreadID

	// Donors lists the threads donating to this one, highest priority first.
	Donors []ThreadID
}

// thread is the scheduler's record of a kernel thread. All fields are guarded
// by the owning Scheduler's mutex.
type thread struct {
	id    ThreadID
	name  string
	base  Priority
	eff   Priority
	state State

	// Donation bookkeeping. A thread sits in at most one donor list, that of
	// donee, and only while blocked on waitingOn.
	donors    orderedList[*thread]
	donee     ThreadID
	waitingOn *Lock

	// queue is the wait list the thread is blocked in, if any. It is
	// repositioned whenever the thread's effective priority changes.
	queue *orderedList[*thread]

	// reacquire is the lock a condition variable waiter takes back on wake.
	reacquire *Lock

	// held lists the locks this thread owns, in acquisition order.
	held []*Lock

	// Ready queue position. readyIndex is -1 when not queued.
	readyIndex int
	readySeq   uint64
}

func newThread(id ThreadID, name string, base Priority) *thread {
	return &thread{
		id:         id,
		name:       name,
		base:       base,
		eff:        base,
		state:      StateReady,
		readyIndex: -1,
	}
}

func (t *thread) rank() Priority { return t.eff }

// effective computes max(base, highest donor), the value eff must hold once
// propagation settles.
func (t *thread) effective() Priority {
	if d, ok := t.donors.front(); ok && d.eff > t.base {
		return d.eff
	}
	return t.base
}

func (t *thread) info() ThreadInfo {
	donors := make([]ThreadID, 0, t.donors.len())
	for d := range t.donors.all() {
		donors = append(donors, d.id)
	}
	return ThreadInfo{
		ID:        t.id,
		Name:      t.name,
		Base:      t.base,
		Effective: t.eff,
		State:     t.state,
		Donee:     t.donee,
		Donors:    donors,
	}
}

func (t *thread) dropHeld(l *Lock) {
	for i, h := range t.held {
		if h == l {
			t.held = append(t.held[:i], t.held[i+1:]...)
			return
		}
	}
}
