package priosched_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/priosched"
)

func TestCond_SignalBroadcast(t *testing.T) {
	t.Parallel()

	s := priosched.New(priosched.WithMainPriority(10))
	main := s.Current()

	var (
		l priosched.Lock
		c priosched.Cond
	)

	wait := func(p priosched.Priority) priosched.ThreadID {
		id := s.Spawn("waiter", p)
		require.Equal(t, id, s.Current())
		s.Acquire(&l)
		s.Wait(&c, &l)
		require.Equal(t, main, s.Current())
		return id
	}
	w1 := wait(20)
	w2 := wait(30)

	assert.Equal(t, []priosched.ThreadID{w2, w1}, s.CondWaiters(&c))
	assert.Equal(t, priosched.NoThread, s.Holder(&l), "waiting releases the lock")
	assert.Equal(t, priosched.Priority(10), s.EffectivePriority(main))

	s.Acquire(&l)
	s.Signal(&c, &l)
	require.Equal(t, main, s.Current(), "the signalled waiter blocks on the lock")
	assert.Equal(t, []priosched.ThreadID{w2}, s.LockWaiters(&l))
	assert.Equal(t, []priosched.ThreadID{w1}, s.CondWaiters(&c))
	assert.Equal(t, priosched.Priority(30), s.EffectivePriority(main))
	checkInvariants(t, s)

	s.Broadcast(&c, &l)
	assert.Empty(t, s.CondWaiters(&c))
	assert.Equal(t, []priosched.ThreadID{w2, w1}, s.LockWaiters(&l))
	checkInvariants(t, s)

	s.Release(&l)
	require.Equal(t, w2, s.Current())
	assert.True(t, s.HeldByCurrent(&l), "Wait returns holding the lock")
	assert.Equal(t, priosched.Priority(10), s.EffectivePriority(main))

	s.Release(&l)
	s.Exit()
	require.Equal(t, w1, s.Current())
	assert.True(t, s.HeldByCurrent(&l))

	s.Release(&l)
	s.Exit()
	assert.Equal(t, main, s.Current())
	checkInvariants(t, s)
}

func TestCond_SignalWithoutWaiters(t *testing.T) {
	t.Parallel()

	s := priosched.New()
	var (
		l priosched.Lock
		c priosched.Cond
	)

	s.Acquire(&l)
	s.Signal(&c, &l)
	s.Broadcast(&c, &l)
	assert.True(t, s.HeldByCurrent(&l))
	assert.Zero(t, s.Stats().Switches)
}

func TestCond_ContractViolations(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		op string
		fn func(s *priosched.Scheduler, c *priosched.Cond, l *priosched.Lock)
	}{
		"wait without the lock": {
			op: `Wait`,
			fn: func(s *priosched.Scheduler, c *priosched.Cond, l *priosched.Lock) { s.Wait(c, l) },
		},
		"signal without the lock": {
			op: `Signal`,
			fn: func(s *priosched.Scheduler, c *priosched.Cond, l *priosched.Lock) { s.Signal(c, l) },
		},
		"broadcast without the lock": {
			op: `Broadcast`,
			fn: func(s *priosched.Scheduler, c *priosched.Cond, l *priosched.Lock) { s.Broadcast(c, l) },
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := priosched.New()
			var (
				l priosched.Lock
				c priosched.Cond
			)
			requireContractPanic(t, tt.op, func() { tt.fn(s, &c, &l) })
		})
	}
}
