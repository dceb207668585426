package priosched_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasbasham/priosched"
)

// requireContractPanic runs fn and requires it to panic with a
// *priosched.ContractError raised by op.
func requireContractPanic(t *testing.T, op string, fn func()) {
	t.Helper()

	defer func() {
		t.Helper()

		v := recover()
		require.NotNil(t, v, "expected a panic from %s", op)

		err, ok := v.(error)
		require.True(t, ok, "panic value %#v is not an error", v)

		var ce *priosched.ContractError
		require.True(t, errors.As(err, &ce), "panic value %v is not a contract error", err)
		assert.Equal(t, op, ce.Op)
	}()

	fn()
}

// checkInvariants asserts the donation invariants over every live thread.
func checkInvariants(t *testing.T, s *priosched.Scheduler) {
	t.Helper()

	for info := range s.Threads() {
		assert.GreaterOrEqual(t, info.Effective, info.Base, "thread %d below its base priority", info.ID)

		want := info.Base
		prev := priosched.PriMax + 1
		for _, d := range info.Donors {
			donor, ok := s.Lookup(d)
			require.True(t, ok, "donor %d of thread %d is not live", d, info.ID)
			assert.Equal(t, priosched.StateBlocked, donor.State, "donor %d is not blocked", d)
			assert.Equal(t, info.ID, donor.Donee, "donor %d points elsewhere", d)
			assert.LessOrEqual(t, donor.Effective, prev, "donors of thread %d out of order", info.ID)
			prev = donor.Effective
			want = max(want, donor.Effective)
		}
		assert.Equal(t, want, info.Effective, "effective priority of thread %d", info.ID)
	}
}

type metricsRecorder struct {
	switches []switchEvent
	donates  []donateEvent
	changes  []changeEvent
}

type switchEvent struct{ prev, next priosched.ThreadID }

type donateEvent struct{ donor, donee priosched.ThreadID }

type changeEvent struct {
	id       priosched.ThreadID
	from, to priosched.Priority
}

func (m *metricsRecorder) OnSwitch(prev, next priosched.ThreadID) {
	m.switches = append(m.switches, switchEvent{prev, next})
}

func (m *metricsRecorder) OnDonate(donor, donee priosched.ThreadID) {
	m.donates = append(m.donates, donateEvent{donor, donee})
}

func (m *metricsRecorder) OnPriorityChange(id priosched.ThreadID, from, to priosched.Priority) {
	m.changes = append(m.changes, changeEvent{id, from, to})
}
