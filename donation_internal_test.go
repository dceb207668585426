package priosched

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractOp(fn func()) (op string) {
	defer func() {
		if ce, ok := recover().(*ContractError); ok {
			op = ce.Op
		}
	}()
	fn()
	return ""
}

// blocked registers a thread and marks it blocked, without queueing it
// anywhere, so donate and undonate can be driven directly.
func blocked(s *Scheduler, name string, p Priority) *thread {
	t := s.register(name, p)
	t.state = StateBlocked
	return t
}

func TestDonate_RoundTrip(t *testing.T) {
	t.Parallel()

	s := New(WithMainPriority(10))
	main := s.current

	a := blocked(s, "a", 40)
	a.donee = main.id
	s.donate(a, main)
	assert.Equal(t, Priority(40), main.eff)

	b := blocked(s, "b", 20)
	b.donee = main.id
	s.donate(b, main)
	assert.Equal(t, Priority(40), main.eff)
	assert.Equal(t, []*thread{a, b}, main.donors.snapshot())

	s.undonate(a, main)
	assert.Equal(t, Priority(20), main.eff)

	s.undonate(b, main)
	assert.Equal(t, Priority(10), main.eff, "the last withdrawal restores the base priority")
	assert.Zero(t, main.donors.len())
	assert.Equal(t, uint64(2), s.stats.Donations)
}

func TestDonate_PropagatesThroughChain(t *testing.T) {
	t.Parallel()

	s := New(WithMainPriority(1))
	main := s.current

	// h -> l -> main
	l := blocked(s, "l", 5)
	l.donee = main.id
	s.donate(l, main)
	require.Equal(t, Priority(5), main.eff)

	h := blocked(s, "h", 10)
	h.donee = l.id
	s.donate(h, l)
	assert.Equal(t, Priority(10), l.eff)
	assert.Equal(t, Priority(10), main.eff)

	s.undonate(h, l)
	assert.Equal(t, Priority(5), l.eff)
	assert.Equal(t, Priority(5), main.eff)
}

func TestDonate_Preconditions(t *testing.T) {
	t.Parallel()

	s := New()
	main := s.current
	ready := s.register("ready", 1)
	a := blocked(s, "a", 40)
	a.donee = main.id

	assert.Equal(t, `donate`, contractOp(func() { s.donate(nil, main) }))
	assert.Equal(t, `donate`, contractOp(func() { s.donate(a, nil) }))
	assert.Equal(t, `donate`, contractOp(func() { s.donate(a, a) }))
	assert.Equal(t, `donate`, contractOp(func() { s.donate(ready, main) }))

	s.donate(a, main)
	assert.Equal(t, `donate`, contractOp(func() { s.donate(a, main) }))

	assert.Equal(t, `undonate`, contractOp(func() { s.undonate(ready, main) }))
	assert.Equal(t, `undonate`, contractOp(func() { s.undonate(nil, main) }))
}

func TestWalkChain_Cycle(t *testing.T) {
	t.Parallel()

	s := New()
	a := blocked(s, "a", 1)
	b := blocked(s, "b", 1)
	c := blocked(s, "c", 1)
	a.donee, b.donee, c.donee = b.id, c.id, a.id

	var visited int
	op := contractOp(func() {
		s.walkChain(`test`, a, func(*thread) bool {
			visited++
			return true
		})
	})
	assert.Equal(t, `test`, op)
	assert.Positive(t, visited)
}
