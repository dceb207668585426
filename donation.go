package priosched

import (
	cycle "github.com/joeycumines/go-detect-cycle/floyds"
)

// donate registers donor as a donor of donee and raises donee, and every
// thread donee is itself blocked behind, as far as the increase reaches.
func (s *Scheduler) donate(donor, donee *thread) {
	switch {
	case donor == nil || donee == nil:
		panic(contractf(`donate`, "nil thread"))
	case donor == donee:
		panic(contractf(`donate`, "thread %d cannot donate to itself", donor.id))
	case donor.state != StateBlocked:
		panic(contractf(`donate`, "donor %d is %s, not blocked", donor.id, donor.state))
	case donee.donors.contains(donor):
		panic(contractf(`donate`, "thread %d already donates to %d", donor.id, donee.id))
	}

	donee.donors.insert(donor)
	s.stats.Donations++

	s.log.Debug().
		Int(`donor`, int(donor.id)).
		Int(`donee`, int(donee.id)).
		Int(`priority`, int(donor.eff)).
		Log(`priority donated`)

	if s.metrics != nil {
		s.metrics.OnDonate(donor.id, donee.id)
	}

	s.propagate(donee)
	s.maybePreempt()
}

// undonate withdraws exDonor's donation from exDonee and lowers exDonee, and
// the chain above it, where the donation was what held them up.
func (s *Scheduler) undonate(exDonor, exDonee *thread) {
	if exDonor == nil || exDonee == nil {
		panic(contractf(`undonate`, "nil thread"))
	}
	if !exDonee.donors.remove(exDonor) {
		panic(contractf(`undonate`, "thread %d does not donate to %d", exDonor.id, exDonee.id))
	}

	s.log.Debug().
		Int(`donor`, int(exDonor.id)).
		Int(`donee`, int(exDonee.id)).
		Log(`donation withdrawn`)

	s.propagate(exDonee)
	s.maybePreempt()
}

// propagate recomputes the effective priority of t and walks up the donee
// chain for as long as each recomputation changes something. Cost is bounded
// by the length of the affected chain, not by the number of threads.
func (s *Scheduler) propagate(t *thread) {
	s.walkChain(`propagate`, t, func(t *thread) bool {
		old := t.eff
		t.eff = t.effective()
		if t.eff == old {
			return false
		}

		s.reposition(t)

		s.log.Trace().
			Int(`thread`, int(t.id)).
			Int(`from`, int(old)).
			Int(`to`, int(t.eff)).
			Log(`effective priority changed`)

		if s.metrics != nil {
			s.metrics.OnPriorityChange(t.id, old, t.eff)
		}
		return true
	})
}

// reposition restores the order of every container holding t after its
// effective priority changed.
func (s *Scheduler) reposition(t *thread) {
	s.ready.fix(t)
	if t.queue != nil {
		t.queue.fix(t)
	}
	if t.donee != NoThread {
		s.lookup(`reposition`, t.donee).donors.fix(t)
	}
}

// walkChain calls fn on start and then on each thread along the donee chain,
// stopping when fn returns false or a thread is not blocked behind another.
// A cycle in the chain is a wait-for deadlock and panics.
func (s *Scheduler) walkChain(op string, start *thread, fn func(*thread) bool) {
	var det cycle.BranchingDetector = cycle.NewBranchingDetector(start.id, nil)
	for t := start; fn(t); {
		if t.state != StateBlocked || t.donee == NoThread {
			return
		}
		next := s.lookup(op, t.donee)
		nd := det.Hare(next.id)
		if !det.Ok() {
			panic(contractf(op, "cycle in donation chain through thread %d", next.id))
		}
		det, t = nd, next
	}
}
