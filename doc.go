// Package priosched implements the thread scheduling core of a teaching
// kernel: a single processor, preemptive priority scheduler with priority
// donation.
//
// The highest effective priority ready thread always runs. A thread blocked
// on a held [Lock] donates its effective priority to the holder, and if the
// holder is itself blocked on another lock the donation carries on up the
// chain, so a low priority holder cannot be starved by medium priority work
// while a high priority thread waits on it. Releasing a lock withdraws only
// the donations tied to that lock.
//
// Threads live in a registry owned by the [Scheduler] and are addressed by
// [ThreadID] handles; donor lists and wait queues hold handles into that
// registry rather than owning threads. Precondition failures are kernel bugs
// and panic with a [*ContractError].
//
// The [Scheduler] is a deterministic state machine: each call acts for the
// running thread and returns with the scheduling decision already made. A
// [Runner] layers goroutine-per-thread execution on top, passing the
// processor between thread bodies so that blocking calls really block.
package priosched
