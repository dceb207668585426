package priosched

import "github.com/joeycumines/logiface"

// DefaultTimeSlice is the number of ticks a thread may run before round-robin
// rotation considers it for preemption.
const DefaultTimeSlice = 4

// Options holds configuration options for the [Scheduler].
type Options struct {
	Logger       *logiface.Logger[logiface.Event]
	Metrics      MetricsHook
	TimeSlice    int
	RoundRobin   bool
	MainPriority Priority
}

// Option is a function that configures [Options].
type Option func(*Options)

// WithLogger sets the structured logger for the [Scheduler]. A nil logger
// disables logging.
func WithLogger(l *logiface.Logger[logiface.Event]) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithMetricsHook sets the metrics hook for the [Scheduler].
func WithMetricsHook(hook MetricsHook) Option {
	return func(o *Options) {
		o.Metrics = hook
	}
}

// WithTimeSlice sets the number of ticks in a time slice. Values below one
// are ignored.
func WithTimeSlice(ticks int) Option {
	return func(o *Options) {
		if ticks > 0 {
			o.TimeSlice = ticks
		}
	}
}

// WithRoundRobin enables timer driven rotation among threads of equal
// priority. When disabled, a running thread keeps the processor until it
// yields, blocks, or a strictly higher priority thread becomes ready.
func WithRoundRobin(enabled bool) Option {
	return func(o *Options) {
		o.RoundRobin = enabled
	}
}

// WithMainPriority sets the priority of the initial "main" thread.
func WithMainPriority(p Priority) Option {
	return func(o *Options) {
		o.MainPriority = p.Clamp()
	}
}
