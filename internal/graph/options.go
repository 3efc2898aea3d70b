package graph

import "time"

// Options collects an Engine's tunable limits. Functional Options below
// let callers set only what they need; an Options value constructed
// directly still works, matching the flexible-configuration idiom this
// package is grounded on.
type Options struct {
	MaxSteps           int
	MaxConcurrent      int
	DefaultNodeTimeout time.Duration
	RunWallClockBudget time.Duration
}

// DefaultOptions mirrors spec.md §4.4/§5: a 200-step cap, bounded
// concurrency for Send fan-out, and per-node/whole-run timeouts.
func DefaultOptions() Options {
	return Options{
		MaxSteps:           200,
		MaxConcurrent:       8,
		DefaultNodeTimeout: 60 * time.Second,
		RunWallClockBudget: 10 * time.Minute,
	}
}

// Option configures an Engine at construction time.
type Option func(*Options)

// WithMaxSteps overrides the hard cap on total node executions per run.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithMaxConcurrent bounds how many Send branches run at once.
func WithMaxConcurrent(n int) Option {
	return func(o *Options) { o.MaxConcurrent = n }
}

// WithDefaultNodeTimeout sets the per-node execution deadline applied
// to every node invocation.
func WithDefaultNodeTimeout(d time.Duration) Option {
	return func(o *Options) { o.DefaultNodeTimeout = d }
}

// WithRunWallClockBudget sets the maximum total execution time for Run.
func WithRunWallClockBudget(d time.Duration) Option {
	return func(o *Options) { o.RunWallClockBudget = d }
}
