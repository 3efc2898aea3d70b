// Package graph implements the Blackboard dataflow engine: a static
// node registry, Send fan-out with independent snapshots, conditional
// edges, and a hard execution-step cap.
package graph

import (
	"context"

	"tradingagents/internal/blackboard"
)

// contextKey namespaces values this package stores on a node's context,
// mirroring the run/step/node metadata idiom used by graph engines in
// the wider ecosystem.
type contextKey string

const (
	RunIDKey  contextKey = "graph.run_id"
	StepKey   contextKey = "graph.step"
	NodeIDKey contextKey = "graph.node_id"
)

// Node is a unit of work: given an immutable state snapshot, it returns
// the partial update to merge back and the Route to follow next. Nodes
// must not mutate the snapshot they're given.
type Node interface {
	Run(ctx context.Context, state blackboard.Blackboard) (NodeResult, error)
}

// NodeFunc adapts a plain function to Node.
type NodeFunc func(ctx context.Context, state blackboard.Blackboard) (NodeResult, error)

func (f NodeFunc) Run(ctx context.Context, state blackboard.Blackboard) (NodeResult, error) {
	return f(ctx, state)
}

// NodeResult is what a Node hands back to the engine each invocation.
type NodeResult struct {
	Update blackboard.Update
	Route  Route
}

// Route tells the engine what to schedule after a node finishes. Stop is
// checked first and ends the run; otherwise any Sends run concurrently
// and rejoin, and then Next (if set) runs. A Route with neither Sends
// nor Next ends the run.
type Route struct {
	// Next names a single node to run next (a conditional edge target).
	Next string

	// Sends fans out to N node invocations concurrently, each seeded
	// from an independent snapshot (base state plus the Send's own
	// Subset applied), rejoining via reducers once all complete.
	Sends []Send

	// Stop marks this branch of the graph as terminal; no further
	// scheduling happens from it.
	Stop bool
}

// Send names a (target node, partial state) pair per spec.md §4.4: the
// engine builds this branch's starting snapshot by applying Subset on
// top of the current canonical state before invoking Target.
type Send struct {
	Target string
	Subset blackboard.Update
}

// Terminal reports whether r ends this branch of execution.
func (r Route) Terminal() bool {
	return r.Stop || (r.Next == "" && len(r.Sends) == 0)
}

// Next constructs a single-successor Route.
func NextNode(name string) Route { return Route{Next: name} }

// FanOut constructs a Send Route.
func FanOut(sends ...Send) Route { return Route{Sends: sends} }

// Stop constructs a terminal Route.
func Stop() Route { return Route{Stop: true} }
