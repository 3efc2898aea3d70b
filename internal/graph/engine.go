package graph

import (
	"context"

	"golang.org/x/sync/errgroup"

	"tradingagents/internal/blackboard"
)

// Engine holds the static node registry and runs it against a single
// Blackboard for the lifetime of one analysis. It is not safe to reuse
// concurrently for two runs of the same State — construct one Engine
// per Run, or call Run sequentially.
type Engine struct {
	nodes map[string]Node
	opts  Options
}

// New builds an Engine with DefaultOptions overridden by opts.
func New(opts ...Option) *Engine {
	o := DefaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return &Engine{nodes: map[string]Node{}, opts: o}
}

// Add registers a node under name. Calling Add twice with the same name
// replaces the previous registration, mirroring the teacher's
// last-registration-wins registry pattern.
func (e *Engine) Add(name string, node Node) {
	e.nodes[name] = node
}

// Run executes the graph starting at entry against state until a
// terminal Route is reached, the step cap is hit, or ctx/wall-clock
// budget expires. state is updated in place and holds the final
// Blackboard value; Run returns nil on a normal end and otherwise the
// error that stopped the run.
func (e *Engine) Run(ctx context.Context, entry string, state *blackboard.Blackboard) error {
	if e.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunWallClockBudget)
		defer cancel()
	}

	steps := 0
	current := entry

	for current != "" {
		if e.opts.MaxSteps > 0 && steps >= e.opts.MaxSteps {
			return &EngineError{Code: CodeMaxStepsExceeded, Message: "exceeded maximum node executions for this run"}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		node, ok := e.nodes[current]
		if !ok {
			return &EngineError{Code: CodeUnknownNode, Message: "no node registered under name " + current}
		}

		result, err := e.invoke(ctx, current, node, state.Snapshot())
		steps++
		if err != nil {
			return err
		}
		blackboard.Apply(state, result.Update)

		if result.Route.Stop {
			return nil
		}
		if len(result.Route.Sends) > 0 {
			if err := e.runSends(ctx, result.Route.Sends, state, &steps); err != nil {
				return err
			}
		}
		// The originating node's Next names the join target to run after
		// its Sends rejoin (e.g. the aggregator following the analyst
		// fan-out); a node with Sends and no Next ends the run here.
		current = result.Route.Next
	}
	return nil
}

// runSends executes every Send concurrently (bounded by MaxConcurrent),
// each against its own snapshot, then rejoins all resulting updates into
// state in a stable, deterministic order (the order Sends were declared
// in, not completion order) before returning to the caller, which
// continues single-threaded scheduling from the originating node's Next.
//
// spec.md's analyst/debator fan-outs are one level deep: a Send target's
// own Route is ignored once its Update is merged, and the originating
// node's Next (checked by the caller after runSends returns) decides
// what runs next.
func (e *Engine) runSends(ctx context.Context, sends []Send, state *blackboard.Blackboard, steps *int) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.opts.MaxConcurrent > 0 {
		g.SetLimit(e.opts.MaxConcurrent)
	}

	updates := make([]blackboard.Update, len(sends))
	for i, send := range sends {
		i, send := i, send
		node, ok := e.nodes[send.Target]
		if !ok {
			return &EngineError{Code: CodeUnknownNode, Message: "no node registered under name " + send.Target}
		}
		branchState := state.Snapshot()
		blackboard.Apply(&branchState, send.Subset)

		g.Go(func() error {
			result, err := e.invoke(gctx, send.Target, node, branchState)
			if err != nil {
				return err
			}
			updates[i] = result.Update
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	*steps += len(sends)

	for _, u := range updates {
		blackboard.Apply(state, u)
	}
	return nil
}

// invoke runs a single node under the engine's default timeout and
// attaches run metadata to its context.
func (e *Engine) invoke(ctx context.Context, name string, node Node, snapshot blackboard.Blackboard) (NodeResult, error) {
	ctx = context.WithValue(ctx, NodeIDKey, name)

	if e.opts.DefaultNodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.DefaultNodeTimeout)
		defer cancel()
	}

	return node.Run(ctx, snapshot)
}

// Nodes returns the set of registered node names, mainly for tests and
// for the graph CLI subcommand to print a graph summary.
func (e *Engine) Nodes() []string {
	names := make([]string, 0, len(e.nodes))
	for n := range e.nodes {
		names = append(names, n)
	}
	return names
}
