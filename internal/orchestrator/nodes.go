package orchestrator

import (
	"context"
	"time"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
)

const (
	NodeIntake   = "intake"
	NodeDispatch = "dispatch"
	NodeAggregate = "aggregate"
)

type dispatcher interface {
	Emit(ctx context.Context, ev events.Event)
}

// intake is the graph's entry node: it records the run start and moves
// straight to dispatch. It exists as its own node (rather than folding
// into dispatch) so the §4.10 state-machine summary's "intake ->
// dispatch" edge is a real, observable graph transition.
type intake struct {
	Events dispatcher
}

var _ graph.Node = (*intake)(nil)

func (n *intake) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	if n.Events != nil {
		n.Events.Emit(ctx, events.Status("analysis started for "+state.CompanyOfInterest))
	}
	return graph.NodeResult{
		Update: blackboard.Update{Step: "dispatch"},
		Route:  graph.NextNode(NodeDispatch),
	}, nil
}

// dispatch fans out to the four analysts per spec.md §4.4/§4.5. Its own
// Update marks every analyst status running before the Sends start, so
// the pending -> running -> terminal transition spec.md §3 requires is
// visible on the Blackboard itself, not just in SSE agent_status events:
// each analyst's own Update later supplies the running -> terminal leg.
type dispatch struct {
	Events dispatcher
}

var _ graph.Node = (*dispatch)(nil)

func (n *dispatch) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	now := nowFn()
	if n.Events != nil {
		n.Events.Emit(ctx, events.Status("dispatching 4 analysts"))
	}

	statuses := make(map[blackboard.AnalystKind]blackboard.AnalystStatus, len(blackboard.AllAnalysts))
	sends := make([]graph.Send, 0, len(blackboard.AllAnalysts))
	for _, kind := range blackboard.AllAnalysts {
		statuses[kind] = blackboard.StatusRunning
		sends = append(sends, graph.Send{Target: string(kind) + "_analyst"})
	}

	return graph.NodeResult{
		Update: blackboard.Update{
			Step:              "analyze",
			AnalystStatus:     statuses,
			ParallelStartTime: &now,
		},
		Route: graph.Route{Sends: sends, Next: NodeAggregate},
	}, nil
}

// nowFn is a seam tests can override to make ParallelStartTime deterministic.
var nowFn = defaultNow

func defaultNow() time.Time { return time.Now() }
