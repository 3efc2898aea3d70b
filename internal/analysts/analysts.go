// Package analysts implements the four domain analyst nodes from
// spec.md §4.5: market and fundamentals run in direct mode against the
// data collectors, news runs in LLM-driven mode against a tool-bound
// chat loop, and social always fetches its three sources directly
// before handing them to the LLM for synthesis only.
//
// spec.md §9's Redesign Flag says to ship exactly one implementation per
// analyst kind, parameterized by config for data source and mode,
// folding crypto detection into the fundamentals entry point — that is
// what this package does; there is no "ultra-fast" or "async-fixed"
// variant here.
package analysts

import (
	"context"
	"time"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
)

// minReportLength is the §4.6 "valid report" floor, reused here so a
// direct-mode analyst can self-report warning vs completed before the
// aggregator ever sees it (§4.5's "completed with zero tool calls is
// warning, not error").
const minReportLength = 50

// idGen is the signature of a message-ID generator for the
// append_messages reducer's dedup key. No node in this package takes or
// calls one.
type idGen func() string

// dispatcher is the minimal event-emission seam every analyst node uses
// to report status changes (§6's agent_status/report events) without
// each node importing the full orchestrator wiring.
type dispatcher interface {
	Emit(ctx context.Context, ev events.Event)
}

// startRunning returns the Update that marks kind running. The start
// argument is not recorded: Update has no per-analyst start-time field.
func startRunning(kind blackboard.AnalystKind, start time.Time) blackboard.Update {
	return blackboard.Update{
		AnalystStatus: map[blackboard.AnalystKind]blackboard.AnalystStatus{kind: blackboard.StatusRunning},
	}
}

// finishResult bundles what every analyst computes regardless of mode:
// its final report text, terminal status, and bookkeeping.
type finishResult struct {
	Kind          blackboard.AnalystKind
	Report        string
	Status        blackboard.AnalystStatus
	ToolCalls     int
	ExecutionTime time.Duration
	ErrorMessage  string
	Messages      []blackboard.Message
}

// toUpdate converts a finishResult into the partial Update the engine
// merges back, writing the report into the field the analyst kind owns.
func (r finishResult) toUpdate() blackboard.Update {
	u := blackboard.Update{
		AnalystStatus:  map[blackboard.AnalystKind]blackboard.AnalystStatus{r.Kind: r.Status},
		ToolCallCounts: map[blackboard.AnalystKind]int{r.Kind: r.ToolCalls},
		ExecutionTimes: map[blackboard.AnalystKind]time.Duration{r.Kind: r.ExecutionTime},
	}
	if len(r.Messages) > 0 {
		u.MessageLogs = map[blackboard.AnalystKind][]blackboard.Message{r.Kind: r.Messages}
	}
	if r.ErrorMessage != "" {
		u.AnalystErrors = map[blackboard.AnalystKind]string{r.Kind: r.ErrorMessage}
	}

	switch r.Kind {
	case blackboard.AnalystMarket:
		u.MarketReport = &r.Report
	case blackboard.AnalystNews:
		u.NewsReport = &r.Report
	case blackboard.AnalystSocial:
		u.SentimentReport = &r.Report
	case blackboard.AnalystFundamentals:
		u.FundamentalsReport = &r.Report
	}
	return u
}

// classify returns completed when report clears the §4.6 validity floor
// and status is a success status, warning otherwise — spec.md §4.5's
// "completed with zero tool calls is warning, not error".
func classify(report string, toolCalls int, requireTools bool) blackboard.AnalystStatus {
	if len(report) <= minReportLength {
		return blackboard.StatusWarning
	}
	if requireTools && toolCalls == 0 {
		return blackboard.StatusWarning
	}
	return blackboard.StatusCompleted
}

// routeThroughSend wraps a finishResult into the NodeResult an analyst's
// Send target returns: Update only, no further routing (the engine's
// runSends ignores a Send target's own Route per its doc comment).
func routeThroughSend(r finishResult) graph.NodeResult {
	return graph.NodeResult{Update: r.toUpdate(), Route: graph.Stop()}
}

func emitAgentStatus(ctx context.Context, d dispatcher, agent string, status events.AgentStatus) {
	if d == nil {
		return
	}
	d.Emit(ctx, events.AgentStatusEvent(agent, status))
}

func emitReport(ctx context.Context, d dispatcher, section, content string) {
	if d == nil {
		return
	}
	d.Emit(ctx, events.Report(section, content))
}
