// Package risk implements the risk debate and risk manager from
// spec.md §4.8: three parallel perspectives fanned out from a dispatcher,
// an aggregator that folds them into history, and a manager whose
// two-gated entry either launches the debate or composes the final
// trade decision.
package risk

import (
	"context"
	"fmt"
	"strings"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/llm"
	"tradingagents/internal/memory"
)

const (
	NodeManager    = "risk_manager"
	NodeDispatch   = "risk_debate_dispatch"
	NodeRisky      = "risky_debator"
	NodeSafe       = "safe_debator"
	NodeNeutral    = "neutral_debator"
	NodeAggregator = "risk_aggregator"
	NodeTrader     = "trader"
)

type dispatcher interface {
	Emit(ctx context.Context, ev events.Event)
}

// Manager implements the two-gated router from spec.md §4.8. First entry
// (risk_analysis_needed and an empty history) launches the debate; second
// entry (history populated) composes the final decision.
type Manager struct {
	Provider llm.Provider
	Memory   memory.Store
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*Manager)(nil)

func (m *Manager) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	if state.RiskAnalysisNeeded && len(strings.TrimSpace(strings.Join(state.RiskDebateState.History, ""))) == 0 {
		if m.Events != nil {
			m.Events.Emit(ctx, events.Status("risk manager: launching risk debate"))
		}
		return graph.NodeResult{
			Update: blackboard.Update{Step: "risk_debate"},
			Route:  graph.NextNode(NodeDispatch),
		}, nil
	}

	decision, err := m.composeDecision(ctx, state)
	if err != nil {
		return graph.NodeResult{}, fmt.Errorf("risk manager decision synthesis: %w", err)
	}

	update := blackboard.Update{
		Step:               "risk_decision",
		FinalTradeDecision: blackboard.Ptr(decision),
		RiskAnalysisNeeded: blackboard.Ptr(false),
		RiskDebateDone:     blackboard.Ptr(true),
		RiskDebateDelta:    &blackboard.RiskDebateDelta{JudgeDecision: decision},
	}
	if m.Events != nil {
		m.Events.Emit(ctx, events.Status("risk manager: decision composed"))
		m.Events.Emit(ctx, events.Report("final_trade_decision", decision))
	}
	return graph.NodeResult{Update: update, Route: graph.NextNode(NodeTrader)}, nil
}

func (m *Manager) composeDecision(ctx context.Context, state blackboard.Blackboard) (string, error) {
	lessons := m.Memory.Retrieve(ctx, state.CompanyOfInterest, 3)
	prompt := fmt.Sprintf(
		"Investment plan:\n%s\n\nRisk debate history:\n%s\n\nPrior lessons: %s\n\n"+
			"Compose the final trade decision. Weigh the risk perspectives against the plan. "+
			"End your answer with the literal phrase \"FINAL DECISION: BUY\", \"FINAL DECISION: SELL\", "+
			"or \"FINAL DECISION: HOLD\" on its own line.",
		state.InvestmentPlan, strings.Join(state.RiskDebateState.History, "\n"), strings.Join(lessons, "; "),
	)

	resp, err := m.Provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are the risk manager making the final call on a trade."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Options: llm.ChatOptions{Model: m.Model},
	})
	if err != nil {
		return "", err
	}
	return ensureFinalDecision(resp.Content), nil
}

// ensureFinalDecision guarantees the literal phrase spec.md §4.8 requires
// is present even if the LLM omits it, defaulting to HOLD.
func ensureFinalDecision(content string) string {
	upper := strings.ToUpper(content)
	switch {
	case strings.Contains(upper, "FINAL DECISION: BUY"):
		return content
	case strings.Contains(upper, "FINAL DECISION: SELL"):
		return content
	case strings.Contains(upper, "FINAL DECISION: HOLD"):
		return content
	default:
		return content + "\n\nFINAL DECISION: HOLD"
	}
}

// Dispatch fans out to the three parallel debators and rejoins at the
// aggregator, mirroring the analyst dispatcher in internal/orchestrator.
type Dispatch struct {
	Events dispatcher
}

var _ graph.Node = (*Dispatch)(nil)

func (d *Dispatch) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	if d.Events != nil {
		d.Events.Emit(ctx, events.Status("risk debate: dispatching risky/safe/neutral"))
	}
	return graph.NodeResult{
		Route: graph.Route{
			Sends: []graph.Send{{Target: NodeRisky}, {Target: NodeSafe}, {Target: NodeNeutral}},
			Next:  NodeAggregator,
		},
	}, nil
}

// Debator is one of the three risk perspectives.
type Debator struct {
	Provider llm.Provider
	Stance   string // "risky", "safe", "neutral"
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*Debator)(nil)

func (d *Debator) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	role := stanceDescription(d.Stance)
	prompt := fmt.Sprintf(
		"You are the %s voice in a risk debate over this investment plan:\n\n%s\n\n"+
			"Existing debate history:\n%s\n\nGive your perspective in a few sentences.",
		role, state.InvestmentPlan, strings.Join(state.RiskDebateState.History, "\n"),
	)

	resp, err := d.Provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are one voice in a three-way risk debate. Stay in character and be concise."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Options: llm.ChatOptions{Model: d.Model},
	})
	if err != nil {
		return graph.NodeResult{}, fmt.Errorf("%s debator chat call: %w", d.Stance, err)
	}

	delta := &blackboard.RiskDebateDelta{CountDelta: 1}
	switch d.Stance {
	case "risky":
		delta.RiskyResponse = resp.Content
	case "safe":
		delta.SafeResponse = resp.Content
	default:
		delta.NeutralResponse = resp.Content
	}

	if d.Events != nil {
		d.Events.Emit(ctx, events.Reasoning(fmt.Sprintf("%s perspective recorded", d.Stance)))
	}

	return graph.NodeResult{Update: blackboard.Update{RiskDebateDelta: delta}, Route: graph.Stop()}, nil
}

func stanceDescription(stance string) string {
	switch stance {
	case "risky":
		return "risk-seeking"
	case "safe":
		return "risk-averse"
	default:
		return "risk-neutral"
	}
}

// Aggregator runs after the three perspectives rejoin (the per-field
// reducer already appended each one to history as it merged) and only
// routes back to the manager for its second, decision-making entry. It
// leaves risk_analysis_needed untouched, since the manager reads history
// length to decide, not the flag alone.
type Aggregator struct {
	Events dispatcher
}

var _ graph.Node = (*Aggregator)(nil)

func (a *Aggregator) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	if a.Events != nil {
		a.Events.Emit(ctx, events.Status(fmt.Sprintf("risk debate: %d perspectives recorded", len(state.RiskDebateState.History))))
	}
	return graph.NodeResult{
		Update: blackboard.Update{Step: "risk_aggregate"},
		Route:  graph.NextNode(NodeManager),
	}, nil
}
