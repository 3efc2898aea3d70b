// Package research implements the bull/bear research debate loop from
// spec.md §4.7: a controller that fans out to concurrent bull/bear
// researchers each round, and a manager that decides whether to loop
// again or synthesize the investment plan.
package research

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

// NodeController and friends are the fixed node names the
// orchestrator's Engine registers these nodes under, referenced by name
// from Route.Next / Send.Target since the engine dispatches by string.
const (
	NodeController = "research_controller"
	NodeBull       = "bull_researcher"
	NodeBear       = "bear_researcher"
	NodeManager    = "research_manager"
)

type dispatcher interface {
	Emit(ctx context.Context, ev events.Event)
}

// Controller implements spec.md §4.7's per-round dispatcher: increments
// current_round and fans out to bull and bear concurrently.
type Controller struct {
	Events dispatcher
}

var _ graph.Node = (*Controller)(nil)

func (c *Controller) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	nextRound := state.ResearchDebateState.CurrentRound + 1
	if c.Events != nil {
		c.Events.Emit(ctx, events.Status(fmt.Sprintf("research debate round %d starting", nextRound)))
	}

	update := blackboard.Update{
		Step: "research_debate",
		ResearchDebateDelta: &blackboard.ResearchDebateDelta{
			CurrentRound: blackboard.Ptr(nextRound),
		},
	}

	return graph.NodeResult{
		Update: update,
		Route: graph.Route{
			Sends: []graph.Send{{Target: NodeBull}, {Target: NodeBear}},
			Next:  NodeManager,
		},
	}, nil
}

// Researcher is the bull or bear side of the debate: it reads the four
// analyst reports and prior-lesson memory for the symbol and produces
// one argument via the LLM.
type Researcher struct {
	Provider llm.Provider
	Memory   memory.Store
	Stance   string // "bull" or "bear"
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*Researcher)(nil)

func (r *Researcher) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	lessons := r.Memory.Retrieve(ctx, state.CompanyOfInterest, 3)

	var role, instruction string
	if r.Stance == "bull" {
		role = "bullish equity researcher arguing for investing"
		instruction = "Build the strongest case for why this is a good investment right now."
	} else {
		role = "bearish equity researcher arguing against investing"
		instruction = "Build the strongest case for why this is a risky or bad investment right now."
	}

	prompt := fmt.Sprintf(
		"You are a %s.\n\nAnalyst reports:\nMarket: %s\nNews: %s\nSentiment: %s\nFundamentals: %s\n\n"+
			"Prior lessons for this symbol: %s\n\nPrevious debate history:\n%s\n\n%s",
		role, state.MarketReport, state.NewsReport, state.SentimentReport, state.FundamentalsReport,
		strings.Join(lessons, "; "), strings.Join(state.InvestmentDebateState.History, "\n"), instruction,
	)

	resp, err := r.Provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are one voice in a structured investment debate. Be concise and specific."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Options: llm.ChatOptions{Model: r.Model},
	})
	if err != nil {
		return graph.NodeResult{}, fmt.Errorf("%s researcher chat call: %w", r.Stance, err)
	}

	delta := &blackboard.InvestmentDebateDelta{CurrentResponse: resp.Content}
	if r.Stance == "bull" {
		delta.BullArgument = resp.Content
	} else {
		delta.BearArgument = resp.Content
	}

	if r.Events != nil {
		r.Events.Emit(ctx, events.Reasoning(fmt.Sprintf("%s argument: %s", r.Stance, truncate(resp.Content, 120))))
	}

	return graph.NodeResult{Update: blackboard.Update{InvestmentDebateDelta: delta}, Route: graph.Stop()}, nil
}

// Manager implements spec.md §4.7's router: continue the loop while
// under max_rounds and consensus isn't reached, otherwise synthesize the
// investment plan and hand off to the risk manager.
type Manager struct {
	Provider llm.Provider
	Memory   memory.Store
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*Manager)(nil)

func (m *Manager) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	debate := state.ResearchDebateState
	maxRounds := debate.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 3
	}

	consensus := detectConsensus(state.InvestmentDebateState)

	if debate.CurrentRound < maxRounds && !consensus {
		update := blackboard.Update{
			ContinueDebate:      blackboard.Ptr(true),
			ResearchDebateDelta: &blackboard.ResearchDebateDelta{Entry: fmt.Sprintf("round %d complete, continuing", debate.CurrentRound)},
		}
		if m.Events != nil {
			m.Events.Emit(ctx, events.Status("research manager: continuing debate"))
		}
		return graph.NodeResult{Update: update, Route: graph.NextNode(NodeController)}, nil
	}

	plan, err := m.synthesizePlan(ctx, state)
	if err != nil {
		return graph.NodeResult{}, fmt.Errorf("research manager synthesis: %w", err)
	}

	update := blackboard.Update{
		Step:                  "risk_gate",
		ContinueDebate:        blackboard.Ptr(false),
		InvestmentPlan:        &plan,
		RiskAnalysisNeeded:    blackboard.Ptr(true),
		ResearchDebateDelta:   &blackboard.ResearchDebateDelta{ConsensusReached: blackboard.Ptr(true)},
		InvestmentDebateDelta: &blackboard.InvestmentDebateDelta{JudgeDecision: plan},
	}
	if m.Events != nil {
		m.Events.Emit(ctx, events.Status("research manager: investment plan ready"))
		m.Events.Emit(ctx, events.Report("investment_plan", plan))
	}
	return graph.NodeResult{Update: update, Route: graph.NextNode("risk_manager")}, nil
}

func (m *Manager) synthesizePlan(ctx context.Context, state blackboard.Blackboard) (string, error) {
	lessons := m.Memory.Retrieve(ctx, state.CompanyOfInterest, 3)
	prompt := fmt.Sprintf(
		"Synthesize a single investment plan for %s from this debate.\n\nBull arguments:\n%s\n\nBear arguments:\n%s\n\n"+
			"Prior lessons: %s\n\nState your recommendation and the key reasoning.",
		state.CompanyOfInterest,
		strings.Join(state.InvestmentDebateState.BullHistory, "\n"),
		strings.Join(state.InvestmentDebateState.BearHistory, "\n"),
		strings.Join(lessons, "; "),
	)

	resp, err := m.Provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are the research manager adjudicating a bull/bear debate into one plan."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Options: llm.ChatOptions{Model: m.Model},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// detectConsensus reports no consensus for every debate state: the
// arguments are not inspected, by keyword or by the LLM, so the debate
// always runs to the round cap.
func detectConsensus(d blackboard.InvestmentDebateState) bool {
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
