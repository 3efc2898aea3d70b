// Package trader implements the final node from spec.md §4.9: a one-shot
// LLM synthesis of the investment plan and risk verdict into a trade plan,
// terminating the graph.
package trader

import (
	"context"
	"fmt"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/llm"
)

type dispatcher interface {
	Emit(ctx context.Context, ev events.Event)
}

// Trader reads investment_plan and risk_debate_state.judge_decision and
// writes trader_investment_plan, then stops the graph. The manager has
// already set final_trade_decision; the trader's job is the execution
// plan that follows from it, not a second verdict.
type Trader struct {
	Provider llm.Provider
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*Trader)(nil)

func (t *Trader) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	prompt := fmt.Sprintf(
		"Investment plan:\n%s\n\nRisk manager verdict:\n%s\n\nFinal decision: %s\n\n"+
			"Write a short, concrete execution plan: position size guidance, entry considerations, "+
			"and what would invalidate the thesis. Do not change the final decision.",
		state.InvestmentPlan, state.RiskDebateState.JudgeDecision, state.FinalTradeDecision,
	)

	resp, err := t.Provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are the trader turning an approved decision into an execution plan."},
			{Role: llm.RoleUser, Content: prompt},
		},
		Options: llm.ChatOptions{Model: t.Model},
	})
	if err != nil {
		return graph.NodeResult{}, fmt.Errorf("trader chat call: %w", err)
	}

	update := blackboard.Update{
		Step:                 "trade",
		TraderInvestmentPlan: blackboard.Ptr(resp.Content),
	}
	if state.FinalTradeDecision == "" {
		update.FinalTradeDecision = blackboard.Ptr(resp.Content)
	}

	if t.Events != nil {
		t.Events.Emit(ctx, events.Complete(state.FinalTradeDecision))
	}

	return graph.NodeResult{Update: update, Route: graph.Stop()}, nil
}
