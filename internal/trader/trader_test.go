package trader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/llm"
)

func TestTraderWritesExecutionPlanAndStops(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "enter in thirds, stop below support"}, nil
		},
	}
	tr := &Trader{Provider: provider, Model: "gpt-4o-mini"}

	state := *blackboard.New("AAPL", "2026-07-31")
	state.InvestmentPlan = "buy on strength"
	state.RiskDebateState.JudgeDecision = "FINAL DECISION: BUY"
	state.FinalTradeDecision = "FINAL DECISION: BUY"

	result, err := tr.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, result.Update.TraderInvestmentPlan)
	assert.Equal(t, "enter in thirds, stop below support", *result.Update.TraderInvestmentPlan)
	assert.Nil(t, result.Update.FinalTradeDecision, "final decision already set, trader must not overwrite it")
	assert.True(t, result.Route.Stop)
}

func TestTraderFillsFinalDecisionWhenManagerLeftItEmpty(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "fallback plan"}, nil
		},
	}
	tr := &Trader{Provider: provider}

	state := *blackboard.New("AAPL", "2026-07-31")
	result, err := tr.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, result.Update.FinalTradeDecision)
	assert.Equal(t, "fallback plan", *result.Update.FinalTradeDecision)
}

func TestTraderPropagatesProviderError(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, assert.AnError
		},
	}
	tr := &Trader{Provider: provider}

	_, err := tr.Run(context.Background(), *blackboard.New("AAPL", "2026-07-31"))
	assert.Error(t, err)
}
