package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/llm"
	"tradingagents/internal/memory"
)

func TestManagerFirstEntryLaunchesDebate(t *testing.T) {
	m := &Manager{Memory: memory.NoopStore{}}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.RiskAnalysisNeeded = true

	result, err := m.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, NodeDispatch, result.Route.Next)
}

func TestManagerSecondEntryComposesDecision(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "the risks are manageable\nFINAL DECISION: BUY"}, nil
		},
	}
	m := &Manager{Provider: provider, Memory: memory.NoopStore{}}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.RiskAnalysisNeeded = true
	state.RiskDebateState.History = []string{"Risky: go big", "Safe: be careful", "Neutral: balance"}

	result, err := m.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, result.Update.FinalTradeDecision)
	assert.Contains(t, *result.Update.FinalTradeDecision, "FINAL DECISION: BUY")
	require.NotNil(t, result.Update.RiskAnalysisNeeded)
	assert.False(t, *result.Update.RiskAnalysisNeeded)
	require.NotNil(t, result.Update.RiskDebateDone)
	assert.True(t, *result.Update.RiskDebateDone)
	assert.Equal(t, NodeTrader, result.Route.Next)
}

func TestEnsureFinalDecisionAppendsHoldWhenMissing(t *testing.T) {
	out := ensureFinalDecision("no clear verdict here")
	assert.Contains(t, out, "FINAL DECISION: HOLD")
}

func TestEnsureFinalDecisionLeavesExplicitVerdictAlone(t *testing.T) {
	out := ensureFinalDecision("some reasoning\nFINAL DECISION: SELL")
	assert.Equal(t, "some reasoning\nFINAL DECISION: SELL", out)
}

func TestDispatchFansOutToThreeDebators(t *testing.T) {
	d := &Dispatch{}
	result, err := d.Run(context.Background(), *blackboard.New("AAPL", "2026-07-31"))
	require.NoError(t, err)

	require.Len(t, result.Route.Sends, 3)
	assert.Equal(t, NodeRisky, result.Route.Sends[0].Target)
	assert.Equal(t, NodeSafe, result.Route.Sends[1].Target)
	assert.Equal(t, NodeNeutral, result.Route.Sends[2].Target)
	assert.Equal(t, NodeAggregator, result.Route.Next)
}

func TestDebatorRecordsItsOwnStanceOnly(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "pushing hard for upside"}, nil
		},
	}
	d := &Debator{Provider: provider, Stance: "risky"}

	result, err := d.Run(context.Background(), *blackboard.New("AAPL", "2026-07-31"))
	require.NoError(t, err)

	assert.Equal(t, "pushing hard for upside", result.Update.RiskDebateDelta.RiskyResponse)
	assert.Empty(t, result.Update.RiskDebateDelta.SafeResponse)
	assert.Empty(t, result.Update.RiskDebateDelta.NeutralResponse)
	assert.Equal(t, 1, result.Update.RiskDebateDelta.CountDelta)
	assert.True(t, result.Route.Stop)
}

func TestAggregatorRoutesBackToManager(t *testing.T) {
	a := &Aggregator{}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.RiskDebateState.History = []string{"Risky: x", "Safe: y", "Neutral: z"}

	result, err := a.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, NodeManager, result.Route.Next)
}
