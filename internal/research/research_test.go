package research

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/llm"
	"tradingagents/internal/memory"
)

func TestControllerIncrementsRoundAndFansOut(t *testing.T) {
	c := &Controller{}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.ResearchDebateState.MaxRounds = 3

	result, err := c.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, result.Update.ResearchDebateDelta)
	require.NotNil(t, result.Update.ResearchDebateDelta.CurrentRound)
	assert.Equal(t, 1, *result.Update.ResearchDebateDelta.CurrentRound)
	require.Len(t, result.Route.Sends, 2)
	assert.Equal(t, NodeBull, result.Route.Sends[0].Target)
	assert.Equal(t, NodeBear, result.Route.Sends[1].Target)
	assert.Equal(t, NodeManager, result.Route.Next)
}

func TestResearcherProducesBullArgument(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "strong bull case"}, nil
		},
	}
	r := &Researcher{Provider: provider, Memory: memory.NoopStore{}, Stance: "bull", Model: "gpt-4o-mini"}

	state := *blackboard.New("AAPL", "2026-07-31")
	result, err := r.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "strong bull case", result.Update.InvestmentDebateDelta.BullArgument)
	assert.Empty(t, result.Update.InvestmentDebateDelta.BearArgument)
	assert.True(t, result.Route.Stop)
}

func TestResearcherProducesBearArgument(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "strong bear case"}, nil
		},
	}
	r := &Researcher{Provider: provider, Memory: memory.NoopStore{}, Stance: "bear", Model: "gpt-4o-mini"}

	state := *blackboard.New("AAPL", "2026-07-31")
	result, err := r.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, "strong bear case", result.Update.InvestmentDebateDelta.BearArgument)
	assert.Empty(t, result.Update.InvestmentDebateDelta.BullArgument)
}

func TestManagerContinuesUnderMaxRounds(t *testing.T) {
	m := &Manager{Memory: memory.NoopStore{}}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.ResearchDebateState.CurrentRound = 1
	state.ResearchDebateState.MaxRounds = 3

	result, err := m.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, result.Update.ContinueDebate)
	assert.True(t, *result.Update.ContinueDebate)
	assert.Equal(t, NodeController, result.Route.Next)
}

func TestManagerSynthesizesPlanAtMaxRounds(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "buy on strength"}, nil
		},
	}
	m := &Manager{Provider: provider, Memory: memory.NoopStore{}}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.ResearchDebateState.CurrentRound = 3
	state.ResearchDebateState.MaxRounds = 3

	result, err := m.Run(context.Background(), state)
	require.NoError(t, err)

	require.NotNil(t, result.Update.InvestmentPlan)
	assert.Equal(t, "buy on strength", *result.Update.InvestmentPlan)
	require.NotNil(t, result.Update.RiskAnalysisNeeded)
	assert.True(t, *result.Update.RiskAnalysisNeeded)
	assert.Equal(t, "risk_manager", result.Route.Next)
}

func TestManagerDefaultsMaxRoundsWhenUnset(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "plan"}, nil
		},
	}
	m := &Manager{Provider: provider, Memory: memory.NoopStore{}}
	state := *blackboard.New("AAPL", "2026-07-31")
	state.ResearchDebateState.CurrentRound = 1
	state.ResearchDebateState.MaxRounds = 0

	result, err := m.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, NodeController, result.Route.Next)
}
