package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingagents/internal/analysts"
	"tradingagents/internal/collectors"
	"tradingagents/internal/config"
	"tradingagents/internal/events"
	"tradingagents/internal/llm"
	"tradingagents/internal/research"
	"tradingagents/internal/risk"
	"tradingagents/internal/tools"
)

func testDeps() Deps {
	finnhub := collectors.NewFinnhubFetcher("", nil)
	alphaVantage := collectors.NewAlphaVantageFetcher("", nil)
	priceChain := collectors.NewFallbackChain([]collectors.Upstream{finnhub.PriceUpstream()}, 5, time.Minute, 5)
	cryptoChain := collectors.NewFallbackChain([]collectors.Upstream{finnhub.CryptoPriceUpstream()}, 5, time.Minute, 5)

	return Deps{
		Collectors: Collectors{
			Fundamentals: collectors.NewFundamentalsCollector(finnhub, alphaVantage, collectors.NewCache("", 0, nil), time.Hour, nil),
			Crypto:       collectors.NewCryptoCollector(cryptoChain, collectors.NewCache("", 0, nil), time.Hour),
			Indicators:   collectors.NewIndicatorCollector(priceChain, collectors.NewCache("", 0, nil), time.Hour, nil),
		},
		Provider: &llm.MockProvider{},
		Registry: tools.NewRegistry(),
		Executor: tools.NewExecutor(tools.NewRegistry(), time.Second, nil),
		Social:   []analysts.SocialSource{},
		Model:    "gpt-4o-mini",
		Tunables: config.DefaultTunables(),
	}
}

func TestBuildRegistersEveryNodeInSequence(t *testing.T) {
	orch := Build(testDeps(), events.NewDispatcher(nil))

	names := orch.Nodes()
	expected := []string{
		NodeIntake, NodeDispatch,
		"market_analyst", "fundamentals_analyst", "news_analyst", "social_analyst",
		NodeAggregate,
		research.NodeController, research.NodeBull, research.NodeBear, research.NodeManager,
		risk.NodeManager, risk.NodeDispatch, risk.NodeRisky, risk.NodeSafe, risk.NodeNeutral, risk.NodeAggregator,
		risk.NodeTrader,
	}
	assert.ElementsMatch(t, expected, names)
}

func TestBuildDefaultsToNoopMemoryWhenUnset(t *testing.T) {
	deps := testDeps()
	deps.Memory = nil
	orch := Build(deps, events.NewDispatcher(nil))
	assert.NotEmpty(t, orch.Nodes())
}

func TestOrchestratorDispatcherAccessorReturnsSameInstance(t *testing.T) {
	d := events.NewDispatcher(nil)
	orch := Build(testDeps(), d)
	assert.Same(t, d, orch.Dispatcher())
}

func TestExtractSignal(t *testing.T) {
	cases := map[string]string{
		"Looks solid.\n\nFINAL DECISION: BUY": "BUY",
		"Too risky.\nFINAL DECISION: SELL.":   "SELL",
		"Mixed signals. FINAL DECISION: HOLD": "HOLD",
		"final decision: buy":                 "BUY",
		"no decision phrase present":          "HOLD",
		"FINAL DECISION: MAYBE":               "HOLD",
		"":                                    "HOLD",
	}
	for input, want := range cases {
		assert.Equal(t, want, ExtractSignal(input), "input=%q", input)
	}
}

func TestRunEndToEndReachesTraderDecision(t *testing.T) {
	provider := &llm.MockProvider{
		ChatFunc: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{Content: "FINAL DECISION: HOLD"}, nil
		},
	}
	deps := testDeps()
	deps.Provider = provider
	deps.Tunables.MaxDebateRounds = 1

	orch := Build(deps, events.NewDispatcher(nil))

	result, err := orch.Run(context.Background(), "AAPL", "2026-07-31")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", result.Symbol)
	assert.Contains(t, result.FinalTradeDecision, "FINAL DECISION")
}
