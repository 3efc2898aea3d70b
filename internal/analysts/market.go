package analysts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/collectors"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/logger"
)

// MarketAnalyst implements the direct-mode technical-analysis node
// (spec.md §4.5): no LLM call, a deterministic report built straight
// from the indicator collector's output (testable property P7/P8).
type MarketAnalyst struct {
	Collector *collectors.IndicatorCollector
	Period    string
	Events    dispatcher
}

var _ graph.Node = (*MarketAnalyst)(nil)

// Run fetches the indicator battery for the run's symbol and renders it
// into the market_report field.
func (a *MarketAnalyst) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	start := time.Now()
	ctx = logger.WithComponent(ctx, "market_analyst")
	log := logger.GetLogger(ctx)
	emitAgentStatus(ctx, a.Events, string(blackboard.AnalystMarket), events.AgentInProgress)

	period := a.Period
	if period == "" {
		period = "6mo"
	}

	set, err := a.Collector.Get(ctx, state.CompanyOfInterest, period)
	elapsed := time.Since(start)
	if err != nil {
		log.Error("indicator fetch failed", zap.String("period", period), zap.Error(err))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystMarket), events.AgentError)
		return routeThroughSend(finishResult{
			Kind:          blackboard.AnalystMarket,
			Status:        blackboard.StatusError,
			ExecutionTime: elapsed,
			ErrorMessage:  err.Error(),
		}), nil
	}

	report := renderMarketReport(state.CompanyOfInterest, period, set)
	status := classify(report, 0, false)
	if status == blackboard.StatusCompleted {
		log.Info("market report ready", zap.Duration("elapsed", elapsed), zap.Int("indicators", len(set.Values)))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystMarket), events.AgentCompleted)
	} else {
		log.Warn("market report below quality floor", zap.Int("report_length", len(report)))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystMarket), events.AgentError)
	}
	emitReport(ctx, a.Events, "market_report", report)

	return routeThroughSend(finishResult{
		Kind:          blackboard.AnalystMarket,
		Report:        report,
		Status:        status,
		ExecutionTime: elapsed,
	}), nil
}

// renderMarketReport is a pure function of an IndicatorSet (P8): the
// same set always renders the same text.
func renderMarketReport(symbol, period string, set *collectors.IndicatorSet) string {
	if set == nil || len(set.Values) == 0 {
		return fmt.Sprintf("Market analysis for %s (%s): insufficient OHLCV data to compute indicators.", symbol, period)
	}

	names := make([]string, 0, len(set.Values))
	for name := range set.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Market analysis for %s over %s (%d bars observed).\n\n", symbol, period, len(set.Bars))
	b.WriteString("Technical indicators:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %.4f\n", name, set.Values[name])
	}

	if len(set.Bars) > 0 {
		last := set.Bars[len(set.Bars)-1]
		fmt.Fprintf(&b, "\nMost recent close: %.2f (volume %.0f) on %s.\n", last.Close, last.Volume, last.Date)
	}
	return b.String()
}
