package analysts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/collectors"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/logger"
)

// FundamentalsAnalyst implements the direct-mode fundamentals node
// (spec.md §4.5, §4.1.3): crypto detection happens here, at the entry
// point, per spec.md §9's Redesign Flag folding the original's separate
// crypto-aware variant into the single fundamentals analyst.
type FundamentalsAnalyst struct {
	Collector       *collectors.FundamentalsCollector
	CryptoCollector *collectors.CryptoCollector
	Events          dispatcher
}

var _ graph.Node = (*FundamentalsAnalyst)(nil)

func (a *FundamentalsAnalyst) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	start := time.Now()
	ctx = logger.WithComponent(ctx, "fundamentals_analyst")
	log := logger.GetLogger(ctx)
	emitAgentStatus(ctx, a.Events, string(blackboard.AnalystFundamentals), events.AgentInProgress)

	symbol := state.CompanyOfInterest
	isCrypto := collectors.IsCrypto(symbol)
	var report string
	var fetchErr error

	if isCrypto {
		var rec *collectors.CryptoRecord
		rec, fetchErr = a.CryptoCollector.Get(ctx, symbol)
		if fetchErr == nil {
			report = renderCryptoReport(symbol, rec)
		}
	} else {
		var rec *collectors.FundamentalsRecord
		rec, fetchErr = a.Collector.Get(ctx, symbol, time.Now())
		if fetchErr == nil {
			report = renderFundamentalsReport(symbol, rec)
		}
	}

	elapsed := time.Since(start)
	if fetchErr != nil {
		log.Error("fundamentals fetch failed", zap.Bool("crypto", isCrypto), zap.Error(fetchErr))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystFundamentals), events.AgentError)
		return routeThroughSend(finishResult{
			Kind:          blackboard.AnalystFundamentals,
			Status:        blackboard.StatusError,
			ExecutionTime: elapsed,
			ErrorMessage:  fetchErr.Error(),
		}), nil
	}

	status := classify(report, 0, false)
	if status == blackboard.StatusCompleted {
		log.Info("fundamentals report ready", zap.Bool("crypto", isCrypto), zap.Duration("elapsed", elapsed))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystFundamentals), events.AgentCompleted)
	} else {
		log.Warn("fundamentals report below quality floor", zap.Int("report_length", len(report)))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystFundamentals), events.AgentError)
	}
	emitReport(ctx, a.Events, "fundamentals_report", report)

	return routeThroughSend(finishResult{
		Kind:          blackboard.AnalystFundamentals,
		Report:        report,
		Status:        status,
		ExecutionTime: elapsed,
	}), nil
}

// renderCryptoReport begins with the header testable scenario P2's
// "crypto path" expects, and leads with CurrentPrice — the one
// authoritative real-time number spec.md §4.1.3 says must reach
// downstream reasoning so an LLM never invents a stale price.
func renderCryptoReport(symbol string, rec *collectors.CryptoRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crypto fundamentals for %s.\n\n", symbol)
	fmt.Fprintf(&b, "Current price: $%.4f (authoritative, live).\n", rec.CurrentPrice)
	fmt.Fprintf(&b, "24h range: $%.4f - $%.4f, volume %.2f.\n", rec.Low24h, rec.High24h, rec.Volume24h)
	fmt.Fprintf(&b, "Circulating supply: %.0f, market cap: $%.0f.\n", rec.CirculatingSupply, rec.MarketCap)
	b.WriteString("No traditional equity fundamentals (P/E, earnings, balance sheet) apply to this asset.\n")
	return b.String()
}

func renderFundamentalsReport(symbol string, rec *collectors.FundamentalsRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fundamentals for %s (%d/%d endpoints fetched).\n\n", symbol, rec.EndpointsFetched, rec.EndpointsTotal)

	pt := rec.PriceTargets
	fmt.Fprintf(&b, "Price targets: mean %.2f (low %.2f, high %.2f), %d analysts, confidence %s, source %q.\n",
		pt.TargetMean, pt.TargetLow, pt.TargetHigh, pt.NumberOfAnalysts, pt.Confidence, pt.Source)

	rc := rec.AnalystRecommendations
	fmt.Fprintf(&b, "Analyst recommendations: strong buy %d, buy %d, hold %d, sell %d, strong sell %d.\n",
		rc.StrongBuy, rc.Buy, rc.Hold, rc.Sell, rc.StrongSell)

	if len(rec.BalanceSheet) > 0 {
		fmt.Fprintf(&b, "Balance sheet: %d periods available.\n", len(rec.BalanceSheet))
	}
	if len(rec.IncomeStatement) > 0 {
		fmt.Fprintf(&b, "Income statement: %d periods available.\n", len(rec.IncomeStatement))
	}
	if len(rec.CashFlow) > 0 {
		fmt.Fprintf(&b, "Cash flow: %d periods available.\n", len(rec.CashFlow))
	}
	if len(rec.Profile) > 0 {
		b.WriteString("Company profile data available.\n")
	}
	if len(rec.AllMetrics) > 0 {
		b.WriteString("Extended metrics data available.\n")
	}
	return b.String()
}
