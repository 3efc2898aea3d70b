package analysts

import (
	"context"
	"strings"
	"time"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
)

// reportErrorPhrases mirror the tool executor's knownErrorPhrases
// (internal/tools/executor.go) — spec.md §4.6 classifies a report as
// failed if it "contains such phrases", the same test §4.2 applies to a
// single tool result.
var reportErrorPhrases = []string{
	"unable to retrieve",
	"error",
	"no data",
	"not available",
	"failed to fetch",
}

// Aggregator implements spec.md §4.6: the single node that runs after
// all four analyst Sends rejoin, converting four independent report
// outcomes into one readiness verdict.
type Aggregator struct {
	MaxDebateRounds int
	Events          dispatcher
}

var _ graph.Node = (*Aggregator)(nil)

func (a *Aggregator) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	reports := map[blackboard.AnalystKind]string{
		blackboard.AnalystMarket:       state.MarketReport,
		blackboard.AnalystNews:         state.NewsReport,
		blackboard.AnalystSocial:       state.SentimentReport,
		blackboard.AnalystFundamentals: state.FundamentalsReport,
	}

	validCount := 0
	var emptyReports []blackboard.AnalystKind
	for _, kind := range blackboard.AllAnalysts {
		if isValidReport(reports[kind]) {
			validCount++
		} else {
			emptyReports = append(emptyReports, kind)
		}
	}

	status := aggregationStatus(validCount)
	ready := status != blackboard.AggregationCompleteFailure
	lowQuality := validCount < 2

	now := time.Now()
	speedup := speedupFactor(state.ExecutionTimes)

	update := blackboard.Update{
		Step:              "aggregate",
		ParallelEndTime:   &now,
		SpeedupFactor:     blackboard.Ptr(speedup),
		AggregationStatus: &status,
		AggregationReady:  blackboard.Ptr(ready),
		LowQualityReports: blackboard.Ptr(lowQuality),
		EmptyReports:      emptyReports,
	}

	if state.InvestmentDebateState.RoundCount == 0 && state.ResearchDebateState.MaxRounds == 0 {
		maxRounds := a.MaxDebateRounds
		if maxRounds <= 0 {
			maxRounds = 3
		}
		update.ResearchDebateDelta = &blackboard.ResearchDebateDelta{
			CurrentRound: blackboard.Ptr(0),
			MaxRounds:    blackboard.Ptr(maxRounds),
		}
	}

	if a.Events != nil {
		a.Events.Emit(ctx, events.Status("aggregation complete: "+string(status)))
	}

	if status == blackboard.AggregationCompleteFailure {
		// spec.md §7 "Aggregation failure": skip research/risk entirely and
		// route straight to a conservative HOLD decision.
		decision := "FINAL DECISION: HOLD"
		update.FinalTradeDecision = &decision
		update.TraderInvestmentPlan = blackboard.Ptr("Insufficient analyst coverage; defaulting to HOLD.")
		if a.Events != nil {
			a.Events.Emit(ctx, events.Complete("HOLD"))
		}
		return graph.NodeResult{Update: update, Route: graph.Stop()}, nil
	}

	return graph.NodeResult{Update: update, Route: graph.NextNode("research_controller")}, nil
}

// isValidReport implements spec.md §4.6: length > 50 and none of the
// known error phrases.
func isValidReport(report string) bool {
	if len(report) <= minReportLength {
		return false
	}
	lower := strings.ToLower(report)
	for _, phrase := range reportErrorPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	return true
}

// aggregationStatus implements the §4.6 valid-count -> status table.
func aggregationStatus(validCount int) blackboard.AggregationStatus {
	switch validCount {
	case 4, 3:
		return blackboard.AggregationSuccess
	case 2:
		return blackboard.AggregationPartialSuccess
	case 1:
		return blackboard.AggregationMinimalSuccess
	default:
		return blackboard.AggregationCompleteFailure
	}
}

// speedupFactor implements §3/§4.6/testable-property P6:
// sum(individual) / max(individual), 1.0 when fewer than two analysts
// have a recorded execution time (avoids a division producing a
// misleadingly large ratio off a single sample).
func speedupFactor(times map[blackboard.AnalystKind]time.Duration) float64 {
	var sum time.Duration
	var max time.Duration
	count := 0
	for _, d := range times {
		if d <= 0 {
			continue
		}
		count++
		sum += d
		if d > max {
			max = d
		}
	}
	if count < 2 || max == 0 {
		return 1.0
	}
	return float64(sum) / float64(max)
}
