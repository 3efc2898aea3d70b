package blackboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSetsIdentityAndZeroState(t *testing.T) {
	bb := New("AAPL", "2026-07-31")

	assert.Equal(t, "AAPL", bb.CompanyOfInterest)
	assert.Equal(t, "2026-07-31", bb.TradeDate)
	assert.Equal(t, "intake", bb.Step)
	assert.Equal(t, AggregationPending, bb.AggregationStatus)
	assert.Empty(t, bb.MarketReport)
	assert.NotNil(t, bb.AnalystStatus)
}

func TestSnapshotIsIndependentOfSource(t *testing.T) {
	bb := New("MSFT", "2026-07-31")
	bb.AnalystStatus[AnalystMarket] = StatusRunning
	bb.MessageLogs[AnalystMarket] = []Message{{ID: "m1", Role: RoleUser, Content: "hi"}}

	snap := bb.Snapshot()
	snap.AnalystStatus[AnalystMarket] = StatusCompleted
	snap.MessageLogs[AnalystMarket][0].Content = "mutated"
	snap.InvestmentDebateState.BullHistory = append(snap.InvestmentDebateState.BullHistory, "leaked")

	assert.Equal(t, StatusRunning, bb.AnalystStatus[AnalystMarket], "mutating the snapshot's map must not affect the source")
	assert.Equal(t, "hi", bb.MessageLogs[AnalystMarket][0].Content)
	assert.Empty(t, bb.InvestmentDebateState.BullHistory)
}

func TestApplyReplaceReducerOnlyTouchesSetFields(t *testing.T) {
	bb := New("TSLA", "2026-07-31")
	bb.NewsReport = "existing news"

	Apply(bb, Update{MarketReport: Ptr("fresh market report")})

	assert.Equal(t, "fresh market report", bb.MarketReport)
	assert.Equal(t, "existing news", bb.NewsReport, "untouched fields must survive a partial update")
}

func TestApplyMergeMapUnionsKeys(t *testing.T) {
	bb := New("NVDA", "2026-07-31")
	Apply(bb, Update{AnalystStatus: map[AnalystKind]AnalystStatus{AnalystMarket: StatusRunning}})
	Apply(bb, Update{AnalystStatus: map[AnalystKind]AnalystStatus{AnalystNews: StatusRunning}})

	assert.Equal(t, StatusRunning, bb.AnalystStatus[AnalystMarket])
	assert.Equal(t, StatusRunning, bb.AnalystStatus[AnalystNews])

	Apply(bb, Update{AnalystStatus: map[AnalystKind]AnalystStatus{AnalystMarket: StatusCompleted}})
	assert.Equal(t, StatusCompleted, bb.AnalystStatus[AnalystMarket], "right-hand update wins per key")
	assert.Equal(t, StatusRunning, bb.AnalystStatus[AnalystNews])
}

func TestApplyAppendMessagesDedupsByID(t *testing.T) {
	bb := New("AMD", "2026-07-31")
	first := Message{ID: "a1", Role: RoleAssistant, Content: "first"}
	Apply(bb, Update{MessageLogs: map[AnalystKind][]Message{AnalystSocial: {first}}})

	dupe := Message{ID: "a1", Role: RoleAssistant, Content: "duplicate, should be dropped"}
	second := Message{ID: "a2", Role: RoleToolResult, Content: "second"}
	Apply(bb, Update{MessageLogs: map[AnalystKind][]Message{AnalystSocial: {dupe, second}}})

	require.Len(t, bb.MessageLogs[AnalystSocial], 2)
	assert.Equal(t, "first", bb.MessageLogs[AnalystSocial][0].Content)
	assert.Equal(t, "second", bb.MessageLogs[AnalystSocial][1].Content)
}

func TestApplyMergeDebateIsAdditiveAndLastWriteWinsOnScalars(t *testing.T) {
	bb := New("GOOG", "2026-07-31")
	Apply(bb, Update{InvestmentDebateDelta: &InvestmentDebateDelta{
		BullArgument: "strong earnings",
		RoundCount:   Ptr(1),
	}})
	Apply(bb, Update{InvestmentDebateDelta: &InvestmentDebateDelta{
		BearArgument:  "valuation stretched",
		JudgeDecision: "continue",
		RoundCount:    Ptr(2),
	}})

	assert.Equal(t, []string{"strong earnings"}, bb.InvestmentDebateState.BullHistory)
	assert.Equal(t, []string{"valuation stretched"}, bb.InvestmentDebateState.BearHistory)
	assert.Equal(t, []string{"Bull: strong earnings", "Bear: valuation stretched"}, bb.InvestmentDebateState.History)
	assert.Equal(t, "continue", bb.InvestmentDebateState.JudgeDecision)
	assert.Equal(t, 2, bb.InvestmentDebateState.RoundCount)
}

func TestApplyExplicitFalseFlagIsDistinguishableFromUntouched(t *testing.T) {
	bb := New("AMZN", "2026-07-31")
	Apply(bb, Update{ContinueDebate: Ptr(true)})
	assert.True(t, bb.ContinueDebate)

	Apply(bb, Update{}) // no-op update must not clear the flag
	assert.True(t, bb.ContinueDebate)

	Apply(bb, Update{ContinueDebate: Ptr(false)})
	assert.False(t, bb.ContinueDebate)
}

func TestApplyRiskDebateCountAccumulates(t *testing.T) {
	bb := New("META", "2026-07-31")
	Apply(bb, Update{RiskDebateDelta: &RiskDebateDelta{RiskyResponse: "go big", CountDelta: 1}})
	Apply(bb, Update{RiskDebateDelta: &RiskDebateDelta{SafeResponse: "hold back", CountDelta: 1}})
	Apply(bb, Update{RiskDebateDelta: &RiskDebateDelta{NeutralResponse: "balanced", CountDelta: 1}})

	assert.Equal(t, 3, bb.RiskDebateState.Count)
	assert.Equal(t, []string{"Risky: go big", "Safe: hold back", "Neutral: balanced"}, bb.RiskDebateState.History)
}

func TestExecutionTimesAndToolCallCountsMergeIndependently(t *testing.T) {
	bb := New("NFLX", "2026-07-31")
	Apply(bb, Update{
		ExecutionTimes: map[AnalystKind]time.Duration{AnalystMarket: 2 * time.Second},
		ToolCallCounts: map[AnalystKind]int{AnalystMarket: 3},
	})
	Apply(bb, Update{
		ExecutionTimes: map[AnalystKind]time.Duration{AnalystNews: time.Second},
		ToolCallCounts: map[AnalystKind]int{AnalystNews: 1},
	})

	assert.Equal(t, 2*time.Second, bb.ExecutionTimes[AnalystMarket])
	assert.Equal(t, time.Second, bb.ExecutionTimes[AnalystNews])
	assert.Equal(t, 3, bb.ToolCallCounts[AnalystMarket])
	assert.Equal(t, 1, bb.ToolCallCounts[AnalystNews])
}

func TestAnalystStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusWarning.Terminal())
	assert.True(t, StatusError.Terminal())
}
