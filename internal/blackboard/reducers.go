package blackboard

import "time"

// Update is a node's partial result. It shares Blackboard's shape: an
// empty Step means "this node did not touch that field"; every other
// replace-reducer field (reports, plans, timestamps, speedup factor, and
// the flags that must be able to go explicitly false: ContinueDebate,
// RiskAnalysisNeeded, RiskDebateDone, AggregationReady,
// LowQualityReports, consensus) is a pointer, where nil means untouched
// and a non-nil pointer carries the explicit value. Map and slice fields use
// their own merge reducers (merge_map / append_messages) and are always
// additive, so a nil/empty map or slice is naturally a no-op.
type Update struct {
	Step string

	MarketReport       *string
	NewsReport         *string
	SentimentReport    *string
	FundamentalsReport *string

	AnalystStatus  map[AnalystKind]AnalystStatus
	MessageLogs    map[AnalystKind][]Message
	ToolCallCounts map[AnalystKind]int
	ExecutionTimes map[AnalystKind]time.Duration
	AnalystErrors  map[AnalystKind]string

	ParallelStartTime *time.Time
	ParallelEndTime   *time.Time
	SpeedupFactor     *float64

	AggregationStatus *AggregationStatus
	AggregationReady  *bool
	LowQualityReports *bool
	EmptyReports      []AnalystKind

	InvestmentDebateDelta *InvestmentDebateDelta
	ResearchDebateDelta   *ResearchDebateDelta
	RiskDebateDelta       *RiskDebateDelta

	InvestmentPlan       *string
	TraderInvestmentPlan *string
	FinalTradeDecision   *string

	ContinueDebate     *bool
	RiskAnalysisNeeded *bool
	RiskDebateDone     *bool
}

// InvestmentDebateDelta is the merge_debate payload for the bull/bear loop.
type InvestmentDebateDelta struct {
	BullArgument    string
	BearArgument    string
	CurrentResponse string
	JudgeDecision   string
	RoundCount      *int
}

// ResearchDebateDelta is the merge_debate payload for the research controller.
type ResearchDebateDelta struct {
	CurrentRound     *int
	MaxRounds        *int
	Entry            string
	ConsensusReached *bool
}

// RiskDebateDelta is the merge_debate payload for the risk debate.
type RiskDebateDelta struct {
	RiskyResponse   string
	SafeResponse    string
	NeutralResponse string
	JudgeDecision   string
	CountDelta      int
}

// Apply merges update into bb using the per-field reducer catalog from
// spec.md §3. It never suspends (§5) and is safe to call repeatedly from
// a single-threaded engine loop as branches rejoin.
func Apply(bb *Blackboard, u Update) {
	if u.Step != "" {
		bb.Step = u.Step
	}
	applyReplace(&bb.MarketReport, u.MarketReport)
	applyReplace(&bb.NewsReport, u.NewsReport)
	applyReplace(&bb.SentimentReport, u.SentimentReport)
	applyReplace(&bb.FundamentalsReport, u.FundamentalsReport)

	mergeStatusMap(bb.AnalystStatus, u.AnalystStatus)
	mergeMessages(bb.MessageLogs, u.MessageLogs)
	mergeIntMap(bb.ToolCallCounts, u.ToolCallCounts)
	mergeDurationMap(bb.ExecutionTimes, u.ExecutionTimes)
	mergeStringMap(bb.AnalystErrors, u.AnalystErrors)

	if u.ParallelStartTime != nil {
		bb.ParallelStartTime = *u.ParallelStartTime
	}
	if u.ParallelEndTime != nil {
		bb.ParallelEndTime = *u.ParallelEndTime
	}
	if u.SpeedupFactor != nil {
		bb.SpeedupFactor = *u.SpeedupFactor
	}

	if u.AggregationStatus != nil {
		bb.AggregationStatus = *u.AggregationStatus
	}
	if u.AggregationReady != nil {
		bb.AggregationReady = *u.AggregationReady
	}
	if u.LowQualityReports != nil {
		bb.LowQualityReports = *u.LowQualityReports
	}
	if len(u.EmptyReports) > 0 {
		bb.EmptyReports = append(bb.EmptyReports, u.EmptyReports...)
	}

	applyInvestmentDebate(&bb.InvestmentDebateState, u.InvestmentDebateDelta)
	applyResearchDebate(&bb.ResearchDebateState, u.ResearchDebateDelta)
	applyRiskDebate(&bb.RiskDebateState, u.RiskDebateDelta)

	applyReplace(&bb.InvestmentPlan, u.InvestmentPlan)
	applyReplace(&bb.TraderInvestmentPlan, u.TraderInvestmentPlan)
	applyReplace(&bb.FinalTradeDecision, u.FinalTradeDecision)

	if u.ContinueDebate != nil {
		bb.ContinueDebate = *u.ContinueDebate
	}
	if u.RiskAnalysisNeeded != nil {
		bb.RiskAnalysisNeeded = *u.RiskAnalysisNeeded
	}
	if u.RiskDebateDone != nil {
		bb.RiskDebateDone = *u.RiskDebateDone
	}
}

func applyReplace(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func mergeStatusMap(dst map[AnalystKind]AnalystStatus, src map[AnalystKind]AnalystStatus) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeIntMap(dst map[AnalystKind]int, src map[AnalystKind]int) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeDurationMap(dst map[AnalystKind]time.Duration, src map[AnalystKind]time.Duration) {
	for k, v := range src {
		dst[k] = v
	}
}

func mergeStringMap(dst map[AnalystKind]string, src map[AnalystKind]string) {
	for k, v := range src {
		dst[k] = v
	}
}

// mergeMessages implements the append_messages reducer: concatenate
// preserving order, dropping duplicates by message id.
func mergeMessages(dst map[AnalystKind][]Message, src map[AnalystKind][]Message) {
	for k, msgs := range src {
		existing := dst[k]
		seen := make(map[string]bool, len(existing))
		for _, m := range existing {
			seen[m.ID] = true
		}
		for _, m := range msgs {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			existing = append(existing, m)
		}
		dst[k] = existing
	}
}

func applyInvestmentDebate(dst *InvestmentDebateState, delta *InvestmentDebateDelta) {
	if delta == nil {
		return
	}
	if delta.BullArgument != "" {
		dst.BullHistory = append(dst.BullHistory, delta.BullArgument)
		dst.History = append(dst.History, "Bull: "+delta.BullArgument)
	}
	if delta.BearArgument != "" {
		dst.BearHistory = append(dst.BearHistory, delta.BearArgument)
		dst.History = append(dst.History, "Bear: "+delta.BearArgument)
	}
	if delta.CurrentResponse != "" {
		dst.CurrentResponse = delta.CurrentResponse
	}
	if delta.JudgeDecision != "" {
		dst.JudgeDecision = delta.JudgeDecision
	}
	if delta.RoundCount != nil {
		dst.RoundCount = *delta.RoundCount
	}
}

func applyResearchDebate(dst *ResearchDebateState, delta *ResearchDebateDelta) {
	if delta == nil {
		return
	}
	if delta.CurrentRound != nil {
		dst.CurrentRound = *delta.CurrentRound
	}
	if delta.MaxRounds != nil {
		dst.MaxRounds = *delta.MaxRounds
	}
	if delta.Entry != "" {
		dst.DebateHistory = append(dst.DebateHistory, delta.Entry)
	}
	if delta.ConsensusReached != nil {
		dst.ConsensusReached = *delta.ConsensusReached
	}
}

func applyRiskDebate(dst *RiskDebateState, delta *RiskDebateDelta) {
	if delta == nil {
		return
	}
	if delta.RiskyResponse != "" {
		dst.RiskyResponse = delta.RiskyResponse
		dst.History = append(dst.History, "Risky: "+delta.RiskyResponse)
	}
	if delta.SafeResponse != "" {
		dst.SafeResponse = delta.SafeResponse
		dst.History = append(dst.History, "Safe: "+delta.SafeResponse)
	}
	if delta.NeutralResponse != "" {
		dst.NeutralResponse = delta.NeutralResponse
		dst.History = append(dst.History, "Neutral: "+delta.NeutralResponse)
	}
	if delta.JudgeDecision != "" {
		dst.JudgeDecision = delta.JudgeDecision
	}
	dst.Count += delta.CountDelta
}

// Ptr is a small helper for constructing Update values inline, e.g.
// blackboard.Update{ContinueDebate: blackboard.Ptr(true)}.
func Ptr[T any](v T) *T { return &v }
