// Package orchestrator wires the Blackboard, the graph Engine, the data
// collectors, the LLM provider, the tool registry/executor, and the
// event dispatcher into one runnable analysis pipeline (spec.md §4.10's
// full node sequence: intake -> dispatch -> 4 analysts -> aggregate ->
// research loop -> risk gate -> risk loop -> trader -> END).
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tradingagents/internal/analysts"
	"tradingagents/internal/blackboard"
	"tradingagents/internal/collectors"
	"tradingagents/internal/config"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/llm"
	"tradingagents/internal/logger"
	"tradingagents/internal/memory"
	"tradingagents/internal/research"
	"tradingagents/internal/risk"
	"tradingagents/internal/tools"
	"tradingagents/internal/trader"
)

// Collectors bundles every data-fetching dependency the analyst nodes
// need, assembled by the CLI entrypoint from config.Config.
type Collectors struct {
	Fundamentals *collectors.FundamentalsCollector
	Crypto       *collectors.CryptoCollector
	Indicators   *collectors.IndicatorCollector
}

// Deps is everything Build needs to assemble a ready-to-run Engine.
type Deps struct {
	Collectors Collectors
	Provider   llm.Provider
	Registry   *tools.Registry
	Executor   *tools.Executor
	Social     []analysts.SocialSource
	Memory     memory.Store
	Model      string
	Tunables   config.Tunables
	Log        *zap.Logger
}

// Orchestrator owns the built Engine and the shared event dispatcher
// every node was wired against at Build time. The API layer attaches a
// per-request SSE sink to Dispatcher() around a streamed run and detaches
// it when the request ends.
type Orchestrator struct {
	engine     *graph.Engine
	dispatcher *events.Dispatcher
	log        *zap.Logger
}

// Dispatcher returns the shared event dispatcher nodes emit through.
func (o *Orchestrator) Dispatcher() *events.Dispatcher { return o.dispatcher }

// Nodes lists every node name registered in the built graph, in
// registration order.
func (o *Orchestrator) Nodes() []string { return o.engine.Nodes() }

// Build constructs the Engine with every node registered per spec.md
// §4.10's sequence. emitter is attached to every node, so a sink
// attached to it (as the API's streaming endpoint does) receives the
// run's events.
func Build(deps Deps, emitter *events.Dispatcher) *Orchestrator {
	if deps.Memory == nil {
		deps.Memory = memory.NoopStore{}
	}

	eng := graph.New(
		graph.WithMaxSteps(deps.Tunables.MaxGraphSteps),
		graph.WithDefaultNodeTimeout(deps.Tunables.NodeTimeout),
	)

	eng.Add(NodeIntake, &intake{Events: emitter})
	eng.Add(NodeDispatch, &dispatch{Events: emitter})

	eng.Add("market_analyst", &analysts.MarketAnalyst{
		Collector: deps.Collectors.Indicators,
		Events:    emitter,
	})
	eng.Add("fundamentals_analyst", &analysts.FundamentalsAnalyst{
		Collector:       deps.Collectors.Fundamentals,
		CryptoCollector: deps.Collectors.Crypto,
		Events:          emitter,
	})
	eng.Add("news_analyst", &analysts.NewsAnalyst{
		Provider: deps.Provider,
		Executor: deps.Executor,
		Registry: deps.Registry,
		Model:    deps.Model,
		Events:   emitter,
	})
	eng.Add("social_analyst", &analysts.SocialAnalyst{
		Provider: deps.Provider,
		Sources:  deps.Social,
		Model:    deps.Model,
		Events:   emitter,
	})

	eng.Add(NodeAggregate, &analysts.Aggregator{MaxDebateRounds: deps.Tunables.MaxDebateRounds, Events: emitter})

	eng.Add(research.NodeController, &research.Controller{Events: emitter})
	eng.Add(research.NodeBull, &research.Researcher{Provider: deps.Provider, Memory: deps.Memory, Stance: "bull", Model: deps.Model, Events: emitter})
	eng.Add(research.NodeBear, &research.Researcher{Provider: deps.Provider, Memory: deps.Memory, Stance: "bear", Model: deps.Model, Events: emitter})
	eng.Add(research.NodeManager, &research.Manager{Provider: deps.Provider, Memory: deps.Memory, Model: deps.Model, Events: emitter})

	eng.Add(risk.NodeManager, &risk.Manager{Provider: deps.Provider, Memory: deps.Memory, Model: deps.Model, Events: emitter})
	eng.Add(risk.NodeDispatch, &risk.Dispatch{Events: emitter})
	eng.Add(risk.NodeRisky, &risk.Debator{Provider: deps.Provider, Stance: "risky", Model: deps.Model, Events: emitter})
	eng.Add(risk.NodeSafe, &risk.Debator{Provider: deps.Provider, Stance: "safe", Model: deps.Model, Events: emitter})
	eng.Add(risk.NodeNeutral, &risk.Debator{Provider: deps.Provider, Stance: "neutral", Model: deps.Model, Events: emitter})
	eng.Add(risk.NodeAggregator, &risk.Aggregator{Events: emitter})

	eng.Add(risk.NodeTrader, &trader.Trader{Provider: deps.Provider, Model: deps.Model, Events: emitter})

	return &Orchestrator{engine: eng, dispatcher: emitter, log: deps.Log}
}

// Result is the resolved Blackboard handed back to the API layer.
type Result struct {
	Symbol             string
	TradeDate          string
	FinalTradeDecision string
	ProcessedSignal    string
	Blackboard         blackboard.Blackboard
}

// ExtractSignal implements spec.md §9's Open Question decision (recorded
// in DESIGN.md): read the last word after the literal substring
// "FINAL DECISION:" in decision, uppercase and trim punctuation, and
// validate it is one of BUY/SELL/HOLD. If the phrase is absent or the
// trailing word isn't one of those three, default to the conservative
// HOLD signal rather than surfacing an invalid value to the caller.
func ExtractSignal(decision string) string {
	const marker = "FINAL DECISION:"
	idx := strings.LastIndex(strings.ToUpper(decision), marker)
	if idx < 0 {
		return "HOLD"
	}
	tail := strings.TrimSpace(decision[idx+len(marker):])
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return "HOLD"
	}
	word := strings.ToUpper(strings.Trim(fields[0], ".,!:;\"'"))
	switch word {
	case "BUY", "SELL", "HOLD":
		return word
	default:
		return "HOLD"
	}
}

// Run executes one analysis to completion and returns the final state.
// The engine's own wall-clock budget and step cap (spec.md §4.4/§5)
// bound how long this can run. Every node's Run(ctx, ...) inherits the
// run_id/symbol-tagged logger seeded here (SPEC_FULL.md §10.1), so log
// lines from intake through the trader can be correlated to this run.
func (o *Orchestrator) Run(ctx context.Context, symbol, tradeDate string) (*Result, error) {
	base := o.log
	if base == nil {
		base = zap.NewNop()
	}
	ctx = logger.WithLogger(ctx, base)
	ctx = logger.WithRun(ctx, uuid.NewString(), symbol)
	log := logger.GetLogger(ctx)
	log.Info("analysis run starting", zap.String("trade_date", tradeDate))

	state := blackboard.New(symbol, tradeDate)
	if err := o.engine.Run(ctx, NodeIntake, state); err != nil {
		log.Error("analysis run failed", zap.Error(err))
		return nil, fmt.Errorf("run analysis for %s: %w", symbol, err)
	}

	signal := ExtractSignal(state.FinalTradeDecision)
	log.Info("analysis run complete", zap.String("processed_signal", signal))
	return &Result{
		Symbol:             symbol,
		TradeDate:          tradeDate,
		FinalTradeDecision: state.FinalTradeDecision,
		ProcessedSignal:    signal,
		Blackboard:         *state,
	}, nil
}
