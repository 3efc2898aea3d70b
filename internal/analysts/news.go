package analysts

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/llm"
	"tradingagents/internal/logger"
	"tradingagents/internal/tools"
)

// NewsAnalyst implements the LLM-driven mode from spec.md §4.5: it binds
// the news-kind tools from the registry, demands tool use, and asks for
// a structured report once the tool outputs are in hand.
type NewsAnalyst struct {
	Provider llm.Provider
	Executor *tools.Executor
	Registry *tools.Registry
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*NewsAnalyst)(nil)

func (a *NewsAnalyst) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	start := time.Now()
	ctx = logger.WithComponent(ctx, "news_analyst")
	log := logger.GetLogger(ctx)
	emitAgentStatus(ctx, a.Events, string(blackboard.AnalystNews), events.AgentInProgress)

	boundTools := a.Registry.ForAnalyst(blackboard.AnalystNews)
	result, err := RunToolLoop(ctx, ToolLoopConfig{
		Provider: a.Provider,
		Executor: a.Executor,
		Tools:    boundTools,
		Model:    a.Model,
		SystemPrompt: "You are a financial news analyst. Use the available tools to gather recent " +
			"news for the given company before writing your report. Never answer from memory alone.",
		UserPrompt: "Research recent news for " + state.CompanyOfInterest + " as of " + state.TradeDate +
			" and summarize what could move the stock.",
		ReportPrompt: "Using only the tool results above, write a structured news report covering: " +
			"headline events, sentiment of coverage, and any near-term catalysts.",
	})
	elapsed := time.Since(start)
	if err != nil {
		log.Error("news tool loop failed", zap.Error(err))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystNews), events.AgentError)
		return routeThroughSend(finishResult{
			Kind:          blackboard.AnalystNews,
			Status:        blackboard.StatusError,
			ExecutionTime: elapsed,
			ErrorMessage:  err.Error(),
		}), nil
	}

	if result.Warning {
		log.Warn("news analyst produced no tool-backed results")
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystNews), events.AgentError)
		return routeThroughSend(finishResult{
			Kind:          blackboard.AnalystNews,
			Report:        "News analyst could not obtain tool-backed results; no report produced.",
			Status:        blackboard.StatusWarning,
			ExecutionTime: elapsed,
			Messages:      result.Messages,
		}), nil
	}

	status := classify(result.Report, result.ToolCalls, true)
	if status == blackboard.StatusCompleted {
		log.Info("news report ready", zap.Int("tool_calls", result.ToolCalls), zap.Duration("elapsed", elapsed))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystNews), events.AgentCompleted)
	} else {
		log.Warn("news report below quality floor", zap.Int("tool_calls", result.ToolCalls))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystNews), events.AgentError)
	}
	emitReport(ctx, a.Events, "news_report", result.Report)

	return routeThroughSend(finishResult{
		Kind:          blackboard.AnalystNews,
		Report:        result.Report,
		Status:        status,
		ToolCalls:     result.ToolCalls,
		ExecutionTime: elapsed,
		Messages:      result.Messages,
	}), nil
}
