package analysts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/events"
	"tradingagents/internal/graph"
	"tradingagents/internal/llm"
	"tradingagents/internal/logger"
)

// SocialSource fetches one normalized social-sentiment feed for a
// symbol. Reddit, Twitter, and StockTwits are each wired as a SocialSource
// by the orchestrator.
type SocialSource interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (string, error)
}

// SocialAnalyst implements spec.md §4.5's "Social analyst specifics":
// tool selection is never delegated to the LLM. All three sources are
// always invoked concurrently and handed to the LLM for synthesis only,
// guaranteeing uniform coverage independent of LLM tool choice.
type SocialAnalyst struct {
	Provider llm.Provider
	Sources  []SocialSource
	Model    string
	Events   dispatcher
}

var _ graph.Node = (*SocialAnalyst)(nil)

func (a *SocialAnalyst) Run(ctx context.Context, state blackboard.Blackboard) (graph.NodeResult, error) {
	start := time.Now()
	ctx = logger.WithComponent(ctx, "social_analyst")
	log := logger.GetLogger(ctx)
	emitAgentStatus(ctx, a.Events, string(blackboard.AnalystSocial), events.AgentInProgress)

	texts := make([]string, len(a.Sources))
	errs := make([]error, len(a.Sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.Sources {
		i, src := i, src
		g.Go(func() error {
			text, err := src.Fetch(gctx, state.CompanyOfInterest)
			texts[i] = text
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	var transcript []blackboard.Message
	var combined string
	availableSources := 0
	for i, src := range a.Sources {
		if errs[i] != nil || texts[i] == "" {
			continue
		}
		availableSources++
		combined += fmt.Sprintf("\n--- %s ---\n%s\n", src.Name(), texts[i])
		transcript = append(transcript, blackboard.Message{
			ID:       uuid.NewString(),
			Role:     blackboard.RoleToolResult,
			Content:  texts[i],
			ToolName: src.Name(),
		})
	}

	elapsed := time.Since(start)
	if availableSources == 0 {
		log.Warn("all social sources returned empty or failed", zap.Int("sources", len(a.Sources)))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystSocial), events.AgentError)
		return routeThroughSend(finishResult{
			Kind:          blackboard.AnalystSocial,
			Status:        blackboard.StatusWarning,
			ExecutionTime: elapsed,
			ErrorMessage:  "all social sources returned empty or failed",
			Messages:      transcript,
		}), nil
	}

	resp, err := a.Provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a social-sentiment analyst. Synthesize the provided " +
				"Reddit, Twitter, and StockTwits excerpts into one sentiment report. Do not invent additional sources."},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Company: %s\nTrade date: %s\n%s", state.CompanyOfInterest, state.TradeDate, combined)},
		},
		Options: llm.ChatOptions{Model: a.Model},
	})
	elapsed = time.Since(start)
	if err != nil {
		log.Error("social sentiment synthesis failed", zap.Error(err))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystSocial), events.AgentError)
		return routeThroughSend(finishResult{
			Kind:          blackboard.AnalystSocial,
			Status:        blackboard.StatusError,
			ExecutionTime: elapsed,
			ErrorMessage:  err.Error(),
			Messages:      transcript,
		}), nil
	}

	transcript = append(transcript, blackboard.Message{ID: uuid.NewString(), Role: blackboard.RoleAssistant, Content: resp.Content})
	status := classify(resp.Content, availableSources, false)
	if status == blackboard.StatusCompleted {
		log.Info("social sentiment report ready", zap.Int("sources_available", availableSources), zap.Duration("elapsed", elapsed))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystSocial), events.AgentCompleted)
	} else {
		log.Warn("social sentiment report below quality floor", zap.Int("sources_available", availableSources))
		emitAgentStatus(ctx, a.Events, string(blackboard.AnalystSocial), events.AgentError)
	}
	emitReport(ctx, a.Events, "sentiment_report", resp.Content)

	return routeThroughSend(finishResult{
		Kind:          blackboard.AnalystSocial,
		Report:        resp.Content,
		Status:        status,
		ToolCalls:     availableSources,
		ExecutionTime: elapsed,
		Messages:      transcript,
	}), nil
}
