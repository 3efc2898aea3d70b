package analysts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/llm"
	"tradingagents/internal/tools"
)

// ToolLoopConfig parameterizes the LLM-driven analyst loop from spec.md
// §4.5: bind tools, demand tool use, execute any returned calls, then
// ask for a final structured report.
type ToolLoopConfig struct {
	Provider      llm.Provider
	Executor      *tools.Executor
	Tools         []tools.Tool
	SystemPrompt  string
	UserPrompt    string
	ReportPrompt  string
	MaxIterations int
	Model         string
}

// ToolLoopResult is what the loop produced: the final report text, the
// transcript as Blackboard messages, and the number of tool calls
// actually executed (feeds the §4.5 "zero tool calls is warning" rule).
type ToolLoopResult struct {
	Report    string
	Messages  []blackboard.Message
	ToolCalls int
	Warning   bool
}

// RunToolLoop implements spec.md §4.5's LLM-driven mode: the node binds
// tools, sends a prompt that demands tool use, inspects the returned
// tool-call list; if absent it sends one enforcement prompt; if still
// absent it emits a warning report. When tool calls are present it
// executes them, appends results to the message log, then issues a
// final prompt asking for the structured report.
func RunToolLoop(ctx context.Context, cfg ToolLoopConfig) (ToolLoopResult, error) {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = 8
	}

	defs := tools.Definitions(cfg.Tools)
	var history []llm.Message
	var transcript []blackboard.Message

	appendMsg := func(role blackboard.MessageRole, content, toolName, toolCallID string) {
		transcript = append(transcript, blackboard.Message{
			ID:         uuid.NewString(),
			Role:       role,
			Content:    content,
			ToolName:   toolName,
			ToolCallID: toolCallID,
		})
	}

	system := llm.Message{Role: llm.RoleSystem, Content: cfg.SystemPrompt}
	user := llm.Message{Role: llm.RoleUser, Content: cfg.UserPrompt}
	history = append(history, system, user)
	appendMsg(blackboard.RoleUser, cfg.UserPrompt, "", "")

	totalToolCalls := 0
	gotToolCalls := false

	for attempt := 0; attempt < 2 && !gotToolCalls; attempt++ {
		forcePrompt := cfg.UserPrompt
		if attempt == 1 {
			forcePrompt = "You must call at least one of the available tools before responding. Do not answer from memory."
			history = append(history, llm.Message{Role: llm.RoleUser, Content: forcePrompt})
			appendMsg(blackboard.RoleUser, forcePrompt, "", "")
		}

		resp, err := cfg.Provider.Chat(ctx, llm.ChatRequest{
			Messages:     history,
			Tools:        defs,
			ForceToolUse: true,
			Options:      llm.ChatOptions{Model: cfg.Model},
		})
		if err != nil {
			return ToolLoopResult{}, fmt.Errorf("tool-demanding chat call: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			continue
		}
		gotToolCalls = true
		history = append(history, llm.Message{Role: llm.RoleAssistant, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			appendMsg(blackboard.RoleToolCall, string(tc.Arguments), tc.Name, tc.ID)
		}

		iterations := 0
		for len(resp.ToolCalls) > 0 && iterations < maxIter {
			iterations++
			results := cfg.Executor.Execute(ctx, resp.ToolCalls)
			totalToolCalls += len(results)

			for _, r := range results {
				history = append(history, llm.Message{Role: llm.RoleTool, Content: r.Content, ToolCallID: r.ToolCallID, Name: r.ToolName})
				appendMsg(blackboard.RoleToolResult, r.Content, r.ToolName, r.ToolCallID)
			}

			resp, err = cfg.Provider.Chat(ctx, llm.ChatRequest{
				Messages: history,
				Tools:    defs,
				Options:  llm.ChatOptions{Model: cfg.Model},
			})
			if err != nil {
				return ToolLoopResult{}, fmt.Errorf("follow-up chat call: %w", err)
			}
			if len(resp.ToolCalls) > 0 {
				history = append(history, llm.Message{Role: llm.RoleAssistant, ToolCalls: resp.ToolCalls})
				for _, tc := range resp.ToolCalls {
					appendMsg(blackboard.RoleToolCall, string(tc.Arguments), tc.Name, tc.ID)
				}
			}
		}
	}

	if !gotToolCalls {
		return ToolLoopResult{
			Report:    "",
			Messages:  transcript,
			ToolCalls: 0,
			Warning:   true,
		}, nil
	}

	reportPrompt := cfg.ReportPrompt
	history = append(history, llm.Message{Role: llm.RoleUser, Content: reportPrompt})
	appendMsg(blackboard.RoleUser, reportPrompt, "", "")

	final, err := cfg.Provider.Chat(ctx, llm.ChatRequest{Messages: history, Options: llm.ChatOptions{Model: cfg.Model}})
	if err != nil {
		return ToolLoopResult{}, fmt.Errorf("final report chat call: %w", err)
	}
	appendMsg(blackboard.RoleAssistant, final.Content, "", "")

	return ToolLoopResult{
		Report:    final.Content,
		Messages:  transcript,
		ToolCalls: totalToolCalls,
	}, nil
}
