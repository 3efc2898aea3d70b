package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPProvider is a thin wrapper over an OpenAI-compatible chat
// completions endpoint — the same "typed request/response structs over
// a plain http.Client" shape the collectors use for market-data
// upstreams. No official SDK appears in any retrieved example repo's
// go.mod, so a hand-rolled client against the well-known wire format is
// the grounded choice (DESIGN.md).
type HTTPProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewHTTPProvider builds a provider against baseURL (e.g.
// "https://api.openai.com/v1") using apiKey and the default model name.
// A caller-supplied client lets tests and the orchestrator reuse the
// same pooled client the collectors use.
func NewHTTPProvider(baseURL, apiKey, model string, client *http.Client) *HTTPProvider {
	return &HTTPProvider{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, model: model, client: client}
}

type wireMessage struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function wireFunctionRef `json:"function"`
}

type wireFunctionRef struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	ToolChoice  interface{}   `json:"tool_choice,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat issues one chat-completions request. ForceToolUse maps to
// tool_choice: "required" per the wire format; otherwise the model
// decides ("auto").
func (p *HTTPProvider) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	model := req.Options.Model
	if model == "" {
		model = p.model
	}

	body := chatCompletionRequest{
		Model:       model,
		Messages:    toWireMessages(req.Messages),
		Tools:       toWireTools(req.Tools),
		Temperature: req.Options.Temperature,
		MaxTokens:   req.Options.MaxTokens,
	}
	if len(req.Tools) > 0 {
		if req.ForceToolUse {
			body.ToolChoice = "required"
		} else {
			body.ToolChoice = "auto"
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("chat completions request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("read chat response: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ChatResponse{}, fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return ChatResponse{}, fmt.Errorf("chat completions error: %s", parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return ChatResponse{}, fmt.Errorf("chat completions status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("chat completions returned no choices")
	}

	choice := parsed.Choices[0]
	return ChatResponse{
		Content:      choice.Message.Content,
		ToolCalls:    fromWireToolCalls(choice.Message.ToolCalls),
		FinishReason: choice.FinishReason,
	}, nil
}

func toWireMessages(msgs []Message) []wireMessage {
	out := make([]wireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = wireMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toWireToolCalls(m.ToolCalls),
		}
	}
	return out
}

func toWireToolCalls(calls []ToolCall) []wireToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]wireToolCall, len(calls))
	for i, c := range calls {
		out[i] = wireToolCall{ID: c.ID, Type: "function", Function: wireFunctionRef{Name: c.Name, Arguments: c.Arguments}}
	}
	return out
}

func fromWireToolCalls(calls []wireToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: c.Function.Arguments}
	}
	return out
}

func toWireTools(defs []ToolDefinition) []wireTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]wireTool, len(defs))
	for i, d := range defs {
		out[i] = wireTool{Type: "function", Function: wireFunction{Name: d.Name, Description: d.Description, Parameters: d.Parameters}}
	}
	return out
}
