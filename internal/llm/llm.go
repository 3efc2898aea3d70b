// Package llm is the minimal LLM provider abstraction used by the
// analyst nodes' tool-call loop (spec.md §4.5, §9 design note). It
// intentionally does not carry a full tokenizer or prompt-templating
// machinery — spec.md's Redesign Flags rule out the original's
// "ultra_prompt_templates.py"-style compression stack, and the nodes
// that matter most (market, fundamentals) never touch this package at
// all.
package llm

import (
	"context"
	"encoding/json"
)

// Role is a chat message's author, mirroring the OpenAI chat-completions
// wire format the HTTPProvider speaks.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is one function-call the model asked for.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// JSONSchema is a (small, hand-rolled) JSON Schema fragment describing a
// tool argument or parameter object, validated at dispatch time by
// internal/tools via xeipuuv/gojsonschema.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
}

// StringProp is a convenience constructor for a string-typed schema leaf.
func StringProp(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

// ObjectSchema builds an object schema, marking every declared property
// required (the tool registry's tools all take small, fully-specified
// argument sets; spec.md §4.2 doesn't describe optional arguments).
func ObjectSchema(description string, props map[string]*JSONSchema) *JSONSchema {
	required := make([]string, 0, len(props))
	for name := range props {
		required = append(required, name)
	}
	return &JSONSchema{Type: "object", Description: description, Properties: props, Required: required}
}

// ToolDefinition is what a Provider binds to a chat request: a name, a
// description the model uses to decide when to call it, and a parameter
// schema.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  *JSONSchema `json:"parameters"`
}

// ChatOptions tunes a single Chat call.
type ChatOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ChatRequest is one turn of the tool-call loop: the running message
// history, the tools currently bound, and whether the caller wants to
// force tool use (spec.md §4.5 "sends a prompt that demands tool use").
type ChatRequest struct {
	Messages     []Message
	Tools        []ToolDefinition
	ForceToolUse bool
	Options      ChatOptions
}

// ChatResponse is the model's reply: free-text content, and/or a list of
// tool calls it wants executed before it will produce a final answer.
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Provider is the thin seam between an analyst node and whatever backs
// its LLM calls — the OpenAI-compatible HTTPProvider in production, a
// func-field Mock in tests.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
