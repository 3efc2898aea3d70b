// Package tools implements the Tool Registry & Executor from spec.md
// §4.2: named, argument-typed callables bound to an analyst's LLM
// session, dispatched with a per-call timeout, graceful fallback on
// failure, and result-quality flagging.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/llm"
)

// Tool is a named, side-effect-from-the-graph's-perspective-free
// callable that returns a text blob for the calling analyst's message
// log.
type Tool interface {
	Name() string
	Description() string
	Schema() *llm.JSONSchema
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// Func adapts a plain function to Tool.
type Func struct {
	name   string
	desc   string
	schema *llm.JSONSchema
	fn     func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewFunc builds a Tool from a name, description, argument schema, and
// implementation function.
func NewFunc(name, desc string, schema *llm.JSONSchema, fn func(ctx context.Context, args json.RawMessage) (string, error)) Tool {
	return &Func{name: name, desc: desc, schema: schema, fn: fn}
}

func (f *Func) Name() string              { return f.name }
func (f *Func) Description() string       { return f.desc }
func (f *Func) Schema() *llm.JSONSchema   { return f.schema }
func (f *Func) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return f.fn(ctx, args)
}

// Registry holds every tool the process knows about and exposes it per
// analyst kind via an allow-list, mirroring the teacher's
// Factory/Registry pattern (internal/runner/interface.go) adapted here
// from "runtime backend" to "toolkit wrapped and filtered per analyst".
type Registry struct {
	all       map[string]Tool
	allowlist map[blackboard.AnalystKind][]string
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{all: map[string]Tool{}, allowlist: map[blackboard.AnalystKind][]string{}}
}

// Register adds t to the registry's full toolkit.
func (r *Registry) Register(t Tool) {
	r.all[t.Name()] = t
}

// Allow declares which tool names an analyst kind may bind.
func (r *Registry) Allow(kind blackboard.AnalystKind, names ...string) {
	r.allowlist[kind] = append(r.allowlist[kind], names...)
}

// ForAnalyst returns the tools bound for kind, in allow-list order. A
// name in the allow-list with no matching registration is silently
// skipped — the registry is the source of truth for what actually
// exists.
func (r *Registry) ForAnalyst(kind blackboard.AnalystKind) []Tool {
	names := r.allowlist[kind]
	out := make([]Tool, 0, len(names))
	for _, n := range names {
		if t, ok := r.all[n]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Lookup returns the tool named name, if registered.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.all[name]
	return t, ok
}

// Definitions converts tools to the llm.ToolDefinition shape a Provider
// binds to a chat request.
func Definitions(toolset []Tool) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(toolset))
	for i, t := range toolset {
		defs[i] = llm.ToolDefinition{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()}
	}
	return defs
}

// unavailableResult formats the graceful fallback spec.md §4.2 step 3
// requires: text naming the tool and indicating unavailability, never
// propagated to the graph as an error.
func unavailableResult(name, reason string) string {
	return fmt.Sprintf("tool %q is unavailable: %s", name, reason)
}
