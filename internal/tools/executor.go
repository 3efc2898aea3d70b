package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tradingagents/internal/llm"
)

// knownErrorPhrases are the substrings spec.md §4.2 step 4 names for
// flagging a tool result as low quality, reused verbatim by the
// aggregator's report-validity check (§4.6) so both layers agree on
// what "looks like an error" means.
var knownErrorPhrases = []string{
	"unable to retrieve",
	"error",
	"no data",
	"not available",
	"failed to fetch",
}

// minResultLength is the §4.2 step 4 "shorter than 10 characters" floor.
const minResultLength = 10

// Result is what the executor returns per call, suitable for appending
// to the analyst's message log as a RoleTool entry.
type Result struct {
	ToolCallID string
	ToolName   string
	Content    string
	LowQuality bool
	Err        error
}

// Executor dispatches a list of tool-call descriptors against a
// Registry, one call per descriptor, all concurrently, each under its
// own timeout.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	log      *zap.Logger
}

// NewExecutor builds an Executor with the given per-call timeout
// (spec.md §4.2 default 15s / §5).
func NewExecutor(registry *Registry, timeout time.Duration, log *zap.Logger) *Executor {
	return &Executor{registry: registry, timeout: timeout, log: log}
}

// Execute runs every call in calls concurrently (spec.md §4.2 step 5)
// and returns one Result per call, in the same order. It never returns
// an error itself — a missing tool, a timeout, or a panic-worthy
// exception inside a tool all become a benign Result per §4.2 steps 1-3.
func (e *Executor) Execute(ctx context.Context, calls []llm.ToolCall) []Result {
	results := make([]Result, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i] = e.executeOne(gctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) executeOne(ctx context.Context, call llm.ToolCall) Result {
	tool, ok := e.registry.Lookup(call.Name)
	if !ok {
		return Result{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    unavailableResult(call.Name, "not registered"),
			LowQuality: true,
		}
	}

	if err := validateArgs(tool.Schema(), call.Arguments); err != nil {
		if e.log != nil {
			e.log.Warn("tool argument validation failed", zap.String("tool", call.Name), zap.Error(err))
		}
		return Result{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    unavailableResult(call.Name, "invalid arguments: "+err.Error()),
			LowQuality: true,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeoutOrDefault())
	defer cancel()

	content, err := e.invoke(callCtx, tool, call.Arguments)
	if err != nil {
		if e.log != nil {
			e.log.Warn("tool invocation failed", zap.String("tool", call.Name), zap.Error(err))
		}
		reason := "invocation failed"
		if callCtx.Err() != nil {
			reason = "timed out"
		}
		return Result{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    unavailableResult(call.Name, reason),
			LowQuality: true,
			Err:        err,
		}
	}

	return Result{
		ToolCallID: call.ID,
		ToolName:   call.Name,
		Content:    content,
		LowQuality: isLowQuality(content),
	}
}

// invoke recovers from a panicking tool implementation so one
// misbehaving tool can never take down the analyst node that called it
// (§4.2 step 3's "never propagates the error to the graph").
func (e *Executor) invoke(ctx context.Context, tool Tool, args json.RawMessage) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return tool.Call(ctx, args)
}

func (e *Executor) timeoutOrDefault() time.Duration {
	if e.timeout > 0 {
		return e.timeout
	}
	return 15 * time.Second
}

// isLowQuality implements spec.md §4.2 step 4's three flags: empty,
// too short, or containing a known error phrase.
func isLowQuality(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || len(trimmed) < minResultLength {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range knownErrorPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// validateArgs checks args against schema using gojsonschema, converting
// our small llm.JSONSchema into the generic map shape gojsonschema wants
// (the teacher's internal/exchange/validator.go uses the same
// Marshal-then-NewBytesLoader idiom against a fetched remote schema; ours
// is built in-process per tool instead of fetched).
func validateArgs(schema *llm.JSONSchema, args json.RawMessage) error {
	if schema == nil {
		return nil
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal tool schema: %w", err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	docLoader := gojsonschema.NewBytesLoader(args)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
