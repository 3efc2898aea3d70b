package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingagents/internal/blackboard"
	"tradingagents/internal/llm"
)

func echoSchema() *llm.JSONSchema {
	return llm.ObjectSchema("echo args", map[string]*llm.JSONSchema{
		"text": llm.StringProp("text to echo"),
	})
}

func TestRegistryForAnalystFiltersByAllowlist(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFunc("get_news", "fetches news", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "news content here", nil
	}))
	r.Register(NewFunc("get_social", "fetches social", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "social content here", nil
	}))
	r.Allow(blackboard.AnalystNews, "get_news")

	bound := r.ForAnalyst(blackboard.AnalystNews)
	require.Len(t, bound, 1)
	assert.Equal(t, "get_news", bound[0].Name())
}

func TestExecutorMissingToolProducesFallback(t *testing.T) {
	r := NewRegistry()
	ex := NewExecutor(r, 15*time.Second, nil)

	results := ex.Execute(context.Background(), []llm.ToolCall{{ID: "1", Name: "nonexistent"}})
	require.Len(t, results, 1)
	assert.True(t, results[0].LowQuality)
	assert.Contains(t, results[0].Content, "unavailable")
}

func TestExecutorTimeoutProducesFallback(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFunc("slow", "a slow tool", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}))
	ex := NewExecutor(r, 10*time.Millisecond, nil)

	results := ex.Execute(context.Background(), []llm.ToolCall{{ID: "1", Name: "slow"}})
	require.Len(t, results, 1)
	assert.True(t, results[0].LowQuality)
	assert.Error(t, results[0].Err)
}

func TestExecutorFlagsLowQualityContent(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFunc("bad", "returns an error phrase", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "Error: unable to retrieve data", nil
	}))
	r.Register(NewFunc("good", "returns a solid result", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "This is a perfectly good, detailed result with plenty of content.", nil
	}))
	ex := NewExecutor(r, 15*time.Second, nil)

	results := ex.Execute(context.Background(), []llm.ToolCall{{ID: "1", Name: "bad"}, {ID: "2", Name: "good"}})
	require.Len(t, results, 2)
	assert.True(t, results[0].LowQuality)
	assert.False(t, results[1].LowQuality)
}

func TestExecutorRejectsInvalidArguments(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFunc("echo", "echoes text", echoSchema(), func(ctx context.Context, args json.RawMessage) (string, error) {
		return "ok", nil
	}))
	ex := NewExecutor(r, 15*time.Second, nil)

	results := ex.Execute(context.Background(), []llm.ToolCall{{ID: "1", Name: "echo", Arguments: json.RawMessage(`{}`)}})
	require.Len(t, results, 1)
	assert.True(t, results[0].LowQuality)
	assert.Contains(t, results[0].Content, "invalid arguments")
}

func TestExecutorRunsCallsConcurrently(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"a", "b", "c"} {
		r.Register(NewFunc(name, "concurrent tool", nil, func(ctx context.Context, args json.RawMessage) (string, error) {
			time.Sleep(30 * time.Millisecond)
			return "result content long enough", nil
		}))
	}
	ex := NewExecutor(r, time.Second, nil)

	start := time.Now()
	results := ex.Execute(context.Background(), []llm.ToolCall{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}, {ID: "3", Name: "c"}})
	elapsed := time.Since(start)

	require.Len(t, results, 3)
	assert.Less(t, elapsed, 90*time.Millisecond)
}
