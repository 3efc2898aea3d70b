package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"tradingagents/internal/collectors"
	"tradingagents/internal/llm"
)

// searchArgs is the argument shape every search-backed tool in this file
// expects: a single free-text query.
type searchArgs struct {
	Query string `json:"query"`
}

var searchSchema = llm.ObjectSchema("Search query", map[string]*llm.JSONSchema{
	"query": llm.StringProp("The search query, e.g. a company name plus topic."),
})

// NewNewsSearchTool wraps a SerperClient as the news analyst's bound
// tool (spec.md §4.5's "news runs in LLM-driven mode"): the model must
// call this to gather recent coverage before writing its report.
func NewNewsSearchTool(client *collectors.SerperClient) Tool {
	return NewFunc("search_news", "Search recent news coverage for a company or ticker.", searchSchema,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var a searchArgs
			if err := json.Unmarshal(args, &a); err != nil {
				return "", fmt.Errorf("decode search_news arguments: %w", err)
			}
			return client.Search(ctx, a.Query+" news")
		})
}
