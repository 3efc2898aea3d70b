package analysts

import (
	"context"
	"fmt"

	"tradingagents/internal/collectors"
)

// searchSource implements SocialSource over a SerperClient, scoping the
// query to one platform via a site: filter. Reddit, Twitter, and
// StockTwits are each wired this way by the orchestrator — spec.md
// §4.5's social analyst always hits all three regardless of what an LLM
// would have chosen.
type searchSource struct {
	name   string
	site   string
	client *collectors.SerperClient
}

// NewRedditSource, NewTwitterSource, and NewStockTwitsSource each scope
// the same underlying web search to one platform's domain.
func NewRedditSource(client *collectors.SerperClient) SocialSource {
	return &searchSource{name: "reddit", site: "reddit.com", client: client}
}

func NewTwitterSource(client *collectors.SerperClient) SocialSource {
	return &searchSource{name: "twitter", site: "twitter.com OR x.com", client: client}
}

func NewStockTwitsSource(client *collectors.SerperClient) SocialSource {
	return &searchSource{name: "stocktwits", site: "stocktwits.com", client: client}
}

func (s *searchSource) Name() string { return s.name }

func (s *searchSource) Fetch(ctx context.Context, symbol string) (string, error) {
	query := fmt.Sprintf("%s stock sentiment site:%s", symbol, s.site)
	return s.client.Search(ctx, query)
}
