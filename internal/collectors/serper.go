package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SerperClient wraps Serper's Google-search-as-a-service API, the single
// web-search backend spec.md §6's SERPER_API_KEY env var names. News and
// social tools both search through it, scoping queries by site.
type SerperClient struct {
	apiKey string
	client *http.Client
}

// NewSerperClient builds a client against Serper's /search endpoint.
func NewSerperClient(apiKey string, client *http.Client) *SerperClient {
	return &SerperClient{apiKey: apiKey, client: client}
}

type serperRequest struct {
	Q string `json:"q"`
}

type serperResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

// Search issues one query and returns a newline-joined digest of the top
// organic results. An empty apiKey is treated as "search unavailable",
// returning an empty string and a descriptive error rather than making a
// request the upstream would reject.
func (s *SerperClient) Search(ctx context.Context, query string) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("serper: no API key configured")
	}

	payload, err := json.Marshal(serperRequest{Q: query})
	if err != nil {
		return "", fmt.Errorf("serper: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://google.serper.dev/search", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("serper: build request: %w", err)
	}
	req.Header.Set("X-API-KEY", s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("serper: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("serper: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("serper: status %d", resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("serper: decode response: %w", err)
	}

	var b strings.Builder
	for _, r := range parsed.Organic {
		fmt.Fprintf(&b, "%s (%s): %s\n", r.Title, r.Link, r.Snippet)
	}
	return b.String(), nil
}
