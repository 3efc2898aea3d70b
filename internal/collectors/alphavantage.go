package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// alphaVantageFunctions maps the three financial-statement facets onto
// Alpha Vantage's "function" query parameter. Alpha Vantage only serves
// as the statement-transposition fallback (spec.md §4.1.1); it has no
// equivalent for the other 12 fundamentals facets.
var alphaVantageFunctions = map[string]string{
	"quarterly_balance_sheet":    "BALANCE_SHEET",
	"quarterly_income_statement": "INCOME_STATEMENT",
	"quarterly_cash_flow":        "CASH_FLOW",
}

// AlphaVantageFetcher implements collectors.EndpointFetcher as the
// secondary fetcher in a FundamentalsCollector, the second provider
// spec.md §6's ALPHA_VANTAGE_API_KEY env var names.
type AlphaVantageFetcher struct {
	apiKey string
	client *http.Client
}

func NewAlphaVantageFetcher(apiKey string, client *http.Client) *AlphaVantageFetcher {
	return &AlphaVantageFetcher{apiKey: apiKey, client: client}
}

var _ EndpointFetcher = (*AlphaVantageFetcher)(nil)

func (f *AlphaVantageFetcher) FetchEndpoint(ctx context.Context, endpoint string, symbol string) (json.RawMessage, error) {
	fn, ok := alphaVantageFunctions[endpoint]
	if !ok {
		return nil, fmt.Errorf("alphavantage: no equivalent endpoint for %s", endpoint)
	}
	if f.apiKey == "" {
		return nil, fmt.Errorf("alphavantage: no API key configured")
	}

	query := url.Values{"function": {fn}, "symbol": {symbol}, "apikey": {f.apiKey}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://www.alphavantage.co/query?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: request %s: %w", fn, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: read response for %s: %w", fn, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("alphavantage: %s returned status %d", fn, resp.StatusCode)
	}

	return alphaVantageToStatement(raw)
}

// alphaVantageToStatement reshapes Alpha Vantage's {quarterlyReports:
// [{fiscalDateEnding, ...line items as strings}]} response into the
// {line_item -> {date -> value}} Statement shape parseStatement expects
// before transpose flips it back per spec.md §4.1.1.
func alphaVantageToStatement(raw json.RawMessage) (json.RawMessage, error) {
	var parsed struct {
		QuarterlyReports []map[string]string `json:"quarterlyReports"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("alphavantage: decode statement: %w", err)
	}

	out := make(Statement)
	for _, report := range parsed.QuarterlyReports {
		date, ok := report["fiscalDateEnding"]
		if !ok {
			continue
		}
		for lineItem, strVal := range report {
			if lineItem == "fiscalDateEnding" || lineItem == "reportedCurrency" {
				continue
			}
			var value float64
			if n, err := parseNumber(strVal); err == nil {
				value = n
			} else {
				continue
			}
			if out[lineItem] == nil {
				out[lineItem] = make(map[string]float64)
			}
			out[lineItem][date] = value
		}
	}
	return json.Marshal(out)
}

func parseNumber(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%g", &f)
	return f, err
}
