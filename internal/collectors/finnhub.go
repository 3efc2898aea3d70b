package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// finnhubEndpointPaths maps the 15 logical fundamentals facets onto
// Finnhub's REST paths. Endpoints with no direct Finnhub equivalent
// (e.g. revenue_estimates) use the closest available facet; an upstream
// with genuinely no equivalent returns an error and the field is simply
// left unpopulated, per spec.md §4.1.1's per-endpoint-failure tolerance.
var finnhubEndpointPaths = map[string]string{
	"profile":                    "/stock/profile2",
	"all_metrics":                "/stock/metric",
	"quarterly_balance_sheet":    "/stock/financials-reported",
	"quarterly_income_statement": "/stock/financials-reported",
	"quarterly_cash_flow":        "/stock/financials-reported",
	"earnings_history":           "/stock/earnings",
	"earnings_calendar":          "/calendar/earnings",
	"revenue_estimates":          "/stock/revenue-estimate",
	"analyst_recommendations":    "/stock/recommendation",
	"price_targets":              "/stock/price-target",
	"insider_transactions":       "/stock/insider-transactions",
	"institutional_ownership":    "/stock/investor",
	"dividends":                  "/stock/dividend",
	"splits":                     "/stock/split",
	"peers":                      "/stock/peers",
}

// FinnhubFetcher implements collectors.EndpointFetcher and supplies an
// OHLCV/crypto-price Upstream, both against Finnhub's REST API — the
// provider named by spec.md §6's FINNHUB_API_KEY.
type FinnhubFetcher struct {
	apiKey string
	client *http.Client
}

// NewFinnhubFetcher builds a fetcher using the given pooled client.
func NewFinnhubFetcher(apiKey string, client *http.Client) *FinnhubFetcher {
	return &FinnhubFetcher{apiKey: apiKey, client: client}
}

var _ EndpointFetcher = (*FinnhubFetcher)(nil)

func (f *FinnhubFetcher) FetchEndpoint(ctx context.Context, endpoint string, symbol string) (json.RawMessage, error) {
	path, ok := finnhubEndpointPaths[endpoint]
	if !ok {
		return nil, fmt.Errorf("finnhub: no equivalent endpoint for %s", endpoint)
	}
	return f.get(ctx, path, url.Values{"symbol": {symbol}})
}

// PriceUpstream returns an Upstream usable by IndicatorCollector: daily
// OHLCV candles for the trailing year, reshaped into the []Bar JSON the
// collector expects.
func (f *FinnhubFetcher) PriceUpstream() Upstream {
	return NewUpstreamFunc("finnhub", func(ctx context.Context, symbol string) ([]byte, error) {
		now := time.Now()
		raw, err := f.get(ctx, "/stock/candle", url.Values{
			"symbol":     {symbol},
			"resolution": {"D"},
			"from":       {fmt.Sprint(now.AddDate(-1, 0, 0).Unix())},
			"to":         {fmt.Sprint(now.Unix())},
		})
		if err != nil {
			return nil, err
		}
		return finnhubCandlesToBars(raw)
	})
}

// CryptoPriceUpstream returns an Upstream producing a CryptoRecord JSON
// blob from the latest bar of Finnhub's daily crypto candle endpoint.
// Circulating supply and market cap are not provided and stay zero.
func (f *FinnhubFetcher) CryptoPriceUpstream() Upstream {
	return NewUpstreamFunc("finnhub-crypto", func(ctx context.Context, symbol string) ([]byte, error) {
		raw, err := f.get(ctx, "/crypto/candle", url.Values{
			"symbol":     {"BINANCE:" + symbol + "USDT"},
			"resolution": {"D"},
		})
		if err != nil {
			return nil, err
		}
		var candles finnhubCandleResponse
		if err := json.Unmarshal(raw, &candles); err != nil {
			return nil, fmt.Errorf("finnhub: decode crypto candles: %w", err)
		}
		last := len(candles.Close) - 1
		if candles.Status != "ok" || last < 0 {
			return nil, nil
		}
		return json.Marshal(CryptoRecord{Symbol: symbol, CurrentPrice: candles.Close[last],
			High24h: candles.High[last], Low24h: candles.Low[last], Volume24h: candles.Volume[last]})
	})
}

func (f *FinnhubFetcher) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if f.apiKey == "" {
		return nil, fmt.Errorf("finnhub: no API key configured")
	}
	query.Set("token", f.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://finnhub.io/api/v1"+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("finnhub: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("finnhub: read response for %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("finnhub: %s returned status %d", path, resp.StatusCode)
	}
	return raw, nil
}

type finnhubCandleResponse struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Volume []float64 `json:"v"`
}

func finnhubCandlesToBars(raw json.RawMessage) ([]byte, error) {
	var candles finnhubCandleResponse
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, fmt.Errorf("finnhub: decode candles: %w", err)
	}
	if candles.Status != "ok" || len(candles.Close) == 0 {
		return nil, nil
	}

	bars := make([]Bar, len(candles.Close))
	for i := range candles.Close {
		bars[i] = Bar{
			Date:   fmt.Sprintf("%d", candles.Time[i]),
			Open:   candles.Open[i],
			High:   candles.High[i],
			Low:    candles.Low[i],
			Close:  candles.Close[i],
			Volume: candles.Volume[i],
		}
	}
	return json.Marshal(bars)
}
