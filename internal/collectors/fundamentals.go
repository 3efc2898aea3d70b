package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fundamentalsEndpoint names the 15 distinct facets fetched in parallel
// for one symbol, per spec.md §4.1.1.
type fundamentalsEndpoint string

const (
	epProfile               fundamentalsEndpoint = "profile"
	epAllMetrics             fundamentalsEndpoint = "all_metrics"
	epQuarterlyBalanceSheet  fundamentalsEndpoint = "quarterly_balance_sheet"
	epQuarterlyIncome        fundamentalsEndpoint = "quarterly_income_statement"
	epQuarterlyCashFlow      fundamentalsEndpoint = "quarterly_cash_flow"
	epEarningsHistory        fundamentalsEndpoint = "earnings_history"
	epEarningsCalendar       fundamentalsEndpoint = "earnings_calendar"
	epRevenueEstimates       fundamentalsEndpoint = "revenue_estimates"
	epAnalystRecommendations fundamentalsEndpoint = "analyst_recommendations"
	epPriceTargets           fundamentalsEndpoint = "price_targets"
	epInsiderTransactions    fundamentalsEndpoint = "insider_transactions"
	epInstitutionalOwnership fundamentalsEndpoint = "institutional_ownership"
	epDividends              fundamentalsEndpoint = "dividends"
	epSplits                fundamentalsEndpoint = "splits"
	epPeers                  fundamentalsEndpoint = "peers"
)

var allFundamentalsEndpoints = []fundamentalsEndpoint{
	epProfile, epAllMetrics, epQuarterlyBalanceSheet, epQuarterlyIncome,
	epQuarterlyCashFlow, epEarningsHistory, epEarningsCalendar,
	epRevenueEstimates, epAnalystRecommendations, epPriceTargets,
	epInsiderTransactions, epInstitutionalOwnership, epDividends,
	epSplits, epPeers,
}

// PriceTargets holds the analyst price-target facet, either fetched
// directly or derived by EnhancePriceTargets.
type PriceTargets struct {
	NumberOfAnalysts int     `json:"number_of_analysts"`
	TargetMean       float64 `json:"target_mean"`
	TargetHigh       float64 `json:"target_high"`
	TargetLow        float64 `json:"target_low"`
	Confidence       string  `json:"confidence"`
	Source           string  `json:"source"`
}

// AnalystRecommendations is the majority-direction tally used to derive
// a substitute price target when the primary upstream is empty.
type AnalystRecommendations struct {
	StrongBuy  int `json:"strong_buy"`
	Buy        int `json:"buy"`
	Hold       int `json:"hold"`
	Sell       int `json:"sell"`
	StrongSell int `json:"strong_sell"`
}

// Statement is a generic two-level financial statement table, used for
// balance sheet / income / cash flow facets. A table from the primary
// upstream is kept as {line item -> {date -> value}}; a table supplied
// by the secondary fallback is transposed to {date -> {line item ->
// value}} before it is stored.
type Statement map[string]map[string]float64

// FundamentalsRecord is the normalized, assembled result of the 15
// fundamentals endpoints, plus bookkeeping for how many were usable.
type FundamentalsRecord struct {
	Symbol                 string                 `json:"symbol"`
	Profile                json.RawMessage        `json:"profile,omitempty"`
	AllMetrics             json.RawMessage        `json:"all_metrics,omitempty"`
	BalanceSheet           Statement              `json:"balance_sheet,omitempty"`
	IncomeStatement        Statement              `json:"income_statement,omitempty"`
	CashFlow               Statement              `json:"cash_flow,omitempty"`
	EarningsHistory        json.RawMessage        `json:"earnings_history,omitempty"`
	EarningsCalendar       json.RawMessage        `json:"earnings_calendar,omitempty"`
	RevenueEstimates       json.RawMessage        `json:"revenue_estimates,omitempty"`
	AnalystRecommendations AnalystRecommendations `json:"analyst_recommendations"`
	PriceTargets           PriceTargets           `json:"price_targets"`
	InsiderTransactions    json.RawMessage        `json:"insider_transactions,omitempty"`
	InstitutionalOwnership json.RawMessage        `json:"institutional_ownership,omitempty"`
	Dividends              json.RawMessage        `json:"dividends,omitempty"`
	Splits                 json.RawMessage        `json:"splits,omitempty"`
	Peers                  json.RawMessage        `json:"peers,omitempty"`
	CurrentPrice           float64                `json:"current_price"`
	IsCrypto               bool                    `json:"is_crypto"`
	EndpointsFetched       int                    `json:"endpoints_fetched"`
	EndpointsTotal         int                    `json:"endpoints_total"`
}

// FundamentalsCollector implements spec.md §4.1.1 over a primary and a
// secondary fallback chain per endpoint family.
type FundamentalsCollector struct {
	primary   EndpointFetcher
	secondary EndpointFetcher
	cache     *Cache
	cacheTTL  time.Duration
	log       *zap.Logger
}

// EndpointFetcher fetches one named facet for a symbol. The fundamentals
// collector uses one EndpointFetcher as primary and, for the three
// financial statements only, a second as a transposition fallback.
type EndpointFetcher interface {
	FetchEndpoint(ctx context.Context, endpoint string, symbol string) (json.RawMessage, error)
}

func NewFundamentalsCollector(primary, secondary EndpointFetcher, cache *Cache, cacheTTL time.Duration, log *zap.Logger) *FundamentalsCollector {
	return &FundamentalsCollector{primary: primary, secondary: secondary, cache: cache, cacheTTL: cacheTTL, log: log}
}

// Get assembles a FundamentalsRecord for symbol, consulting the cache
// first and writing back on a miss. A partially fetched record is
// returned with a nil error; Get fails only when no endpoint could be
// fetched.
func (c *FundamentalsCollector) Get(ctx context.Context, symbol string, asOf time.Time) (*FundamentalsRecord, error) {
	key := FundamentalsKey(symbol, asOf)
	var cached FundamentalsRecord
	if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	record, err := c.fetchAll(ctx, symbol)
	if err != nil && (record == nil || record.EndpointsFetched == 0) {
		return nil, err
	}
	c.cache.Set(ctx, key, record, c.cacheTTL)
	return record, nil
}

// fetchAll fans out across all 15 endpoints in parallel. Per-endpoint
// failures don't abort the record: the field is left empty and
// EndpointsFetched is decremented from EndpointsTotal. Per-endpoint
// errors are collected into a *multierror.Error so callers that care can
// inspect which facets failed without the record construction itself
// ever failing.
func (c *FundamentalsCollector) fetchAll(ctx context.Context, symbol string) (*FundamentalsRecord, error) {
	record := &FundamentalsRecord{
		Symbol:         symbol,
		EndpointsTotal: len(allFundamentalsEndpoints),
	}

	var mu sync.Mutex
	raw := make(map[fundamentalsEndpoint]json.RawMessage, len(allFundamentalsEndpoints))
	fetchErrs := make(map[fundamentalsEndpoint]error, len(allFundamentalsEndpoints))
	var merr *multierror.Error

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range allFundamentalsEndpoints {
		ep := ep
		g.Go(func() error {
			data, err := c.primary.FetchEndpoint(gctx, string(ep), symbol)
			mu.Lock()
			raw[ep] = data
			fetchErrs[ep] = err
			if err != nil {
				merr = multierror.Append(merr, fmt.Errorf("%s: %w", ep, err))
			}
			mu.Unlock()
			return nil
		})
	}
	// Per-endpoint fetch funcs never return a non-nil error themselves
	// (failures are recorded in fetchErrs instead), so Wait only signals
	// a genuine ctx cancellation; kept for the bounded-parallel-fetch +
	// single-join-point idiom.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for ep, err := range fetchErrs {
		if err != nil {
			continue
		}
		assignEndpoint(record, ep, raw[ep])
	}
	record.EndpointsFetched = len(allFundamentalsEndpoints) - len(merr.WrappedErrors())

	if merr != nil && c.log != nil {
		c.log.Warn("fundamentals endpoints partially failed",
			zap.String("symbol", symbol),
			zap.Int("failed", len(merr.WrappedErrors())),
			zap.Int("total", record.EndpointsTotal))
	}

	c.applyStatementFallback(ctx, symbol, record, fetchErrs)
	EnhancePriceTargets(record)

	return record, merr.ErrorOrNil()
}

func assignEndpoint(record *FundamentalsRecord, ep fundamentalsEndpoint, data json.RawMessage) {
	switch ep {
	case epProfile:
		record.Profile = data
	case epAllMetrics:
		record.AllMetrics = data
	case epEarningsHistory:
		record.EarningsHistory = data
	case epEarningsCalendar:
		record.EarningsCalendar = data
	case epRevenueEstimates:
		record.RevenueEstimates = data
	case epAnalystRecommendations:
		_ = json.Unmarshal(data, &record.AnalystRecommendations)
	case epPriceTargets:
		_ = json.Unmarshal(data, &record.PriceTargets)
	case epInsiderTransactions:
		record.InsiderTransactions = data
	case epInstitutionalOwnership:
		record.InstitutionalOwnership = data
	case epDividends:
		record.Dividends = data
	case epSplits:
		record.Splits = data
	case epPeers:
		record.Peers = data
	case epQuarterlyBalanceSheet:
		record.BalanceSheet = parseStatement(data)
	case epQuarterlyIncome:
		record.IncomeStatement = parseStatement(data)
	case epQuarterlyCashFlow:
		record.CashFlow = parseStatement(data)
	}
}

func parseStatement(data json.RawMessage) Statement {
	var s Statement
	if len(data) == 0 {
		return nil
	}
	_ = json.Unmarshal(data, &s)
	return s
}

// applyStatementFallback implements §4.1.1's "Statement fallback": for
// each of the three financial statements that errored on the primary,
// concurrently fetch the secondary's equivalent and, if non-empty,
// transpose it (rows become dates, columns become line items) before
// merging it into the record.
func (c *FundamentalsCollector) applyStatementFallback(ctx context.Context, symbol string, record *FundamentalsRecord, fetchErrs map[fundamentalsEndpoint]error) {
	if c.secondary == nil {
		return
	}

	type job struct {
		ep     fundamentalsEndpoint
		assign func(Statement)
	}
	var jobs []job
	if fetchErrs[epQuarterlyBalanceSheet] != nil {
		jobs = append(jobs, job{epQuarterlyBalanceSheet, func(s Statement) { record.BalanceSheet = s }})
	}
	if fetchErrs[epQuarterlyIncome] != nil {
		jobs = append(jobs, job{epQuarterlyIncome, func(s Statement) { record.IncomeStatement = s }})
	}
	if fetchErrs[epQuarterlyCashFlow] != nil {
		jobs = append(jobs, job{epQuarterlyCashFlow, func(s Statement) { record.CashFlow = s }})
	}
	if len(jobs) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			data, err := c.secondary.FetchEndpoint(gctx, string(j.ep), symbol)
			if err != nil || len(data) == 0 {
				return nil
			}
			table := parseStatement(data)
			if len(table) == 0 {
				return nil
			}
			j.assign(transpose(table))
			return nil
		})
	}
	_ = g.Wait()
}

// transpose flips a {line_item -> {date -> value}} table into
// {date -> {line_item -> value}} per spec.md §4.1.1.
func transpose(in Statement) Statement {
	out := make(Statement)
	for lineItem, byDate := range in {
		for date, value := range byDate {
			if out[date] == nil {
				out[date] = make(map[string]float64)
			}
			out[date][lineItem] = value
		}
	}
	return out
}

// EnhancePriceTargets implements spec.md §4.1.1's price-target
// enhancement and SPEC_FULL.md §12's confidence tiering, trying three
// substitute strategies in order when the primary upstream's
// price-target facet is empty (zero analysts, zero mean): derive from
// the analyst-recommendation tally, then from a P/E-based intrinsic
// value estimate, and finally fall back to a data-unavailable
// placeholder. Each strategy only applies when its own required input
// is present, matching the original's ordered-strategy chain in
// enhanced_price_target_collector.py.
func EnhancePriceTargets(record *FundamentalsRecord) {
	pt := &record.PriceTargets
	if pt.NumberOfAnalysts != 0 || pt.TargetMean != 0 {
		pt.Confidence = confidenceForAnalystCount(pt.NumberOfAnalysts)
		if pt.Source == "" {
			pt.Source = "Primary Upstream"
		}
		return
	}

	rec := record.AnalystRecommendations
	total := rec.StrongBuy + rec.Buy + rec.Hold + rec.Sell + rec.StrongSell
	if total > 0 && record.CurrentPrice > 0 {
		bullishRatio := float64(rec.StrongBuy+rec.Buy) / float64(total)
		bearishRatio := float64(rec.Sell+rec.StrongSell) / float64(total)

		var offset float64
		switch {
		case bullishRatio >= 0.7:
			offset = 0.20
		case bullishRatio >= 0.5:
			offset = 0.10
		case bearishRatio >= 0.5:
			offset = -0.05
		default:
			offset = 0.05
		}

		mean := record.CurrentPrice * (1 + offset)
		pt.NumberOfAnalysts = total
		pt.TargetMean = mean
		pt.TargetHigh = mean * 1.10
		pt.TargetLow = mean * 0.90
		pt.Source = "Analyst Recommendations (Derived)"
		pt.Confidence = "LIMITED"
		return
	}

	if mean, ok := intrinsicValueEstimate(record); ok {
		pt.NumberOfAnalysts = 1
		pt.TargetMean = mean
		pt.TargetHigh = mean * 1.15
		pt.TargetLow = mean * 0.85
		pt.Source = "Intrinsic Value (P/E Based)"
		pt.Confidence = "LOW"
		return
	}

	pt.Source = "Data Not Available (Free Tier)"
	pt.Confidence = "LIMITED"
}

// intrinsicValueEstimate normalizes the all_metrics facet's trailing P/E
// ratio against a conservative industry-average P/E of 20, scaling
// CurrentPrice by the ratio between the two. The estimate is capped to
// [0.5x, 2x] CurrentPrice to keep an extreme P/E from producing an
// implausible target, matching _calculate_intrinsic_estimate.
func intrinsicValueEstimate(record *FundamentalsRecord) (float64, bool) {
	if record.CurrentPrice <= 0 || len(record.AllMetrics) == 0 {
		return 0, false
	}

	var parsed struct {
		Metric struct {
			PEBasicExclExtraTTM float64 `json:"peBasicExclExtraTTM"`
		} `json:"metric"`
	}
	if err := json.Unmarshal(record.AllMetrics, &parsed); err != nil {
		return 0, false
	}

	peRatio := parsed.Metric.PEBasicExclExtraTTM
	if peRatio <= 0 {
		return 0, false
	}

	const industryAveragePE = 20.0
	fairValueMultiplier := industryAveragePE / peRatio
	estimate := record.CurrentPrice * fairValueMultiplier

	if low := record.CurrentPrice * 0.5; estimate < low {
		estimate = low
	} else if high := record.CurrentPrice * 2.0; estimate > high {
		estimate = high
	}
	return estimate, true
}

func confidenceForAnalystCount(n int) string {
	switch {
	case n > 10:
		return "HIGH"
	case n >= 3:
		return "MEDIUM"
	case n >= 1:
		return "LOW"
	default:
		return "LIMITED"
	}
}
