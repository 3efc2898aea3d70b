package collectors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnhancePriceTargetsKeepsPrimaryUpstreamWhenPopulated(t *testing.T) {
	record := &FundamentalsRecord{
		PriceTargets: PriceTargets{NumberOfAnalysts: 15, TargetMean: 200},
	}

	EnhancePriceTargets(record)

	assert.Equal(t, "Primary Upstream", record.PriceTargets.Source)
	assert.Equal(t, "HIGH", record.PriceTargets.Confidence)
}

func TestEnhancePriceTargetsDerivesFromRecommendationsWhenPrimaryEmpty(t *testing.T) {
	record := &FundamentalsRecord{
		CurrentPrice:           100,
		AnalystRecommendations: AnalystRecommendations{StrongBuy: 8, Buy: 2, Hold: 0, Sell: 0, StrongSell: 0},
	}

	EnhancePriceTargets(record)

	assert.Equal(t, "Analyst Recommendations (Derived)", record.PriceTargets.Source)
	assert.Equal(t, 10, record.PriceTargets.NumberOfAnalysts)
	assert.InDelta(t, 120, record.PriceTargets.TargetMean, 0.01)
}

func TestEnhancePriceTargetsFallsBackToIntrinsicValueWhenNoRecommendations(t *testing.T) {
	record := &FundamentalsRecord{
		CurrentPrice: 100,
		AllMetrics:   json.RawMessage(`{"metric":{"peBasicExclExtraTTM":10}}`),
	}

	EnhancePriceTargets(record)

	assert.Equal(t, "Intrinsic Value (P/E Based)", record.PriceTargets.Source)
	assert.Equal(t, "LOW", record.PriceTargets.Confidence)
	// industry_avg_pe(20) / pe_ratio(10) = 2x multiplier, capped at 2x current price.
	assert.InDelta(t, 200, record.PriceTargets.TargetMean, 0.01)
	assert.InDelta(t, 230, record.PriceTargets.TargetHigh, 0.01)
	assert.InDelta(t, 170, record.PriceTargets.TargetLow, 0.01)
}

func TestEnhancePriceTargetsIntrinsicValueCapsExtremeMultiplier(t *testing.T) {
	record := &FundamentalsRecord{
		CurrentPrice: 100,
		AllMetrics:   json.RawMessage(`{"metric":{"peBasicExclExtraTTM":1}}`),
	}

	EnhancePriceTargets(record)

	assert.Equal(t, "Intrinsic Value (P/E Based)", record.PriceTargets.Source)
	// industry_avg_pe(20) / pe_ratio(1) = 20x, capped to 2x current price.
	assert.InDelta(t, 200, record.PriceTargets.TargetMean, 0.01)
}

func TestEnhancePriceTargetsFallsBackToLimitedDataWhenNothingApplies(t *testing.T) {
	record := &FundamentalsRecord{}

	EnhancePriceTargets(record)

	assert.Equal(t, "Data Not Available (Free Tier)", record.PriceTargets.Source)
	assert.Equal(t, "LIMITED", record.PriceTargets.Confidence)
}

func TestEnhancePriceTargetsFallsBackToLimitedDataWhenPEMissing(t *testing.T) {
	record := &FundamentalsRecord{
		CurrentPrice: 100,
		AllMetrics:   json.RawMessage(`{"metric":{}}`),
	}

	EnhancePriceTargets(record)

	assert.Equal(t, "Data Not Available (Free Tier)", record.PriceTargets.Source)
}
