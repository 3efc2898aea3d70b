package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// CryptoRecord is the crypto-shaped fundamentals substitute from spec.md
// §4.1.3: only the fields a crypto asset actually has are populated;
// stock-only fields stay null on the enclosing FundamentalsRecord.
// CurrentPrice here is the one authoritative, always-real number that
// must reach downstream reasoning so an LLM never invents a stale price.
type CryptoRecord struct {
	Symbol            string  `json:"symbol"`
	CurrentPrice      float64 `json:"current_price"`
	High24h           float64 `json:"high_24h"`
	Low24h            float64 `json:"low_24h"`
	Volume24h         float64 `json:"volume_24h"`
	CirculatingSupply float64 `json:"circulating_supply"`
	MarketCap         float64 `json:"market_cap"`
}

// CryptoCollector fetches the crypto-price path described in spec.md
// §4.1.3, bypassing the 15-endpoint fundamentals fan-out entirely.
type CryptoCollector struct {
	chain    *FallbackChain
	cache    *Cache
	cacheTTL time.Duration
}

func NewCryptoCollector(chain *FallbackChain, cache *Cache, cacheTTL time.Duration) *CryptoCollector {
	return &CryptoCollector{chain: chain, cache: cache, cacheTTL: cacheTTL}
}

// Get returns the crypto-shaped record for symbol (a bare ticker or one
// carrying a "-USD" suffix; BaseSymbol is applied before dispatch).
func (c *CryptoCollector) Get(ctx context.Context, symbol string) (*CryptoRecord, error) {
	base := BaseSymbol(symbol)
	key := fmt.Sprintf("crypto:%s:%s", base, time.Now().UTC().Format("2006-01-02"))

	var cached CryptoRecord
	if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	raw, _, err := c.chain.Fetch(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("fetching crypto price for %s: %w", base, err)
	}

	var record CryptoRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decoding crypto price for %s: %w", base, err)
	}
	record.Symbol = base

	c.cache.Set(ctx, key, &record, c.cacheTTL)
	return &record, nil
}
