package collectors

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinnhubFetcherGetErrorsOnEmptyAPIKeyWithoutTouchingClient(t *testing.T) {
	f := NewFinnhubFetcher("", nil)

	_, err := f.FetchEndpoint(context.Background(), "profile", "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no API key configured")
}

func TestFinnhubFetcherFetchEndpointRejectsUnknownFacet(t *testing.T) {
	f := NewFinnhubFetcher("key", nil)

	_, err := f.FetchEndpoint(context.Background(), "not_a_real_facet", "AAPL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no equivalent endpoint")
}

func TestFinnhubCandlesToBarsReshapesOHLCV(t *testing.T) {
	raw := json.RawMessage(`{"c":[101.5],"h":[102],"l":[100],"o":[100.5],"s":"ok","t":[1700000000],"v":[1200000]}`)

	out, err := finnhubCandlesToBars(raw)
	require.NoError(t, err)

	var bars []Bar
	require.NoError(t, json.Unmarshal(out, &bars))
	require.Len(t, bars, 1)
	assert.Equal(t, 101.5, bars[0].Close)
	assert.Equal(t, 102.0, bars[0].High)
	assert.Equal(t, 1200000.0, bars[0].Volume)
}

func TestFinnhubCandlesToBarsReturnsNilOnNoDataStatus(t *testing.T) {
	raw := json.RawMessage(`{"s":"no_data"}`)

	out, err := finnhubCandlesToBars(raw)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestFinnhubCandlesToBarsErrorsOnMalformedJSON(t *testing.T) {
	_, err := finnhubCandlesToBars(json.RawMessage(`not json`))
	assert.Error(t, err)
}
