package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Bar is one OHLCV observation.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// IndicatorSet is the latest value per named indicator plus the last N
// OHLCV bars, per spec.md §4.1.2. An indicator skipped for insufficient
// data points has no key in Values, so it is distinguishable from one
// that legitimately computed to zero.
type IndicatorSet struct {
	Symbol string           `json:"symbol"`
	Period string           `json:"period"`
	Bars   []Bar            `json:"bars"`
	Values map[string]float64 `json:"values"`
}

// resistanceWindow is the bar window for the support/resistance levels;
// resistanceWindowFallback replaces it when fewer bars than that are
// available.
const (
	resistanceWindow        = 20
	resistanceWindowFallback = 5
)

// IndicatorCollector implements spec.md §4.1.2: fetches OHLCV via the
// fallback chain, then computes the indicator battery locally.
type IndicatorCollector struct {
	chain    *FallbackChain
	cache    *Cache
	cacheTTL time.Duration
	log      *zap.Logger
}

func NewIndicatorCollector(chain *FallbackChain, cache *Cache, cacheTTL time.Duration, log *zap.Logger) *IndicatorCollector {
	return &IndicatorCollector{chain: chain, cache: cache, cacheTTL: cacheTTL, log: log}
}

// Get returns the indicator battery for symbol, consulting the cache
// first. period (e.g. "3mo", "1y") labels the result and its cache key;
// the bars are whatever the fallback chain returns for symbol.
func (c *IndicatorCollector) Get(ctx context.Context, symbol, period string) (*IndicatorSet, error) {
	key := IndicatorsKey(symbol, time.Now().UTC(), period)
	var cached IndicatorSet
	if hit, err := c.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, nil
	}

	raw, _, err := c.chain.Fetch(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching OHLCV for %s: %w", symbol, err)
	}
	var bars []Bar
	if err := json.Unmarshal(raw, &bars); err != nil {
		return nil, fmt.Errorf("decoding OHLCV for %s: %w", symbol, err)
	}

	set := Compute(symbol, period, bars)
	c.cache.Set(ctx, key, set, c.cacheTTL)
	return set, nil
}

// Compute is a pure function of bars: the same input bars always produce
// the same IndicatorSet (testable property P8). Each indicator is only
// populated into Values when there are enough bars to support it.
func Compute(symbol, period string, bars []Bar) *IndicatorSet {
	n := len(bars)
	set := &IndicatorSet{Symbol: symbol, Period: period, Values: map[string]float64{}}
	set.Bars = lastNBars(bars, 60)
	if n == 0 {
		return set
	}

	closes := closesOf(bars)
	highs := highsOf(bars)
	lows := lowsOf(bars)
	volumes := volumesOf(bars)

	put := func(name string, ok bool, v float64) {
		if ok {
			set.Values[name] = v
		}
	}

	// Moving averages.
	for _, length := range []int{10, 20, 50, 200} {
		if v, ok := sma(closes, length); ok {
			set.Values[fmt.Sprintf("sma_%d", length)] = v
		}
		if v, ok := ema(closes, length); ok {
			set.Values[fmt.Sprintf("ema_%d", length)] = v
		}
	}
	put("wma_20", n >= 20, wma(closes, 20))
	put("hma_20", n >= 20, hma(closes, 20))
	put("kama_20", n >= 20, kama(closes, 20))
	if v, ok := tema(closes, 20); ok {
		put("tema_20", true, v)
	}
	put("trima_20", n >= 20, trima(closes, 20))

	// Momentum.
	put("rsi_14", n >= 15, rsi(closes, 14))
	if k, d, ok := stochastic(highs, lows, closes, 14, 3); ok {
		put("stoch_k", true, k)
		put("stoch_d", true, d)
	}
	put("willr_14", n >= 14, williamsR(highs, lows, closes, 14))
	put("cci_20", n >= 20, cci(highs, lows, closes, 20))
	put("roc_12", n >= 13, roc(closes, 12))
	put("momentum_10", n >= 11, momentum(closes, 10))
	if macd, signal, hist, ok := macd(closes, 12, 26, 9); ok {
		put("macd", true, macd)
		put("macd_signal", true, signal)
		put("macd_hist", true, hist)
	}
	put("tsi_25_13", n >= 40, tsi(closes, 25, 13))
	put("ultimate_oscillator", n >= 28, ultimateOscillator(highs, lows, closes))
	put("awesome_oscillator", n >= 34, awesomeOscillator(highs, lows))

	// Volatility.
	if mid, upper, lower, ok := bollingerBands(closes, 20, 2); ok {
		put("bb_mid", true, mid)
		put("bb_upper", true, upper)
		put("bb_lower", true, lower)
	}
	if atrVal, ok := atr(highs, lows, closes, 14); ok {
		put("atr_14", true, atrVal)
		put("natr_14", closes[n-1] != 0, atrVal/closes[n-1]*100)
	}
	if mid, upper, lower, ok := keltnerChannels(highs, lows, closes, 20); ok {
		put("keltner_mid", true, mid)
		put("keltner_upper", true, upper)
		put("keltner_lower", true, lower)
	}
	if upper, lower, ok := donchianChannels(highs, lows, 20); ok {
		put("donchian_upper", true, upper)
		put("donchian_lower", true, lower)
	}

	// Volume.
	put("obv", n >= 2, obv(closes, volumes))
	put("vpt", n >= 2, vpt(closes, volumes))
	put("mfi_14", n >= 15, mfi(highs, lows, closes, volumes, 14))
	put("ad", n >= 1, accumulationDistribution(highs, lows, closes, volumes))
	put("cmf_20", n >= 20, cmf(highs, lows, closes, volumes, 20))
	put("vwap", n >= 1, vwap(highs, lows, closes, volumes))

	// Trend.
	if adxVal, plusDI, minusDI, ok := adx(highs, lows, closes, 14); ok {
		put("adx_14", true, adxVal)
		put("plus_di_14", true, plusDI)
		put("minus_di_14", true, minusDI)
	}
	if up, down, ok := aroon(highs, lows, 25); ok {
		put("aroon_up", true, up)
		put("aroon_down", true, down)
	}

	// Support/resistance: window 20, falling back to window 5 per §4.1.2.
	window := resistanceWindow
	if n < resistanceWindow {
		window = resistanceWindowFallback
	}
	if n >= window {
		put("resistance", true, rollingMax(highs, window))
		put("support", true, rollingMin(lows, window))
	}

	return set
}

func lastNBars(bars []Bar, n int) []Bar {
	if len(bars) <= n {
		return append([]Bar(nil), bars...)
	}
	return append([]Bar(nil), bars[len(bars)-n:]...)
}

func closesOf(bars []Bar) []float64  { return extract(bars, func(b Bar) float64 { return b.Close }) }
func highsOf(bars []Bar) []float64   { return extract(bars, func(b Bar) float64 { return b.High }) }
func lowsOf(bars []Bar) []float64    { return extract(bars, func(b Bar) float64 { return b.Low }) }
func volumesOf(bars []Bar) []float64 { return extract(bars, func(b Bar) float64 { return b.Volume }) }

func extract(bars []Bar, f func(Bar) float64) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = f(b)
	}
	return out
}

// --- Moving averages ---

func sma(series []float64, length int) (float64, bool) {
	if len(series) < length {
		return 0, false
	}
	sum := 0.0
	for _, v := range series[len(series)-length:] {
		sum += v
	}
	return sum / float64(length), true
}

func emaSeries(series []float64, length int) []float64 {
	if len(series) < length {
		return nil
	}
	out := make([]float64, len(series))
	k := 2.0 / float64(length+1)
	seed, _ := sma(series[:length], length)
	out[length-1] = seed
	for i := length; i < len(series); i++ {
		out[i] = series[i]*k + out[i-1]*(1-k)
	}
	return out[length-1:]
}

func ema(series []float64, length int) (float64, bool) {
	s := emaSeries(series, length)
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1], true
}

func wma(series []float64, length int) float64 {
	window := series[len(series)-length:]
	var weightedSum, weightTotal float64
	for i, v := range window {
		w := float64(i + 1)
		weightedSum += v * w
		weightTotal += w
	}
	return weightedSum / weightTotal
}

// hma is the Hull Moving Average: WMA(2*WMA(n/2) - WMA(n), sqrt(n)).
func hma(series []float64, length int) float64 {
	half := length / 2
	sqrtLen := int(math.Sqrt(float64(length)))
	if sqrtLen < 1 {
		sqrtLen = 1
	}
	raw := make([]float64, 0, sqrtLen)
	for i := len(series) - sqrtLen + 1; i <= len(series); i++ {
		if i-half < 0 {
			continue
		}
		wmaHalf := wma(series[:i], half)
		wmaFull := wma(series[:i], length)
		raw = append(raw, 2*wmaHalf-wmaFull)
	}
	if len(raw) == 0 {
		return 0
	}
	return wma(raw, len(raw))
}

// kama is Kaufman's Adaptive Moving Average with a fixed 2/30 fast/slow pair.
func kama(series []float64, length int) float64 {
	if len(series) < length+1 {
		return series[len(series)-1]
	}
	window := series[len(series)-length-1:]
	change := math.Abs(window[len(window)-1] - window[0])
	volatility := 0.0
	for i := 1; i < len(window); i++ {
		volatility += math.Abs(window[i] - window[i-1])
	}
	if volatility == 0 {
		return window[len(window)-1]
	}
	efficiency := change / volatility
	fastest := 2.0 / 3.0
	slowest := 2.0 / 31.0
	sc := math.Pow(efficiency*(fastest-slowest)+slowest, 2)

	kamaVal := window[0]
	for i := 1; i < len(window); i++ {
		kamaVal = kamaVal + sc*(window[i]-kamaVal)
	}
	return kamaVal
}

// tema is the Triple Exponential Moving Average: 3*EMA1 - 3*EMA2 + EMA3,
// where EMA2 smooths EMA1's series and EMA3 smooths EMA2's series.
func tema(series []float64, length int) (float64, bool) {
	ema1 := emaSeries(series, length)
	if len(ema1) < length {
		return 0, false
	}
	ema2 := emaSeries(ema1, length)
	if len(ema2) < length {
		return 0, false
	}
	ema3 := emaSeries(ema2, length)
	if len(ema3) == 0 {
		return 0, false
	}
	return 3*ema1[len(ema1)-1] - 3*ema2[len(ema2)-1] + ema3[len(ema3)-1], true
}

func trima(series []float64, length int) float64 {
	half := (length + 1) / 2
	smoothed := make([]float64, 0, length)
	window := series[len(series)-length:]
	for i := 0; i < len(window); i++ {
		end := i + half
		if end > len(window) {
			end = len(window)
		}
		start := i - half + 1
		if start < 0 {
			start = 0
		}
		v, _ := sma(window[start:end], end-start)
		smoothed = append(smoothed, v)
	}
	v, _ := sma(smoothed, len(smoothed))
	return v
}

// --- Momentum ---

func rsi(closes []float64, length int) float64 {
	window := closes[len(closes)-length-1:]
	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(length)
	avgLoss := lossSum / float64(length)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func stochastic(highs, lows, closes []float64, kLength, dLength int) (k, d float64, ok bool) {
	if len(closes) < kLength+dLength {
		return 0, 0, false
	}
	kValues := make([]float64, dLength)
	for i := 0; i < dLength; i++ {
		end := len(closes) - i
		start := end - kLength
		hh := rollingMax(highs[start:end], kLength)
		ll := rollingMin(lows[start:end], kLength)
		c := closes[end-1]
		if hh == ll {
			kValues[dLength-1-i] = 50
			continue
		}
		kValues[dLength-1-i] = (c - ll) / (hh - ll) * 100
	}
	k = kValues[len(kValues)-1]
	d, _ = sma(kValues, dLength)
	return k, d, true
}

func williamsR(highs, lows, closes []float64, length int) float64 {
	window := len(closes)
	hh := rollingMax(highs[window-length:], length)
	ll := rollingMin(lows[window-length:], length)
	if hh == ll {
		return -50
	}
	return (hh - closes[window-1]) / (hh - ll) * -100
}

func cci(highs, lows, closes []float64, length int) float64 {
	typical := make([]float64, length)
	for i := 0; i < length; i++ {
		idx := len(closes) - length + i
		typical[i] = (highs[idx] + lows[idx] + closes[idx]) / 3
	}
	mean, _ := sma(typical, length)
	var meanDev float64
	for _, v := range typical {
		meanDev += math.Abs(v - mean)
	}
	meanDev /= float64(length)
	if meanDev == 0 {
		return 0
	}
	return (typical[length-1] - mean) / (0.015 * meanDev)
}

func roc(closes []float64, length int) float64 {
	past := closes[len(closes)-1-length]
	if past == 0 {
		return 0
	}
	return (closes[len(closes)-1] - past) / past * 100
}

func momentum(closes []float64, length int) float64 {
	return closes[len(closes)-1] - closes[len(closes)-1-length]
}

func macd(closes []float64, fast, slow, signalLen int) (macdVal, signalVal, hist float64, ok bool) {
	if len(closes) < slow+signalLen {
		return 0, 0, 0, false
	}
	fastSeries := emaSeries(closes, fast)
	slowSeries := emaSeries(closes, slow)
	offset := len(fastSeries) - len(slowSeries)
	macdSeries := make([]float64, len(slowSeries))
	for i := range slowSeries {
		macdSeries[i] = fastSeries[i+offset] - slowSeries[i]
	}
	signalSeries := emaSeries(macdSeries, signalLen)
	if len(signalSeries) == 0 {
		return 0, 0, 0, false
	}
	macdVal = macdSeries[len(macdSeries)-1]
	signalVal = signalSeries[len(signalSeries)-1]
	return macdVal, signalVal, macdVal - signalVal, true
}

// tsi is the True Strength Index: double-smoothed momentum over slow/fast lengths.
func tsi(closes []float64, slow, fast int) float64 {
	momentumSeries := make([]float64, len(closes)-1)
	absMomentumSeries := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		m := closes[i] - closes[i-1]
		momentumSeries[i-1] = m
		absMomentumSeries[i-1] = math.Abs(m)
	}
	smoothedM := emaSeries(emaSeries(momentumSeries, slow), fast)
	smoothedAbsM := emaSeries(emaSeries(absMomentumSeries, slow), fast)
	if len(smoothedM) == 0 || len(smoothedAbsM) == 0 || smoothedAbsM[len(smoothedAbsM)-1] == 0 {
		return 0
	}
	return 100 * smoothedM[len(smoothedM)-1] / smoothedAbsM[len(smoothedAbsM)-1]
}

func ultimateOscillator(highs, lows, closes []float64) float64 {
	n := len(closes)
	bpSum := func(length int) (bp, tr float64) {
		for i := n - length; i < n; i++ {
			if i == 0 {
				continue
			}
			priorClose := closes[i-1]
			trueLow := math.Min(lows[i], priorClose)
			trueHigh := math.Max(highs[i], priorClose)
			bp += closes[i] - trueLow
			tr += trueHigh - trueLow
		}
		return
	}
	bp7, tr7 := bpSum(7)
	bp14, tr14 := bpSum(14)
	bp28, tr28 := bpSum(28)
	avg7, avg14, avg28 := safeDiv(bp7, tr7), safeDiv(bp14, tr14), safeDiv(bp28, tr28)
	return 100 * (4*avg7 + 2*avg14 + avg28) / 7
}

func awesomeOscillator(highs, lows []float64) float64 {
	median := make([]float64, len(highs))
	for i := range highs {
		median[i] = (highs[i] + lows[i]) / 2
	}
	fast, _ := sma(median, 5)
	slow, _ := sma(median, 34)
	return fast - slow
}

// --- Volatility ---

func bollingerBands(closes []float64, length int, stdDevMultiplier float64) (mid, upper, lower float64, ok bool) {
	if len(closes) < length {
		return 0, 0, 0, false
	}
	window := closes[len(closes)-length:]
	mid, _ = sma(closes, length)
	var variance float64
	for _, v := range window {
		variance += (v - mid) * (v - mid)
	}
	stdDev := math.Sqrt(variance / float64(length))
	upper = mid + stdDevMultiplier*stdDev
	lower = mid - stdDevMultiplier*stdDev
	return mid, upper, lower, true
}

func trueRangeSeries(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = highs[i] - lows[i]
			continue
		}
		out[i] = math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}
	return out
}

func atr(highs, lows, closes []float64, length int) (float64, bool) {
	if len(closes) < length+1 {
		return 0, false
	}
	tr := trueRangeSeries(highs, lows, closes)
	return sma(tr, length)
}

func keltnerChannels(highs, lows, closes []float64, length int) (mid, upper, lower float64, ok bool) {
	midVal, ok := ema(closes, length)
	if !ok {
		return 0, 0, 0, false
	}
	atrVal, ok := atr(highs, lows, closes, length)
	if !ok {
		return 0, 0, 0, false
	}
	return midVal, midVal + 2*atrVal, midVal - 2*atrVal, true
}

func donchianChannels(highs, lows []float64, length int) (upper, lower float64, ok bool) {
	if len(highs) < length {
		return 0, 0, false
	}
	return rollingMax(highs, length), rollingMin(lows, length), true
}

// --- Volume ---

func obv(closes, volumes []float64) float64 {
	total := 0.0
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			total += volumes[i]
		case closes[i] < closes[i-1]:
			total -= volumes[i]
		}
	}
	return total
}

func vpt(closes, volumes []float64) float64 {
	total := 0.0
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		total += volumes[i] * (closes[i] - closes[i-1]) / closes[i-1]
	}
	return total
}

func mfi(highs, lows, closes, volumes []float64, length int) float64 {
	n := len(closes)
	var positiveFlow, negativeFlow float64
	for i := n - length; i < n; i++ {
		if i <= 0 {
			continue
		}
		typical := (highs[i] + lows[i] + closes[i]) / 3
		prevTypical := (highs[i-1] + lows[i-1] + closes[i-1]) / 3
		flow := typical * volumes[i]
		if typical > prevTypical {
			positiveFlow += flow
		} else if typical < prevTypical {
			negativeFlow += flow
		}
	}
	if negativeFlow == 0 {
		return 100
	}
	moneyRatio := positiveFlow / negativeFlow
	return 100 - (100 / (1 + moneyRatio))
}

func accumulationDistribution(highs, lows, closes, volumes []float64) float64 {
	total := 0.0
	for i := range closes {
		rang := highs[i] - lows[i]
		if rang == 0 {
			continue
		}
		mfm := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rang
		total += mfm * volumes[i]
	}
	return total
}

func cmf(highs, lows, closes, volumes []float64, length int) float64 {
	n := len(closes)
	var mfvSum, volSum float64
	for i := n - length; i < n; i++ {
		rang := highs[i] - lows[i]
		if rang == 0 {
			continue
		}
		mfm := ((closes[i] - lows[i]) - (highs[i] - closes[i])) / rang
		mfvSum += mfm * volumes[i]
		volSum += volumes[i]
	}
	return safeDiv(mfvSum, volSum)
}

func vwap(highs, lows, closes, volumes []float64) float64 {
	var pvSum, volSum float64
	for i := range closes {
		typical := (highs[i] + lows[i] + closes[i]) / 3
		pvSum += typical * volumes[i]
		volSum += volumes[i]
	}
	return safeDiv(pvSum, volSum)
}

// --- Trend ---

func adx(highs, lows, closes []float64, length int) (adxVal, plusDI, minusDI float64, ok bool) {
	n := len(closes)
	if n < length*2 {
		return 0, 0, 0, false
	}

	plusDM := make([]float64, n)
	minusDM := make([]float64, n)
	tr := trueRangeSeries(highs, lows, closes)
	for i := 1; i < n; i++ {
		upMove := highs[i] - highs[i-1]
		downMove := lows[i-1] - lows[i]
		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
	}

	smoothedTR, _ := sma(tr, length)
	smoothedPlusDM, _ := sma(plusDM, length)
	smoothedMinusDM, _ := sma(minusDM, length)
	if smoothedTR == 0 {
		return 0, 0, 0, false
	}
	plusDI = smoothedPlusDM / smoothedTR * 100
	minusDI = smoothedMinusDM / smoothedTR * 100
	diSum := plusDI + minusDI
	if diSum == 0 {
		return 0, plusDI, minusDI, true
	}
	dx := math.Abs(plusDI-minusDI) / diSum * 100
	return dx, plusDI, minusDI, true
}

func aroon(highs, lows []float64, length int) (up, down float64, ok bool) {
	if len(highs) < length+1 {
		return 0, 0, false
	}
	window := highs[len(highs)-length-1:]
	lowWindow := lows[len(lows)-length-1:]

	highestIdx, highest := 0, window[0]
	for i, v := range window {
		if v >= highest {
			highest = v
			highestIdx = i
		}
	}
	lowestIdx, lowest := 0, lowWindow[0]
	for i, v := range lowWindow {
		if v <= lowest {
			lowest = v
			lowestIdx = i
		}
	}
	up = float64(highestIdx) / float64(length) * 100
	down = float64(lowestIdx) / float64(length) * 100
	return up, down, true
}

// --- Support/resistance ---

func rollingMax(series []float64, window int) float64 {
	s := series[len(series)-window:]
	max := s[0]
	for _, v := range s {
		if v > max {
			max = v
		}
	}
	return max
}

func rollingMin(series []float64, window int) float64 {
	s := series[len(series)-window:]
	min := s[0]
	for _, v := range s {
		if v < min {
			min = v
		}
	}
	return min
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}
