package features

import (
	"github.com/markcheno/go-talib"

	"marketpulse/internal/domain/features"
	"marketpulse/internal/domain/market_data"
	"marketpulse/pkg/errors"
)

// Feature names produced by the engine
const (
	SMA20           = "sma_20"
	SMA50           = "sma_50"
	RSI             = "rsi"
	MACDLine        = "macd_line"
	MACDSignal      = "macd_signal"
	MACDHist        = "macd_hist"
	ATR             = "atr"
	BBUpper         = "bb_upper"
	BBLower         = "bb_lower"
	ADX             = "adx"
	OBV             = "obv"
	VolRatio        = "vol_ratio"
	PriceSMARatio   = "price_sma_ratio"
	VolatilityRatio = "volatility_ratio"
	PctChange1h     = "pct_change_1h"
	PctChange3h     = "pct_change_3h"
	PctChange24h    = "pct_change_24h"
	RSIDiff         = "rsi_diff"
)

// Names lists every computed feature in a stable order
var Names = []string{
	SMA20, SMA50, RSI, MACDLine, MACDSignal, MACDHist, ATR, BBUpper, BBLower,
	ADX, OBV, VolRatio, PriceSMARatio, VolatilityRatio,
	PctChange1h, PctChange3h, PctChange24h, RSIDiff,
}

// DefaultModelFeatures is the subset fed to the models
var DefaultModelFeatures = []string{SMA50, PctChange3h, PctChange24h, VolRatio, MACDHist}

const volumeWindow = 20

// warmup is the number of leading rows at least one indicator leaves undefined
// (talib zero-fills its lookback instead of returning NaN). SMA 50 dominates.
const warmup = 49

// Engine computes technical features over a candle series
type Engine struct {
	modelFeatures []string
}

// NewEngine creates an engine; modelFeatures must be a subset of Names
func NewEngine(modelFeatures []string) (*Engine, error) {
	if len(modelFeatures) == 0 {
		modelFeatures = DefaultModelFeatures
	}

	known := make(map[string]bool, len(Names))
	for _, n := range Names {
		known[n] = true
	}
	for _, n := range modelFeatures {
		if !known[n] {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown model feature %q", n)
		}
	}

	return &Engine{modelFeatures: append([]string(nil), modelFeatures...)}, nil
}

// ModelFeatures returns the names of the features fed to the models, in order
func (e *Engine) ModelFeatures() []string {
	return append([]string(nil), e.modelFeatures...)
}

// Warmup returns how many leading candles never produce a row
func (e *Engine) Warmup() int {
	return warmup
}

// Compute derives one row per candle. Rows inside the indicator warm-up and rows with
// any non-finite value are dropped, so the output is shorter than the input.
// Row i only depends on candles 0..i.
func (e *Engine) Compute(s market_data.Series) []features.Row {
	n := len(s)
	if n <= warmup {
		return []features.Row{}
	}

	highs, lows, closes, volumes := columns(s)

	sma20 := talib.Sma(closes, 20)
	sma50 := talib.Sma(closes, 50)
	rsi := talib.Rsi(closes, 14)
	macdLine, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)
	atr := talib.Atr(highs, lows, closes, 14)
	bbUpper, _, bbLower := talib.BBands(closes, 20, 2.0, 2.0, talib.SMA)
	adx := talib.Adx(highs, lows, closes, 14)
	obv := talib.Obv(closes, volumes)
	volMean := rollingMean(volumes, volumeWindow)

	rows := make([]features.Row, 0, n-warmup)
	for i := warmup; i < n; i++ {
		row := features.Row{
			Timestamp: s[i].Timestamp,
			Close:     closes[i],
			Values: map[string]float64{
				SMA20:           sma20[i],
				SMA50:           sma50[i],
				RSI:             rsi[i],
				MACDLine:        macdLine[i],
				MACDSignal:      macdSignal[i],
				MACDHist:        macdHist[i],
				ATR:             atr[i],
				BBUpper:         bbUpper[i],
				BBLower:         bbLower[i],
				ADX:             adx[i],
				OBV:             obv[i],
				VolRatio:        volumes[i] / volMean[i],
				PriceSMARatio:   closes[i] / sma50[i],
				VolatilityRatio: closes[i] / closes[i-1],
				PctChange1h:     pctChange(closes, i, 1),
				PctChange3h:     pctChange(closes, i, 3),
				PctChange24h:    pctChange(closes, i, 24),
				RSIDiff:         rsi[i] - rsi[i-1],
			},
		}

		if !row.Finite() {
			continue
		}
		rows = append(rows, row)
	}

	return rows
}

// Matrix extracts the model feature vectors of rows, in order
func (e *Engine) Matrix(rows []features.Row) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		v, ok := r.Vector(e.modelFeatures)
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "row %s lacks model features", r.Timestamp)
		}
		out[i] = v
	}
	return out, nil
}

func columns(s market_data.Series) (highs, lows, closes, volumes []float64) {
	n := len(s)
	highs = make([]float64, n)
	lows = make([]float64, n)
	closes = make([]float64, n)
	volumes = make([]float64, n)
	for i, c := range s {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	return
}

// rollingMean is the trailing mean over window values; zero before the window fills
func rollingMean(in []float64, window int) []float64 {
	out := make([]float64, len(in))
	var sum float64
	for i, v := range in {
		sum += v
		if i >= window {
			sum -= in[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

func pctChange(closes []float64, i, k int) float64 {
	return (closes[i] - closes[i-k]) / closes[i-k]
}
