package market_data

import (
	"math"
	"time"
)

// Candle is one time-bucketed OHLCV observation. Timestamp is the bucket open, in UTC.
type Candle struct {
	Timestamp time.Time `ch:"open_time" json:"timestamp"`
	Open      float64   `ch:"open" json:"open"`
	High      float64   `ch:"high" json:"high"`
	Low       float64   `ch:"low" json:"low"`
	Close     float64   `ch:"close" json:"close"`
	Volume    float64   `ch:"volume" json:"volume"`
}

// Valid reports whether prices are finite and positive and volume is finite and non-negative
func (c Candle) Valid() bool {
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return false
		}
	}
	return !math.IsNaN(c.Volume) && !math.IsInf(c.Volume, 0) && c.Volume >= 0
}

// Series is an ordered sequence of candles keyed by timestamp
type Series []Candle

// Len returns the number of candles
func (s Series) Len() int { return len(s) }

// Closes returns the close prices in order
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Timestamps returns the candle timestamps in order
func (s Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s))
	for i, c := range s {
		out[i] = c.Timestamp
	}
	return out
}

// Tail returns the last n candles (all of them when n >= len)
func (s Series) Tail(n int) Series {
	if n <= 0 {
		return Series{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Last returns the most recent candle
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Clone returns a copy that can be modified without touching s
func (s Series) Clone() Series {
	out := make(Series, len(s))
	copy(out, s)
	return out
}
