package testsupport

import (
	"math"
	"math/rand"
	"time"

	"marketpulse/internal/domain/market_data"
)

// Epoch is the timestamp of the first candle of every fixture
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SeriesFromCloses builds hourly candles around the given closes.
// Open is the previous close; high/low bracket open and close.
func SeriesFromCloses(start time.Time, closes []float64) market_data.Series {
	out := make(market_data.Series, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = market_data.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      math.Max(open, c) * 1.001,
			Low:       math.Min(open, c) * 0.999,
			Close:     c,
			Volume:    1000 + float64(i%7)*25,
		}
	}
	return out
}

// Flat returns n candles with a constant price
func Flat(n int, price float64) market_data.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return SeriesFromCloses(Epoch, closes)
}

// Rising returns n candles growing geometrically by step per candle
func Rising(n int, start, step float64) market_data.Series {
	closes := make([]float64, n)
	price := start
	for i := range closes {
		closes[i] = price
		price *= 1 + step
	}
	return SeriesFromCloses(Epoch, closes)
}

// RandomWalk returns a seeded geometric random walk
func RandomWalk(n int, seed int64, start, sigma float64) market_data.Series {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := start
	for i := range closes {
		closes[i] = price
		price *= math.Exp(rng.NormFloat64() * sigma)
	}
	return SeriesFromCloses(Epoch, closes)
}

// RisingThenFlat rises with mild noise for the first half and then moves sideways.
// The noise keeps volatility positive so barriers have width.
func RisingThenFlat(n int, seed int64) market_data.Series {
	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := 100.0
	for i := range closes {
		drift := 0.0
		if i < n/2 {
			drift = 0.004
		}
		price *= 1 + drift + rng.NormFloat64()*0.002
		closes[i] = price
	}
	return SeriesFromCloses(Epoch, closes)
}
