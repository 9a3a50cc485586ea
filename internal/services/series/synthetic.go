package series

import (
	"math"
	"math/rand"
	"time"

	"marketpulse/internal/domain/market_data"
)

// Synthetic generates n candles of a seeded geometric random walk ending one interval
// before end, whose last close equals anchor. Used as first-run history.
func Synthetic(n int, anchor float64, end time.Time, interval time.Duration, seed int64) market_data.Series {
	if n <= 0 || anchor <= 0 || interval <= 0 {
		return market_data.Series{}
	}

	rng := rand.New(rand.NewSource(seed))
	closes := make([]float64, n)
	price := anchor
	for i := n - 1; i >= 0; i-- {
		closes[i] = price
		price /= math.Exp(rng.NormFloat64() * 0.005)
	}

	out := make(market_data.Series, n)
	start := Normalize(end).Add(-time.Duration(n) * interval)
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = market_data.Candle{
			Timestamp: start.Add(time.Duration(i) * interval),
			Open:      open,
			High:      math.Max(open, c) * (1 + rng.Float64()*0.002),
			Low:       math.Min(open, c) * (1 - rng.Float64()*0.002),
			Close:     c,
			Volume:    100 + rng.Float64()*900,
		}
	}
	return out
}
