package labeling

import (
	"math"
	"time"

	"marketpulse/internal/domain/features"
)

// BarrierConfig parameterises triple-barrier labeling
type BarrierConfig struct {
	Horizon        int
	ProfitMultiple float64
	LossMultiple   float64
}

// DefaultBarrierConfig is a 24-period horizon with a 2:1 profit/loss barrier ratio
func DefaultBarrierConfig() BarrierConfig {
	return BarrierConfig{Horizon: 24, ProfitMultiple: 2, LossMultiple: 1}
}

// TripleBarrier labels every anchor that has Horizon candles of forward history.
//
// Class 1 when the upper barrier close[t]*(1+vol*profit) is touched no later than the
// lower barrier close[t]*(1-vol*loss), class 0 otherwise (lower first or no touch).
// A touch also requires the price to have moved in the barrier's direction, so
// zero-width barriers are not touched by a flat path. Anchors with undefined
// volatility get no label.
func TripleBarrier(ts []time.Time, closes, vol []float64, cfg BarrierConfig) []features.Label {
	n := len(closes)
	if cfg.Horizon <= 0 || n != len(ts) || n != len(vol) {
		return []features.Label{}
	}

	labels := make([]features.Label, 0, n)
	for t := 0; t+cfg.Horizon < n; t++ {
		v := vol[t]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}

		entry := closes[t]
		upper := entry * (1 + v*cfg.ProfitMultiple)
		lower := entry * (1 - v*cfg.LossMultiple)

		upHit, downHit := -1, -1
		for j := t + 1; j <= t+cfg.Horizon; j++ {
			p := closes[j]
			if upHit < 0 && p >= upper && p > entry {
				upHit = j
			}
			if downHit < 0 && p <= lower && p < entry {
				downHit = j
			}
			if upHit >= 0 && downHit >= 0 {
				break
			}
		}

		labels = append(labels, features.Label{
			Timestamp: ts[t],
			Class:     classify(upHit, downHit),
		})
	}

	return labels
}

// classify resolves touches; a simultaneous touch favours the upper barrier
func classify(upHit, downHit int) int {
	switch {
	case upHit < 0:
		return 0
	case downHit < 0:
		return 1
	case upHit <= downHit:
		return 1
	default:
		return 0
	}
}
