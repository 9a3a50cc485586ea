package ml

import (
	"math"
	"sort"

	"marketpulse/pkg/errors"
)

// Stump is a depth-one regression tree. Left and Right are already scaled by the
// learning rate; LeftShare is the training fraction that went left.
type Stump struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      float64 `json:"left"`
	Right     float64 `json:"right"`
	LeftShare float64 `json:"left_share"`
}

func (s Stump) value(x []float64) float64 {
	if x[s.Feature] <= s.Threshold {
		return s.Left
	}
	return s.Right
}

func (s Stump) expected() float64 {
	return s.LeftShare*s.Left + (1-s.LeftShare)*s.Right
}

// StumpBooster is a gradient-boosted ensemble of stumps on the logistic loss.
// It is the explainability model: each stump reads one feature, so per-feature
// Shapley values are exact.
type StumpBooster struct {
	Features int     `json:"features"`
	Base     float64 `json:"base"`
	Stumps   []Stump `json:"stumps"`
}

// BoostConfig controls boosting
type BoostConfig struct {
	Rounds       int
	LearningRate float64
	Lambda       float64
	MaxSplits    int
}

// TrainStumpBooster fits a booster with Newton leaf values
func TrainStumpBooster(X [][]float64, y []int, cfg BoostConfig) (*StumpBooster, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "booster: %d rows, %d labels", len(X), len(y))
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = 100
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.1
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = 1
	}
	if cfg.MaxSplits <= 0 {
		cfg.MaxSplits = 32
	}

	n, cols := len(X), len(X[0])

	var pos float64
	for _, c := range y {
		pos += float64(c)
	}
	mean := clampProb(pos / float64(n))
	b := &StumpBooster{Features: cols, Base: math.Log(mean / (1 - mean))}

	candidates := make([][]float64, cols)
	for j := 0; j < cols; j++ {
		candidates[j] = splitCandidates(X, j, cfg.MaxSplits)
	}

	F := make([]float64, n)
	for i := range F {
		F[i] = b.Base
	}
	g := make([]float64, n)
	h := make([]float64, n)

	for round := 0; round < cfg.Rounds; round++ {
		var G, Hs float64
		for i := range X {
			p := sigmoid(F[i])
			g[i] = float64(y[i]) - p
			h[i] = p * (1 - p)
			G += g[i]
			Hs += h[i]
		}

		best, bestGain := Stump{Feature: -1}, 0.0
		var bestGL, bestHL, bestNL float64
		for j := 0; j < cols; j++ {
			for _, thr := range candidates[j] {
				var GL, HL, NL float64
				for i, x := range X {
					if x[j] <= thr {
						GL += g[i]
						HL += h[i]
						NL++
					}
				}
				if NL == 0 || NL == float64(n) {
					continue
				}
				GR, HR := G-GL, Hs-HL
				gain := GL*GL/(HL+cfg.Lambda) + GR*GR/(HR+cfg.Lambda) - G*G/(Hs+cfg.Lambda)
				if gain > bestGain {
					best, bestGain = Stump{Feature: j, Threshold: thr}, gain
					bestGL, bestHL, bestNL = GL, HL, NL
				}
			}
		}
		if best.Feature < 0 {
			break
		}

		best.Left = cfg.LearningRate * bestGL / (bestHL + cfg.Lambda)
		best.Right = cfg.LearningRate * (G - bestGL) / (Hs - bestHL + cfg.Lambda)
		best.LeftShare = bestNL / float64(n)
		b.Stumps = append(b.Stumps, best)

		for i, x := range X {
			F[i] += best.value(x)
		}
	}

	return b, nil
}

// Margin returns the raw log-odds for x
func (b *StumpBooster) Margin(x []float64) float64 {
	m := b.Base
	for _, s := range b.Stumps {
		m += s.value(x)
	}
	return m
}

// PredictProba returns P(class 1 | x)
func (b *StumpBooster) PredictProba(x []float64) float64 {
	return sigmoid(b.Margin(x))
}

// Contributions returns per-feature Shapley values in log-odds space.
// Their sum plus ExpectedMargin equals Margin(x).
func (b *StumpBooster) Contributions(x []float64) ([]float64, error) {
	if len(x) != b.Features {
		return nil, errors.Wrapf(errors.ErrModelState, "row has %d features, booster expects %d", len(x), b.Features)
	}
	phi := make([]float64, b.Features)
	for _, s := range b.Stumps {
		phi[s.Feature] += s.value(x) - s.expected()
	}
	return phi, nil
}

// ExpectedMargin is the mean training margin implied by the stumps
func (b *StumpBooster) ExpectedMargin() float64 {
	m := b.Base
	for _, s := range b.Stumps {
		m += s.expected()
	}
	return m
}

// splitCandidates returns up to max distinct quantile cut points of column j
func splitCandidates(X [][]float64, j, max int) []float64 {
	vals := make([]float64, len(X))
	for i, row := range X {
		vals[i] = row[j]
	}
	sort.Float64s(vals)

	out := make([]float64, 0, max)
	for k := 1; k <= max; k++ {
		q := quantile(vals, float64(k)/float64(max+1))
		if len(out) == 0 || q > out[len(out)-1] {
			out = append(out, q)
		}
	}
	return out
}
