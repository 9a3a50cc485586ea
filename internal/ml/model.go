package ml

import (
	"math"
	"time"
)

// SequenceModel scores a window of scaled feature vectors (oldest first)
type SequenceModel interface {
	PredictProba(window [][]float64) (float64, error)
}

// Dataset is a labelled, scaled training set. X rows are Scaler applied to Raw rows.
type Dataset struct {
	Features   []string
	Timestamps []time.Time
	Raw        [][]float64
	X          [][]float64
	Y          []int
	Scaler     *RobustScaler
}

// Len returns the number of labelled rows
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Y)
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func clampProb(p float64) float64 {
	const eps = 1e-7
	return math.Min(math.Max(p, eps), 1-eps)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
