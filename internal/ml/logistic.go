package ml

import (
	"math"

	"marketpulse/pkg/errors"
)

// Logistic is an L2-regularised logistic regression on one feature vector
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// LogisticConfig controls full-batch training
type LogisticConfig struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

// TrainLogistic fits a logistic regression with full-batch Adam from zero weights
func TrainLogistic(X [][]float64, y []int, cfg LogisticConfig) (*Logistic, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "logistic: %d rows, %d labels", len(X), len(y))
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 300
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.05
	}

	cols := len(X[0])
	m := &Logistic{Weights: make([]float64, cols)}
	bias := []float64{0}
	params := [][]float64{m.Weights, bias}
	gw := make([]float64, cols)
	gb := make([]float64, 1)
	grads := [][]float64{gw, gb}
	opt := newAdam(cfg.LearningRate, params)

	n := float64(len(X))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		zero(grads)
		for i, x := range X {
			d := sigmoid(dot(m.Weights, x)+bias[0]) - float64(y[i])
			for j, v := range x {
				gw[j] += d * v
			}
			gb[0] += d
		}
		for j := range gw {
			gw[j] = gw[j]/n + cfg.L2*m.Weights[j]
		}
		gb[0] /= n
		opt.step(params, grads)
	}

	m.Bias = bias[0]
	return m, nil
}

// PredictProba returns P(class 1 | x)
func (m *Logistic) PredictProba(x []float64) float64 {
	p := sigmoid(dot(m.Weights, x) + m.Bias)
	if math.IsNaN(p) {
		return 0.5
	}
	return p
}
