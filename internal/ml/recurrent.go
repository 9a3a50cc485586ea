package ml

import (
	"context"
	"math"
	"math/rand"

	"marketpulse/pkg/errors"
)

// RecurrentModel is an Elman recurrent network over a window of feature vectors
// with a sigmoid read-out of the final hidden state.
type RecurrentModel struct {
	Inputs int       `json:"inputs"`
	Hidden int       `json:"hidden"`
	Wx     []float64 `json:"wx"` // Hidden x Inputs, row-major
	Wh     []float64 `json:"wh"` // Hidden x Hidden, row-major
	Bh     []float64 `json:"bh"`
	Wo     []float64 `json:"wo"`
	Bo     []float64 `json:"bo"`
}

// RecurrentConfig controls mini-batch BPTT training
type RecurrentConfig struct {
	Hidden       int
	Epochs       int
	LearningRate float64
	BatchSize    int
	Seed         int64
}

var _ SequenceModel = (*RecurrentModel)(nil)

// NewRecurrentModel allocates a network with seeded Xavier-uniform weights
func NewRecurrentModel(inputs, hidden int, seed int64) *RecurrentModel {
	rng := rand.New(rand.NewSource(seed))
	uniform := func(n int, limit float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = (rng.Float64()*2 - 1) * limit
		}
		return out
	}

	return &RecurrentModel{
		Inputs: inputs,
		Hidden: hidden,
		Wx:     uniform(hidden*inputs, math.Sqrt(6/float64(inputs+hidden))),
		Wh:     uniform(hidden*hidden, 0.5*math.Sqrt(6/float64(2*hidden))),
		Bh:     make([]float64, hidden),
		Wo:     uniform(hidden, math.Sqrt(6/float64(hidden+1))),
		Bo:     []float64{0},
	}
}

// TrainRecurrent fits a new network on windows[i] -> y[i]
func TrainRecurrent(ctx context.Context, windows [][][]float64, y []int, cfg RecurrentConfig) (*RecurrentModel, error) {
	if len(windows) == 0 || len(windows) != len(y) {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "recurrent: %d windows, %d labels", len(windows), len(y))
	}
	if len(windows[0]) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "recurrent: empty window")
	}
	if cfg.Hidden <= 0 {
		cfg.Hidden = 16
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 15
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}

	m := NewRecurrentModel(len(windows[0][0]), cfg.Hidden, cfg.Seed)
	params := m.params()
	grads := m.zeroLike()
	opt := newAdam(cfg.LearningRate, params)
	rng := rand.New(rand.NewSource(cfg.Seed + 1))

	order := make([]int, len(windows))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		for start := 0; start < len(order); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(order) {
				end = len(order)
			}

			zero(grads)
			for _, idx := range order[start:end] {
				m.accumulate(windows[idx], float64(y[idx]), grads)
			}
			scale := 1 / float64(end-start)
			for _, g := range grads {
				for j := range g {
					g[j] *= scale
				}
			}
			clipNorm(grads, 5)
			opt.step(params, grads)
		}
	}

	return m, nil
}

// PredictProba returns P(class 1 | window)
func (m *RecurrentModel) PredictProba(window [][]float64) (float64, error) {
	if len(window) == 0 {
		return 0.5, errors.Wrap(errors.ErrInvalidInput, "empty window")
	}
	for _, x := range window {
		if len(x) != m.Inputs {
			return 0.5, errors.Wrapf(errors.ErrModelState, "window row has %d features, model expects %d", len(x), m.Inputs)
		}
	}

	hs := m.forward(window)
	return sigmoid(dot(m.Wo, hs[len(hs)-1]) + m.Bo[0]), nil
}

// forward returns hidden states h_0 (zeros) .. h_T
func (m *RecurrentModel) forward(window [][]float64) [][]float64 {
	H, I := m.Hidden, m.Inputs
	hs := make([][]float64, len(window)+1)
	hs[0] = make([]float64, H)
	for t, x := range window {
		prev := hs[t]
		h := make([]float64, H)
		for k := 0; k < H; k++ {
			a := m.Bh[k]
			a += dot(m.Wx[k*I:(k+1)*I], x)
			a += dot(m.Wh[k*H:(k+1)*H], prev)
			h[k] = math.Tanh(a)
		}
		hs[t+1] = h
	}
	return hs
}

// accumulate adds the BCE gradient of one example to grads (layout of params)
func (m *RecurrentModel) accumulate(window [][]float64, target float64, grads [][]float64) {
	H, I := m.Hidden, m.Inputs
	gWx, gWh, gBh, gWo, gBo := grads[0], grads[1], grads[2], grads[3], grads[4]

	hs := m.forward(window)
	last := hs[len(hs)-1]
	dz := sigmoid(dot(m.Wo, last)+m.Bo[0]) - target

	dh := make([]float64, H)
	for k := 0; k < H; k++ {
		gWo[k] += dz * last[k]
		dh[k] = dz * m.Wo[k]
	}
	gBo[0] += dz

	da := make([]float64, H)
	for t := len(window); t >= 1; t-- {
		h, prev, x := hs[t], hs[t-1], window[t-1]
		for k := 0; k < H; k++ {
			da[k] = dh[k] * (1 - h[k]*h[k])
		}
		next := make([]float64, H)
		for k := 0; k < H; k++ {
			if da[k] == 0 {
				continue
			}
			gBh[k] += da[k]
			for j := 0; j < I; j++ {
				gWx[k*I+j] += da[k] * x[j]
			}
			for j := 0; j < H; j++ {
				gWh[k*H+j] += da[k] * prev[j]
				next[j] += m.Wh[k*H+j] * da[k]
			}
		}
		dh = next
	}
}

func (m *RecurrentModel) params() [][]float64 {
	return [][]float64{m.Wx, m.Wh, m.Bh, m.Wo, m.Bo}
}

func (m *RecurrentModel) zeroLike() [][]float64 {
	ps := m.params()
	out := make([][]float64, len(ps))
	for i, p := range ps {
		out[i] = make([]float64, len(p))
	}
	return out
}
