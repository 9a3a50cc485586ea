package ml

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/pkg/errors"
)

func TestRobustScaler(t *testing.T) {
	X := [][]float64{{1, 5}, {2, 5}, {3, 5}, {4, 5}, {5, 5}}

	s, err := FitRobustScaler(X)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 5}, s.Center)
	assert.Equal(t, []float64{2, 1}, s.Scale) // q75=4, q25=2; constant column scales by 1
	assert.Equal(t, []float64{1, 0}, s.TransformRow([]float64{5, 5}))

	_, err = FitRobustScaler(nil)
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func separable(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	X := make([][]float64, n)
	y := make([]int, n)
	for i := range X {
		a, b := rng.NormFloat64(), rng.NormFloat64()
		X[i] = []float64{a, b, rng.NormFloat64()}
		if 2*a-b > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func accuracy(pred func(int) float64, y []int) float64 {
	var ok int
	for i, c := range y {
		if (pred(i) >= 0.5) == (c == 1) {
			ok++
		}
	}
	return float64(ok) / float64(len(y))
}

func TestLogisticLearnsLinearBoundary(t *testing.T) {
	X, y := separable(400, 1)

	m, err := TrainLogistic(X, y, LogisticConfig{})
	require.NoError(t, err)

	acc := accuracy(func(i int) float64 { return m.PredictProba(X[i]) }, y)
	assert.Greater(t, acc, 0.9)
	assert.Greater(t, m.Weights[0], 0.0)
	assert.Less(t, m.Weights[1], 0.0)
}

func TestStumpBoosterShapleyAdditivity(t *testing.T) {
	X, y := separable(300, 2)

	b, err := TrainStumpBooster(X, y, BoostConfig{Rounds: 60})
	require.NoError(t, err)
	require.NotEmpty(t, b.Stumps)

	acc := accuracy(func(i int) float64 { return b.PredictProba(X[i]) }, y)
	assert.Greater(t, acc, 0.8)

	for _, x := range X[:20] {
		phi, err := b.Contributions(x)
		require.NoError(t, err)

		var sum float64
		for _, v := range phi {
			sum += v
		}
		assert.InDelta(t, b.Margin(x), b.ExpectedMargin()+sum, 1e-9)
	}

	_, err = b.Contributions([]float64{1})
	assert.True(t, errors.Is(err, errors.ErrModelState))
}

func TestStumpBoosterIgnoresNoiseFeature(t *testing.T) {
	X, y := separable(300, 3)

	b, err := TrainStumpBooster(X, y, BoostConfig{Rounds: 40})
	require.NoError(t, err)

	var used [3]int
	for _, s := range b.Stumps {
		used[s.Feature]++
	}
	assert.Greater(t, used[0], used[2])
}

func TestRecurrentGradientMatchesFiniteDifference(t *testing.T) {
	m := NewRecurrentModel(2, 3, 7)
	window := [][]float64{{0.5, -1}, {0.2, 0.3}, {-0.7, 0.9}}
	target := 1.0

	loss := func() float64 {
		p, err := m.PredictProba(window)
		require.NoError(t, err)
		return -(target*math.Log(p) + (1-target)*math.Log(1-p))
	}

	grads := m.zeroLike()
	m.accumulate(window, target, grads)

	const h = 1e-6
	for pi, p := range m.params() {
		for j := range p {
			orig := p[j]
			p[j] = orig + h
			up := loss()
			p[j] = orig - h
			down := loss()
			p[j] = orig

			numeric := (up - down) / (2 * h)
			assert.InDelta(t, numeric, grads[pi][j], 1e-5, "param %d[%d]", pi, j)
		}
	}
}

func TestRecurrentLearnsWindowTrend(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	windows := make([][][]float64, 240)
	y := make([]int, len(windows))
	for i := range windows {
		sign := 1.0
		if i%2 == 0 {
			sign = -1
			y[i] = 0
		} else {
			y[i] = 1
		}
		w := make([][]float64, 6)
		for t := range w {
			w[t] = []float64{sign*0.8 + rng.NormFloat64()*0.3, rng.NormFloat64()}
		}
		windows[i] = w
	}

	m, err := TrainRecurrent(context.Background(), windows, y, RecurrentConfig{Hidden: 8, Epochs: 20, LearningRate: 0.02, Seed: 1})
	require.NoError(t, err)

	acc := accuracy(func(i int) float64 {
		p, _ := m.PredictProba(windows[i])
		return p
	}, y)
	assert.Greater(t, acc, 0.9)

	again, err := TrainRecurrent(context.Background(), windows, y, RecurrentConfig{Hidden: 8, Epochs: 20, LearningRate: 0.02, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, m, again)
}

func TestRecurrentRejectsWrongWidth(t *testing.T) {
	m := NewRecurrentModel(2, 3, 7)
	_, err := m.PredictProba([][]float64{{1, 2, 3}})
	assert.True(t, errors.Is(err, errors.ErrModelState))
}

func TestTrainRecurrentHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TrainRecurrent(ctx, [][][]float64{{{1}}}, []int{1}, RecurrentConfig{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArtifactRoundTripAndSchemaCheck(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linear.json")
	features := []string{"sma_50", "rsi"}
	scaler := &RobustScaler{Center: []float64{1, 2}, Scale: []float64{1, 1}}
	model := &Logistic{Weights: []float64{0.5, -0.25}, Bias: 0.1}

	require.NoError(t, SaveArtifact(path, KindLinear, features, 24, scaler, model))

	var loaded Logistic
	a, err := LoadArtifact(path, KindLinear, features, 24, &loaded)
	require.NoError(t, err)
	assert.Equal(t, *model, loaded)
	assert.Equal(t, scaler, a.Scaler)

	_, err = LoadArtifact(path, KindLinear, []string{"rsi", "sma_50"}, 24, &loaded)
	assert.True(t, errors.Is(err, errors.ErrModelState))

	_, err = LoadArtifact(path, KindLinear, features, 12, &loaded)
	assert.True(t, errors.Is(err, errors.ErrModelState))

	_, err = LoadArtifact(path, KindAuxiliary, features, 24, &loaded)
	assert.True(t, errors.Is(err, errors.ErrModelState))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadArtifact(path, KindLinear, features, 24, &loaded)
	assert.True(t, errors.Is(err, errors.ErrModelState))

	_, err = LoadArtifact(filepath.Join(dir, "missing.json"), KindLinear, features, 24, &loaded)
	assert.True(t, errors.Is(err, errors.ErrModelState))
}

func TestFingerprintDependsOnKindFeaturesAndWindow(t *testing.T) {
	base := Fingerprint(KindSequence, []string{"a", "b"}, 24)
	assert.Equal(t, base, Fingerprint(KindSequence, []string{"a", "b"}, 24))
	assert.NotEqual(t, base, Fingerprint(KindLinear, []string{"a", "b"}, 24))
	assert.NotEqual(t, base, Fingerprint(KindSequence, []string{"b", "a"}, 24))
	assert.NotEqual(t, base, Fingerprint(KindSequence, []string{"a", "b"}, 12))
}
