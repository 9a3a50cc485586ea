package ensemble

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/ml"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

var testFeatures = []string{"trend", "noise"}

func testConfig(dir string) Config {
	return Config{
		ModelDir:     dir,
		Features:     testFeatures,
		Window:       5,
		Hidden:       4,
		Epochs:       3,
		LearningRate: 0.02,
		BoostRounds:  20,
		Seed:         42,
	}
}

func dataset(t *testing.T, n int) *ml.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(9))
	ds := &ml.Dataset{Features: testFeatures}
	for i := 0; i < n; i++ {
		trend := rng.NormFloat64()
		class := 0
		if trend > 0 {
			class = 1
		}
		ds.Raw = append(ds.Raw, []float64{trend*10 + 100, rng.NormFloat64()})
		ds.Y = append(ds.Y, class)
	}
	scaler, err := ml.FitRobustScaler(ds.Raw)
	require.NoError(t, err)
	ds.Scaler = scaler
	ds.X = scaler.Transform(ds.Raw)
	return ds
}

func TestBlendStaysInRangeAndDirectionFollowsThreshold(t *testing.T) {
	grid := []float64{0, 0.1, 0.25, 0.4, 0.5, 0.6, 0.75, 0.9, 1}
	for _, pA := range grid {
		for _, pB := range grid {
			p := Blend(pA, pB, 0.7, 0.3)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
			assert.InDelta(t, 0.7*pA+0.3*pB, p, 1e-12)
			assert.Equal(t, p >= 0.5, Direction(p) == 1, "pA=%v pB=%v", pA, pB)
		}
	}

	assert.Equal(t, 1.0, Blend(1, 1, 0.9, 0.9))
	assert.Equal(t, 0.0, Blend(0.2, 0.2, -1, 0))
	assert.Equal(t, 0.5, Blend(math.NaN(), 0.2, 0.7, 0.3))
	assert.Equal(t, 1, Direction(0.5))
}

func TestUntrainedEnsembleIsNeutral(t *testing.T) {
	e := New(testConfig(t.TempDir()), logger.Nop())

	assert.Equal(t, Untrained, e.State())
	assert.False(t, e.Trained())

	pred, err := e.PredictCombined(make([][]float64, 10))
	require.NoError(t, err)
	assert.Equal(t, Neutral(), pred)
	assert.Empty(t, e.FeatureImportance([]float64{1, 2}))
}

func TestTrainAllTrainsPersistsAndPredicts(t *testing.T) {
	dir := t.TempDir()
	ds := dataset(t, 120)
	e := New(testConfig(dir), logger.Nop())

	require.NoError(t, e.TrainAll(context.Background(), ds))
	assert.Equal(t, Trained, e.State())

	for _, name := range []string{SequenceFile, LinearFile, AuxiliaryFile} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	short, err := e.PredictCombined(ds.Raw[:4])
	require.NoError(t, err)
	assert.Equal(t, Neutral(), short)

	pred, err := e.PredictCombined(ds.Raw[len(ds.Raw)-10:])
	require.NoError(t, err)
	assert.InDelta(t, Blend(pred.SequenceProb, pred.LinearProb, 0.7, 0.3), pred.Probability, 1e-12)
	assert.Equal(t, Direction(pred.Probability), pred.Direction)

	// the linear model alone separates the trend feature
	up, err := e.PredictCombined(append(ds.Raw[:5:5], []float64{130, 0}))
	require.NoError(t, err)
	down, err := e.PredictCombined(append(ds.Raw[:5:5], []float64{70, 0}))
	require.NoError(t, err)
	assert.Greater(t, up.LinearProb, down.LinearProb)

	// training again is a no-op once trained
	require.NoError(t, e.TrainAll(context.Background(), nil))
	assert.Equal(t, Trained, e.State())
}

func TestTrainAllRestoresMatchingArtifacts(t *testing.T) {
	dir := t.TempDir()
	ds := dataset(t, 120)
	window := ds.Raw[len(ds.Raw)-5:]

	first := New(testConfig(dir), logger.Nop())
	require.NoError(t, first.TrainAll(context.Background(), ds))
	want, err := first.PredictCombined(window)
	require.NoError(t, err)

	second := New(testConfig(dir), logger.Nop())
	require.NoError(t, second.TrainAll(context.Background(), nil))
	assert.Equal(t, Loaded, second.State())

	got, err := second.PredictCombined(window)
	require.NoError(t, err)
	assert.InDelta(t, want.Probability, got.Probability, 1e-12)
	assert.Equal(t, want.Direction, got.Direction)
}

func TestTrainAllRetrainsOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	ds := dataset(t, 120)

	require.NoError(t, New(testConfig(dir), logger.Nop()).TrainAll(context.Background(), ds))

	cfg := testConfig(dir)
	cfg.Window = 6
	e := New(cfg, logger.Nop())
	assert.True(t, errors.Is(e.Load(), errors.ErrModelState))

	require.NoError(t, e.TrainAll(context.Background(), ds))
	assert.Equal(t, Trained, e.State())

	// the rewritten artifacts now carry the new fingerprint
	restored := New(cfg, logger.Nop())
	require.NoError(t, restored.Load())
	assert.Equal(t, Loaded, restored.State())
}

func TestTrainAllRetrainsOnCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	ds := dataset(t, 120)
	require.NoError(t, New(testConfig(dir), logger.Nop()).TrainAll(context.Background(), ds))
	require.NoError(t, os.WriteFile(filepath.Join(dir, AuxiliaryFile), []byte("{not json"), 0o644))

	e := New(testConfig(dir), logger.Nop())
	require.NoError(t, e.TrainAll(context.Background(), ds))
	assert.Equal(t, Trained, e.State())
}

func TestTrainAllNeedsMoreRowsThanWindow(t *testing.T) {
	e := New(testConfig(t.TempDir()), logger.Nop())

	err := e.TrainAll(context.Background(), dataset(t, 5))
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
	assert.Equal(t, Untrained, e.State())
}

func TestPredictCombinedRejectsWrongWidth(t *testing.T) {
	e := New(testConfig(t.TempDir()), logger.Nop())
	require.NoError(t, e.TrainAll(context.Background(), dataset(t, 60)))

	window := make([][]float64, 5)
	for i := range window {
		window[i] = []float64{1, 2, 3}
	}
	pred, err := e.PredictCombined(window)
	assert.True(t, errors.Is(err, errors.ErrModelState))
	assert.Equal(t, Neutral(), pred)
}

func TestFeatureImportanceRanksByAbsoluteImpact(t *testing.T) {
	e := New(testConfig(t.TempDir()), logger.Nop())
	require.NoError(t, e.TrainAll(context.Background(), dataset(t, 120)))

	ranked := e.FeatureImportance([]float64{125, 0})
	require.NotEmpty(t, ranked)
	assert.LessOrEqual(t, len(ranked), TopImportances)
	assert.Equal(t, "trend", ranked[0].Feature)
	assert.Greater(t, ranked[0].Impact, 0.0)
	for i, imp := range ranked {
		assert.GreaterOrEqual(t, imp.Impact, 0.0, imp.Feature)
		if i > 0 {
			assert.GreaterOrEqual(t, ranked[i-1].Impact, imp.Impact)
		}
	}

	// a bearish row pushes the log-odds down but still reports a positive magnitude
	bearish := e.FeatureImportance([]float64{75, 0})
	require.NotEmpty(t, bearish)
	assert.Equal(t, "trend", bearish[0].Feature)
	assert.Greater(t, bearish[0].Impact, 0.0)

	assert.Empty(t, e.FeatureImportance([]float64{1}))
}

func TestResetRemovesArtifacts(t *testing.T) {
	dir := t.TempDir()
	e := New(testConfig(dir), logger.Nop())
	require.NoError(t, e.TrainAll(context.Background(), dataset(t, 60)))

	require.NoError(t, e.Reset())
	assert.Equal(t, Untrained, e.State())
	assert.NoFileExists(t, filepath.Join(dir, LinearFile))

	require.NoError(t, e.Reset())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "untrained", Untrained.String())
	assert.Equal(t, "trained", Trained.String())
	assert.Equal(t, "loaded", Loaded.String())
}
