package ensemble

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"marketpulse/internal/ml"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// State is the lifecycle state of the ensemble
type State int

const (
	Untrained State = iota
	Trained
	Loaded
)

func (s State) String() string {
	switch s {
	case Trained:
		return "trained"
	case Loaded:
		return "loaded"
	default:
		return "untrained"
	}
}

// Artifact file names under the model directory
const (
	SequenceFile  = "sequence.json"
	LinearFile    = "linear.json"
	AuxiliaryFile = "auxiliary.json"
)

// TopImportances is the number of features FeatureImportance returns
const TopImportances = 5

// Config parameterises the ensemble
type Config struct {
	ModelDir       string
	Features       []string
	Window         int
	SequenceWeight float64
	LinearWeight   float64

	Hidden       int
	Epochs       int
	LearningRate float64
	BatchSize    int
	BoostRounds  int
	Seed         int64

	// SequenceONNXPath replaces the native sequence model with an exported ONNX graph
	SequenceONNXPath string
	ONNXLibraryPath  string
}

// Prediction is the blended ensemble output
type Prediction struct {
	Direction    int     `json:"direction"`
	Probability  float64 `json:"probability"`
	SequenceProb float64 `json:"sequence_prob"`
	LinearProb   float64 `json:"linear_prob"`
}

// Neutral is returned whenever the ensemble cannot score
func Neutral() Prediction {
	return Prediction{Direction: 0, Probability: 0.5, SequenceProb: 0.5, LinearProb: 0.5}
}

// Importance is the magnitude of one feature's contribution to the auxiliary model's log-odds
type Importance struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}

// Ensemble owns the sequence, linear and auxiliary models and their shared scaler
type Ensemble struct {
	cfg Config
	log *logger.Logger

	mu       sync.RWMutex
	state    State
	scaler   *ml.RobustScaler
	sequence ml.SequenceModel
	linear   *ml.Logistic
	aux      *ml.StumpBooster
	onnx     *ml.ONNXSequenceModel
}

// New creates an untrained ensemble
func New(cfg Config, log *logger.Logger) *Ensemble {
	if cfg.Window <= 0 {
		cfg.Window = 24
	}
	if cfg.SequenceWeight == 0 && cfg.LinearWeight == 0 {
		cfg.SequenceWeight, cfg.LinearWeight = 0.7, 0.3
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
	if cfg.BoostRounds <= 0 {
		cfg.BoostRounds = 100
	}

	return &Ensemble{
		cfg: cfg,
		log: log.With("component", "ensemble"),
	}
}

// State returns the current lifecycle state
func (e *Ensemble) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Trained reports whether the ensemble can score
func (e *Ensemble) Trained() bool {
	return e.State() != Untrained
}

// Window is the number of rows the sequence model reads
func (e *Ensemble) Window() int {
	return e.cfg.Window
}

// Features returns the model input names, in order
func (e *Ensemble) Features() []string {
	return append([]string(nil), e.cfg.Features...)
}

func (e *Ensemble) path(name string) string {
	return filepath.Join(e.cfg.ModelDir, name)
}

// Load restores all artifacts. Any failure leaves the ensemble untrained.
func (e *Ensemble) Load() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked()
}

func (e *Ensemble) loadLocked() error {
	var linear ml.Logistic
	art, err := ml.LoadArtifact(e.path(LinearFile), ml.KindLinear, e.cfg.Features, e.cfg.Window, &linear)
	if err != nil {
		return err
	}

	var aux ml.StumpBooster
	if _, err := ml.LoadArtifact(e.path(AuxiliaryFile), ml.KindAuxiliary, e.cfg.Features, e.cfg.Window, &aux); err != nil {
		return err
	}

	sequence, err := e.loadSequence()
	if err != nil {
		return err
	}

	e.scaler = art.Scaler
	e.linear = &linear
	e.aux = &aux
	e.sequence = sequence
	e.state = Loaded
	return nil
}

func (e *Ensemble) loadSequence() (ml.SequenceModel, error) {
	if e.cfg.SequenceONNXPath != "" {
		return e.loadONNX()
	}

	var rnn ml.RecurrentModel
	if _, err := ml.LoadArtifact(e.path(SequenceFile), ml.KindSequence, e.cfg.Features, e.cfg.Window, &rnn); err != nil {
		return nil, err
	}
	if rnn.Inputs != len(e.cfg.Features) {
		return nil, errors.Wrapf(errors.ErrModelState, "sequence model has %d inputs, want %d", rnn.Inputs, len(e.cfg.Features))
	}
	return &rnn, nil
}

func (e *Ensemble) loadONNX() (ml.SequenceModel, error) {
	if e.onnx != nil {
		return e.onnx, nil
	}
	m, err := ml.LoadONNXSequenceModel(e.cfg.SequenceONNXPath, e.cfg.ONNXLibraryPath, e.cfg.Features, e.cfg.Window)
	if err != nil {
		return nil, err
	}
	e.onnx = m
	return m, nil
}

// TrainAll restores the persisted models when all of them match the current schema,
// and otherwise trains the three models on ds and persists them.
func (e *Ensemble) TrainAll(ctx context.Context, ds *ml.Dataset) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != Untrained {
		return nil
	}

	err := e.loadLocked()
	if err == nil {
		e.log.Infow("Restored models from artifacts", "dir", e.cfg.ModelDir, "features", e.cfg.Features, "window", e.cfg.Window)
		return nil
	}
	e.log.Warnw("Model artifacts unusable, training", "error", err)

	return e.trainLocked(ctx, ds)
}

func (e *Ensemble) trainLocked(ctx context.Context, ds *ml.Dataset) error {
	w := e.cfg.Window
	n := ds.Len()
	if n <= w {
		return errors.Wrapf(errors.ErrInsufficientData, "need more than %d labelled rows, have %d", w, n)
	}
	if ds.Scaler == nil || ds.Scaler.Width() != len(e.cfg.Features) {
		return errors.Wrap(errors.ErrInvalidInput, "dataset scaler does not match model features")
	}

	windows := make([][][]float64, 0, n-w)
	flat := make([][]float64, 0, n-w)
	y := make([]int, 0, n-w)
	for i := w; i < n; i++ {
		windows = append(windows, ds.X[i-w:i])
		flat = append(flat, ds.X[i])
		y = append(y, ds.Y[i])
	}

	var sequence ml.SequenceModel
	var rnn *ml.RecurrentModel
	if e.cfg.SequenceONNXPath != "" {
		m, err := e.loadONNX()
		if err != nil {
			e.log.Warnw("ONNX sequence model unavailable, training native model", "path", e.cfg.SequenceONNXPath, "error", err)
		} else {
			sequence = m
		}
	}
	if sequence == nil {
		var err error
		rnn, err = ml.TrainRecurrent(ctx, windows, y, ml.RecurrentConfig{
			Hidden:       e.cfg.Hidden,
			Epochs:       e.cfg.Epochs,
			LearningRate: e.cfg.LearningRate,
			BatchSize:    e.cfg.BatchSize,
			Seed:         e.cfg.Seed,
		})
		if err != nil {
			return errors.Wrap(err, "failed to train sequence model")
		}
		sequence = rnn
	}

	linear, err := ml.TrainLogistic(flat, y, ml.LogisticConfig{L2: 1e-3})
	if err != nil {
		return errors.Wrap(err, "failed to train linear model")
	}

	aux, err := ml.TrainStumpBooster(flat, y, ml.BoostConfig{Rounds: e.cfg.BoostRounds})
	if err != nil {
		return errors.Wrap(err, "failed to train auxiliary model")
	}

	e.scaler = ds.Scaler
	e.sequence = sequence
	e.linear = linear
	e.aux = aux
	e.state = Trained

	e.log.Infow("Trained ensemble",
		"examples", len(y),
		"window", w,
		"features", e.cfg.Features,
		"onnx_sequence", rnn == nil,
	)

	if err := e.persist(rnn); err != nil {
		e.log.Warnw("Failed to persist model artifacts", "dir", e.cfg.ModelDir, "error", err)
	}
	return nil
}

func (e *Ensemble) persist(rnn *ml.RecurrentModel) error {
	if rnn != nil {
		if err := ml.SaveArtifact(e.path(SequenceFile), ml.KindSequence, e.cfg.Features, e.cfg.Window, e.scaler, rnn); err != nil {
			return err
		}
	}
	if err := ml.SaveArtifact(e.path(LinearFile), ml.KindLinear, e.cfg.Features, e.cfg.Window, e.scaler, e.linear); err != nil {
		return err
	}
	return ml.SaveArtifact(e.path(AuxiliaryFile), ml.KindAuxiliary, e.cfg.Features, e.cfg.Window, e.scaler, e.aux)
}

// PredictCombined blends the sequence model over the last Window rows with the linear
// model over the last row. window holds raw feature vectors, oldest first.
// Short windows and an untrained ensemble yield Neutral with no error.
func (e *Ensemble) PredictCombined(window [][]float64) (Prediction, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == Untrained || len(window) < e.cfg.Window {
		return Neutral(), nil
	}

	tail := window[len(window)-e.cfg.Window:]
	for i, row := range tail {
		if len(row) != e.scaler.Width() {
			return Neutral(), errors.Wrapf(errors.ErrModelState, "row %d has %d features, scaler expects %d", i, len(row), e.scaler.Width())
		}
	}
	scaled := e.scaler.Transform(tail)

	pA, err := e.sequence.PredictProba(scaled)
	if err != nil {
		return Neutral(), errors.Wrap(err, "sequence model failed")
	}
	pB := e.linear.PredictProba(scaled[len(scaled)-1])

	p := Blend(pA, pB, e.cfg.SequenceWeight, e.cfg.LinearWeight)
	return Prediction{
		Direction:    Direction(p),
		Probability:  p,
		SequenceProb: pA,
		LinearProb:   pB,
	}, nil
}

// Blend is wA*pA + wB*pB clamped to [0,1]; a non-finite result is neutral
func Blend(pA, pB, wA, wB float64) float64 {
	p := wA*pA + wB*pB
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0.5
	}
	return math.Min(math.Max(p, 0), 1)
}

// Direction is 1 iff p >= 0.5
func Direction(p float64) int {
	if p >= 0.5 {
		return 1
	}
	return 0
}

// FeatureImportance ranks the features of one raw row by the absolute Shapley value
// of the auxiliary model. It returns an empty slice on any failure.
func (e *Ensemble) FeatureImportance(row []float64) (out []Importance) {
	out = []Importance{}

	defer func() {
		if r := recover(); r != nil {
			e.log.Warnw("Feature importance panicked", "panic", r)
			out = []Importance{}
		}
	}()

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.state == Untrained || e.aux == nil || len(row) != e.scaler.Width() {
		return out
	}

	phi, err := e.aux.Contributions(e.scaler.TransformRow(row))
	if err != nil {
		e.log.Debugw("Feature importance unavailable", "error", err)
		return out
	}

	for j, v := range phi {
		out = append(out, Importance{Feature: e.cfg.Features[j], Impact: math.Abs(v)})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Impact > out[b].Impact
	})
	if len(out) > TopImportances {
		out = out[:TopImportances]
	}
	return out
}

// Reset forgets the in-memory models and removes the persisted artifacts
func (e *Ensemble) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = Untrained
	e.scaler, e.sequence, e.linear, e.aux = nil, nil, nil, nil

	for _, name := range []string{SequenceFile, LinearFile, AuxiliaryFile} {
		if err := os.Remove(e.path(name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to remove %s", name)
		}
	}
	return nil
}

// Close releases the ONNX session, if any
func (e *Ensemble) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.onnx != nil {
		e.onnx.Destroy()
		e.onnx = nil
	}
}
