package training

import (
	"context"
	"time"

	"marketpulse/internal/domain/market_data"
	"marketpulse/internal/services/features"
	"marketpulse/internal/services/labeling"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Model is the ensemble as seen by an offline retrain
type Model interface {
	Reset() error
	TrainAll(ctx context.Context, ds *labeling.Dataset) error
	Trained() bool
}

// Result describes a finished retrain
type Result struct {
	Candles  int
	Rows     int
	Labelled int
	Balance  labeling.Balance
	Duration time.Duration
}

// Trainer rebuilds the models from the persisted series, discarding any saved artifacts
type Trainer struct {
	store            market_data.SeriesStore
	engine           *features.Engine
	labeler          *labeling.Labeler
	model            Model
	processingWindow int
	log              *logger.Logger
}

func NewTrainer(store market_data.SeriesStore, engine *features.Engine, labeler *labeling.Labeler, model Model, processingWindow int, log *logger.Logger) *Trainer {
	return &Trainer{
		store:            store,
		engine:           engine,
		labeler:          labeler,
		model:            model,
		processingWindow: processingWindow,
		log:              log.With("component", "trainer"),
	}
}

// Run validates the dataset before touching the saved models, so a failed retrain
// leaves the previous artifacts in place.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	s, err := t.store.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load series")
	}
	if t.processingWindow > 0 {
		s = s.Tail(t.processingWindow)
	}

	rows := t.engine.Compute(s)
	if len(rows) == 0 {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "%d candles produce no feature rows", len(s))
	}

	labels := t.labeler.Label(rows)
	ds, err := t.labeler.Prepare(rows, labels, t.engine.ModelFeatures())
	if err != nil {
		return nil, errors.Wrap(err, "prepare dataset")
	}
	balance, err := t.labeler.CheckBalance(ds.Y)
	if err != nil {
		return nil, err
	}

	if err := t.model.Reset(); err != nil {
		return nil, errors.Wrap(err, "reset models")
	}
	if err := t.model.TrainAll(ctx, ds); err != nil {
		return nil, errors.Wrap(err, "train models")
	}
	if !t.model.Trained() {
		return nil, errors.Wrap(errors.ErrModelState, "models not trained after retrain")
	}

	res := &Result{
		Candles:  len(s),
		Rows:     len(rows),
		Labelled: ds.Len(),
		Balance:  balance,
		Duration: time.Since(start),
	}
	t.log.Infow("Retrain complete",
		"candles", res.Candles,
		"labelled", res.Labelled,
		"positive", balance.Positive,
		"negative", balance.Negative,
		"duration", res.Duration,
	)
	return res, nil
}
