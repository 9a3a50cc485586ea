package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	featuresdomain "marketpulse/internal/domain/features"
	"marketpulse/internal/domain/macro"
	"marketpulse/internal/domain/market_data"
	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/domain/sentiment"
	"marketpulse/internal/metrics"
	"marketpulse/internal/ml/ensemble"
	"marketpulse/internal/services/features"
	"marketpulse/internal/services/labeling"
	"marketpulse/internal/services/series"
	"marketpulse/internal/services/strategy"
	"marketpulse/internal/workers"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// SeriesMerger combines a live fetch with the persisted history
type SeriesMerger interface {
	Merge(ctx context.Context, live market_data.Series) (market_data.Series, error)
}

// Predictor is the ensemble as seen by the cycle
type Predictor interface {
	Trained() bool
	Window() int
	TrainAll(ctx context.Context, ds *labeling.Dataset) error
	PredictCombined(window [][]float64) (ensemble.Prediction, error)
	FeatureImportance(row []float64) []ensemble.Importance
}

// Config controls one analysis cycle
type Config struct {
	Symbol            string
	Timeframe         string
	FetchLimit        int
	ProcessingWindow  int
	FeatureWindow     int
	FetchTimeout      time.Duration
	ValidationHorizon time.Duration
	HistoryLimit      int
	AIBuyAbove        float64
	AISellBelow       float64

	Interval       time.Duration
	FailureBackoff time.Duration
	Enabled        bool
}

// Deps are the collaborators of the worker. Macro and Sentiment are optional.
type Deps struct {
	Source    market_data.CandleSource
	Merger    SeriesMerger
	Engine    *features.Engine
	Labeler   *labeling.Labeler
	Predictor Predictor
	Scorer    *strategy.Scorer
	Store     prediction.Repository
	Macro     macro.Provider
	Sentiment sentiment.Provider
	Publisher Publisher
}

// Worker runs the full analysis cycle for one symbol:
// fetch, merge, features, labels, train if needed, predict, grade past
// predictions, score, persist and publish.
type Worker struct {
	*workers.BaseWorker
	cfg  Config
	deps Deps
	now  func() time.Time
}

// NewWorker creates the analysis worker
func NewWorker(cfg Config, deps Deps, log *logger.Logger) *Worker {
	if cfg.FeatureWindow <= 0 {
		cfg.FeatureWindow = 150
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if deps.Publisher == nil {
		deps.Publisher = DiscardPublisher{}
	}

	return &Worker{
		BaseWorker: workers.NewBaseWorker("analysis_cycle", cfg.Interval, cfg.FailureBackoff, cfg.Enabled, log),
		cfg:        cfg,
		deps:       deps,
		now:        time.Now,
	}
}

// Run executes one cycle. Failures are published and returned so the scheduler
// applies its backoff; they never stop the worker.
func (w *Worker) Run(ctx context.Context) error {
	start := w.now()
	cycleID := uuid.NewString()
	log := w.Log().With("cycle_id", cycleID, "symbol", w.cfg.Symbol)

	bundle, err := w.cycle(ctx, log, cycleID, start)
	duration := time.Since(start)

	if err != nil && ctx.Err() != nil {
		log.Infow("Cycle interrupted by shutdown", "error", err)
		return ctx.Err()
	}

	metrics.RecordCycle(err)
	if err != nil {
		w.RecordError(err, duration)
		kind := metrics.FailureKind(err)
		log.ErrorWithContext(ctx, err, errors.CycleTags(cycleID, w.cfg.Symbol, kind))
		w.deps.Publisher.PublishFailure(Failure{
			CycleID:   cycleID,
			Timestamp: start.UTC(),
			Symbol:    w.cfg.Symbol,
			Kind:      kind,
			Message:   err.Error(),
		})
		return err
	}

	bundle.Duration = duration
	w.RecordRun(duration)
	w.deps.Publisher.Publish(*bundle)

	log.Infow("Cycle done",
		"consensus", bundle.Consensus,
		"ai", bundle.AI.Direction,
		"probability", bundle.AI.Probability,
		"score", bundle.Strategy.Score,
		"duration", duration,
	)
	return nil
}

func (w *Worker) cycle(ctx context.Context, log *logger.Logger, cycleID string, start time.Time) (*Bundle, error) {
	var warnings []string

	// 1. fetch: the only suspension point besides the providers
	stage := time.Now()
	live, err := w.fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := series.CheckHealth(live); err != nil {
		return nil, err
	}
	last, _ := live.Last()
	price := last.Close
	metrics.RecordStage("fetch", stage)

	// 2. merge and bound the processing window
	stage = time.Now()
	merged, err := w.deps.Merger.Merge(ctx, live)
	if err != nil {
		return nil, errors.Wrap(err, "merge series")
	}
	window := merged.Tail(w.cfg.ProcessingWindow)
	metrics.RecordStage("merge", stage)

	// 3. features
	stage = time.Now()
	rows := w.deps.Engine.Compute(window)
	if len(rows) < w.deps.Predictor.Window() {
		return nil, errors.Wrapf(errors.ErrInsufficientData, "%d feature rows, need %d", len(rows), w.deps.Predictor.Window())
	}
	metrics.RecordStage("features", stage)

	// 4. labels and training
	stage = time.Now()
	labels := w.deps.Labeler.Label(rows)
	ds, err := w.deps.Labeler.Prepare(rows, labels, w.deps.Engine.ModelFeatures())
	if err != nil {
		return nil, errors.Wrap(err, "prepare dataset")
	}
	balance, err := w.deps.Labeler.CheckBalance(ds.Y)
	switch {
	case err == nil:
		if err := w.deps.Predictor.TrainAll(ctx, ds); err != nil {
			return nil, errors.Wrap(err, "train ensemble")
		}
	case errors.Is(err, errors.ErrClassImbalance) && w.deps.Predictor.Trained():
		log.Warnw("Label classes imbalanced, keeping existing model",
			"positive", balance.Positive,
			"negative", balance.Negative,
		)
		warnings = append(warnings, "label classes imbalanced, model not retrained")
	default:
		return nil, err
	}
	metrics.RecordStage("train", stage)

	// 5. predict
	stage = time.Now()
	matrix, err := w.deps.Engine.Matrix(rows[len(rows)-w.deps.Predictor.Window():])
	if err != nil {
		return nil, err
	}
	pred, err := w.deps.Predictor.PredictCombined(matrix)
	if err != nil {
		log.Warnw("Prediction failed, using neutral", "error", err)
		warnings = append(warnings, "prediction unavailable")
		pred = ensemble.Neutral()
	}
	aiDirection := strategy.AIDirection(pred.Probability, w.cfg.AIBuyAbove, w.cfg.AISellBelow)
	importance := w.deps.Predictor.FeatureImportance(matrix[len(matrix)-1])
	metrics.RecordStage("predict", stage)

	// 6. grade past predictions, then record this one
	resolved, err := w.deps.Store.ValidatePastPredictions(ctx, price, w.cfg.ValidationHorizon)
	if err != nil {
		return nil, errors.Wrap(err, "validate predictions")
	}
	if resolved > 0 {
		log.Infow("Graded past predictions", "count", resolved)
	}
	if aiDirection != prediction.ActionWait {
		if _, err := w.deps.Store.AddPrediction(ctx, w.cfg.Symbol, prediction.Direction(aiDirection), pred.Probability, price); err != nil {
			return nil, errors.Wrap(err, "record prediction")
		}
	}

	// 7. providers degrade to neutral
	snapshot, err := w.macroSnapshot(ctx)
	if err != nil {
		log.Warnw("Macro snapshot unavailable", "error", err)
		warnings = append(warnings, "macro data unavailable")
	}
	news, err := w.sentiment(ctx)
	if err != nil {
		log.Warnw("Sentiment unavailable", "error", err)
		warnings = append(warnings, "news sentiment unavailable")
	}

	// 8. strategy and consensus
	latest := rows[len(rows)-1]
	result := w.deps.Scorer.Score(&latest, snapshot, news.Score)
	consensus := strategy.Consensus(result.Action, aiDirection)

	if _, err := w.deps.Store.SaveSignal(ctx, w.cfg.Symbol, consensus, result.Score, price); err != nil {
		return nil, errors.Wrap(err, "save signal")
	}

	history, err := w.deps.Store.History(ctx, w.cfg.HistoryLimit)
	if err != nil {
		return nil, errors.Wrap(err, "load history")
	}
	accuracy, err := w.deps.Store.Accuracy(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load accuracy")
	}
	metrics.PredictionAccuracy.WithLabelValues(w.cfg.Symbol).Set(accuracy)

	b := &Bundle{
		CycleID:   cycleID,
		Timestamp: start.UTC(),
		Symbol:    w.cfg.Symbol,
		Price:     price,
		Features:  tailRows(rows, w.cfg.FeatureWindow),
		Strategy:  result,
		AI: AIResult{
			Direction:    aiDirection,
			Probability:  pred.Probability,
			SequenceProb: pred.SequenceProb,
			LinearProb:   pred.LinearProb,
		},
		Consensus:  consensus,
		Sentiment:  news,
		Macro:      snapshot,
		History:    history,
		Accuracy:   accuracy,
		Importance: importance,
		Warnings:   warnings,
	}
	b.Report = BuildReport(*b)
	return b, nil
}

func (w *Worker) fetch(ctx context.Context) (market_data.Series, error) {
	fctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	live, err := w.deps.Source.FetchCandles(fctx, w.cfg.Symbol, w.cfg.Timeframe, w.cfg.FetchLimit)
	if err != nil {
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, errors.Wrapf(errors.ErrTimeout, "fetch candles after %s: %v", w.cfg.FetchTimeout, err)
		}
		return nil, errors.Wrap(err, "fetch candles")
	}
	return live, nil
}

func (w *Worker) macroSnapshot(ctx context.Context) (macro.Snapshot, error) {
	if w.deps.Macro == nil {
		return macro.Snapshot{}, nil
	}
	mctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	snap, err := w.deps.Macro.Snapshot(mctx)
	if err != nil {
		return macro.Snapshot{}, err
	}
	if snap == nil {
		snap = macro.Snapshot{}
	}
	return snap, nil
}

func (w *Worker) sentiment(ctx context.Context) (sentiment.Summary, error) {
	if w.deps.Sentiment == nil {
		return sentiment.Neutral(), nil
	}
	sctx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	summary, err := w.deps.Sentiment.Summary(sctx)
	if err != nil {
		return sentiment.Neutral(), err
	}
	return summary, nil
}

func tailRows(rows []featuresdomain.Row, n int) []featuresdomain.Row {
	if len(rows) > n {
		rows = rows[len(rows)-n:]
	}
	return append([]featuresdomain.Row(nil), rows...)
}
