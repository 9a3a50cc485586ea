package labeling

import (
	"time"

	"marketpulse/internal/domain/features"
	"marketpulse/internal/ml"
	"marketpulse/pkg/errors"
)

// Config controls labeling and class-balance checks
type Config struct {
	VolatilitySpan      int
	Barrier             BarrierConfig
	MinMinorityFraction float64
}

// Labeler turns feature rows into a labelled, scaled dataset
type Labeler struct {
	cfg Config
}

// NewLabeler creates a labeler
func NewLabeler(cfg Config) *Labeler {
	if cfg.VolatilitySpan <= 0 {
		cfg.VolatilitySpan = 100
	}
	if cfg.Barrier.Horizon <= 0 {
		cfg.Barrier = DefaultBarrierConfig()
	}
	return &Labeler{cfg: cfg}
}

// Horizon returns the forward window of the barrier scan
func (l *Labeler) Horizon() int {
	return l.cfg.Barrier.Horizon
}

// Label computes triple-barrier labels over the row closes
func (l *Labeler) Label(rows []features.Row) []features.Label {
	ts := make([]time.Time, len(rows))
	closes := make([]float64, len(rows))
	for i, r := range rows {
		ts[i] = r.Timestamp
		closes[i] = r.Close
	}
	return TripleBarrier(ts, closes, Volatility(closes, l.cfg.VolatilitySpan), l.cfg.Barrier)
}

// Prepare joins labels to rows by timestamp and fits the scaler on the labelled rows only
func (l *Labeler) Prepare(rows []features.Row, labels []features.Label, names []string) (*ml.Dataset, error) {
	byTime := features.LabelMap(labels)

	ds := &ml.Dataset{Features: append([]string(nil), names...)}
	for _, r := range rows {
		class, ok := byTime[r.Timestamp]
		if !ok {
			continue
		}
		vec, ok := r.Vector(names)
		if !ok {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "row %s lacks model features", r.Timestamp)
		}
		ds.Timestamps = append(ds.Timestamps, r.Timestamp)
		ds.Raw = append(ds.Raw, vec)
		ds.Y = append(ds.Y, class)
	}

	if len(ds.Y) == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "no labelled rows")
	}

	scaler, err := ml.FitRobustScaler(ds.Raw)
	if err != nil {
		return nil, err
	}
	ds.Scaler = scaler
	ds.X = scaler.Transform(ds.Raw)

	return ds, nil
}

// CheckBalance reports the class mix of ds with the configured minority floor
func (l *Labeler) CheckBalance(classes []int) (Balance, error) {
	return CheckBalance(classes, l.cfg.MinMinorityFraction)
}
