package series

import (
	"context"
	"time"

	"marketpulse/internal/domain/market_data"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Config controls merging and first-run history
type Config struct {
	MaxLength          int
	Interval           time.Duration
	SyntheticSize      int
	SyntheticBasePrice float64
	SyntheticSeed      int64
}

// Merger merges fresh candles into the persisted series
type Merger struct {
	store market_data.SeriesStore
	cfg   Config
	log   *logger.Logger
}

// NewMerger creates a series merger backed by store
func NewMerger(store market_data.SeriesStore, cfg Config, log *logger.Logger) *Merger {
	return &Merger{
		store: store,
		cfg:   cfg,
		log:   log.With("component", "series_merger"),
	}
}

// Merge loads history, merges live into it and persists the result.
// A corrupt store is reset and treated as empty; a failed save is logged only.
func (m *Merger) Merge(ctx context.Context, live market_data.Series) (market_data.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	historical, err := m.store.Load(ctx)
	if err != nil {
		m.log.Warnw("Discarding unreadable series store", "error", err)
		if resetErr := m.store.Reset(ctx); resetErr != nil {
			m.log.Warnw("Failed to reset series store", "error", resetErr)
		}
		historical = nil
	}

	if len(historical) == 0 && m.cfg.SyntheticSize > 0 {
		historical = m.synthetic(live)
		m.log.Infow("Generated synthetic history",
			"candles", len(historical),
			"anchor", firstClose(live, m.cfg.SyntheticBasePrice),
		)
	}

	merged := Merge(live, historical, m.cfg.MaxLength, m.cfg.Interval)
	if len(merged) == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "merged series is empty")
	}

	if err := m.store.Save(ctx, merged); err != nil {
		m.log.Warnw("Failed to persist merged series", "error", err, "candles", len(merged))
	}

	m.log.Debugw("Series merged",
		"live", len(live),
		"historical", len(historical),
		"merged", len(merged),
	)

	return merged, nil
}

func (m *Merger) synthetic(live market_data.Series) market_data.Series {
	end := time.Now().UTC().Truncate(m.cfg.Interval)
	if len(live) > 0 {
		end = live[0].Timestamp
		for _, c := range live {
			if c.Timestamp.Before(end) {
				end = c.Timestamp
			}
		}
	}

	return Synthetic(
		m.cfg.SyntheticSize,
		firstClose(live, m.cfg.SyntheticBasePrice),
		end,
		m.cfg.Interval,
		m.cfg.SyntheticSeed,
	)
}

// firstClose returns the earliest valid live close, or fallback
func firstClose(live market_data.Series, fallback float64) float64 {
	var (
		first market_data.Candle
		found bool
	)
	for _, c := range live {
		if !c.Valid() {
			continue
		}
		if !found || c.Timestamp.Before(first.Timestamp) {
			first, found = c, true
		}
	}
	if !found {
		return fallback
	}
	return first.Close
}
