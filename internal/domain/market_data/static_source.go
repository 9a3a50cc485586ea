package market_data

import (
	"context"

	"marketpulse/pkg/errors"
)

// StaticSource serves a fixed series. Used for replay and offline runs.
type StaticSource struct {
	Series Series
	Err    error
}

var _ CandleSource = (*StaticSource)(nil)

// FetchCandles returns the last limit candles of the configured series
func (s *StaticSource) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) (Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	for _, c := range s.Series {
		if !c.Valid() {
			return nil, errors.Wrapf(errors.ErrDataQuality, "invalid candle at %s", c.Timestamp)
		}
	}
	return s.Series.Tail(limit).Clone(), nil
}
