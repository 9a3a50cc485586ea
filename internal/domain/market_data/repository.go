package market_data

import (
	"context"
)

// CandleSource is a market data connector. Implementations must return candles with
// UTC timestamps and strictly positive prices, or fail explicitly.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) (Series, error)
}

// SeriesStore persists the merged candle series between cycles and restarts
type SeriesStore interface {
	// Load returns the persisted series; an empty series when nothing was saved yet
	Load(ctx context.Context) (Series, error)

	// Save replaces the persisted series
	Save(ctx context.Context, s Series) error

	// Reset discards the persisted series (used when it is found corrupt)
	Reset(ctx context.Context) error
}
