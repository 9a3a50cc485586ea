package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"marketpulse/internal/domain/market_data"
	"marketpulse/pkg/errors"
)

// Compile-time check
var _ market_data.SeriesStore = (*SeriesRepository)(nil)

const seriesSchema = `
	CREATE TABLE IF NOT EXISTS ohlcv_history (
		symbol    LowCardinality(String),
		timeframe LowCardinality(String),
		open_time DateTime('UTC'),
		open      Float64,
		high      Float64,
		low       Float64,
		close     Float64,
		volume    Float64,
		version   UInt64
	)
	ENGINE = ReplacingMergeTree(version)
	ORDER BY (symbol, timeframe, open_time)`

// SeriesRepository stores the merged series of one symbol/timeframe in ClickHouse.
// Rows are versioned so re-saving a candle replaces the previous copy.
type SeriesRepository struct {
	conn      driver.Conn
	symbol    string
	timeframe string
	maxLength int
}

// NewSeriesRepository creates a series repository scoped to symbol and timeframe
func NewSeriesRepository(conn driver.Conn, symbol, timeframe string, maxLength int) *SeriesRepository {
	return &SeriesRepository{
		conn:      conn,
		symbol:    symbol,
		timeframe: timeframe,
		maxLength: maxLength,
	}
}

// EnsureSchema creates the history table
func (r *SeriesRepository) EnsureSchema(ctx context.Context) error {
	if err := r.conn.Exec(ctx, seriesSchema); err != nil {
		return errors.Wrap(err, "failed to create ohlcv_history")
	}
	return nil
}

// Load returns the most recent maxLength candles in ascending order
func (r *SeriesRepository) Load(ctx context.Context) (market_data.Series, error) {
	var rows []market_data.Candle

	query := `
		SELECT open_time, open, high, low, close, volume
		FROM ohlcv_history FINAL
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY open_time DESC
		LIMIT $3`

	if err := r.conn.Select(ctx, &rows, query, r.symbol, r.timeframe, r.maxLength); err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "failed to load series: %v", err)
	}

	out := make(market_data.Series, len(rows))
	for i, c := range rows {
		c.Timestamp = c.Timestamp.UTC()
		out[len(rows)-1-i] = c
	}
	return out, nil
}

// Save upserts every candle of s
func (r *SeriesRepository) Save(ctx context.Context, s market_data.Series) error {
	if len(s) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO ohlcv_history (
			symbol, timeframe, open_time, open, high, low, close, volume, version
		)
	`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}

	version := uint64(time.Now().UnixNano())
	for _, c := range s {
		err := batch.Append(
			r.symbol, r.timeframe, c.Timestamp.UTC(),
			c.Open, c.High, c.Low, c.Close, c.Volume, version,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append candle")
		}
	}

	return batch.Send()
}

// Reset deletes all candles of the symbol/timeframe
func (r *SeriesRepository) Reset(ctx context.Context) error {
	err := r.conn.Exec(ctx,
		`ALTER TABLE ohlcv_history DELETE WHERE symbol = $1 AND timeframe = $2`,
		r.symbol, r.timeframe,
	)
	return errors.Wrap(err, "failed to reset series")
}
