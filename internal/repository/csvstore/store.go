package csvstore

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"marketpulse/internal/domain/market_data"
	"marketpulse/pkg/errors"
)

// Header is the exact column layout of the series file
var Header = []string{"timestamp", "open", "high", "low", "close", "volume"}

// TimestampLayout is how candle timestamps are written (UTC, no zone)
const TimestampLayout = "2006-01-02 15:04:05"

// Store persists a candle series as a CSV file keyed by timestamp
type Store struct {
	path string
	mu   sync.Mutex
}

var _ market_data.SeriesStore = (*Store)(nil)

// New creates a CSV series store at path
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the series. A missing file is an empty series; a malformed file is an error.
func (s *Store) Load(ctx context.Context) (market_data.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return market_data.Series{}, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrUnavailable, err.Error())
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)

	header, err := r.Read()
	if err == io.EOF {
		return market_data.Series{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDataQuality, "series file header: %v", err)
	}
	for i, col := range Header {
		if header[i] != col {
			return nil, errors.Wrapf(errors.ErrDataQuality, "series file column %d is %q, want %q", i, header[i], col)
		}
	}

	var out market_data.Series
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(errors.ErrDataQuality, "series file line %d: %v", line, err)
		}

		c, err := parseRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrDataQuality, "series file line %d: %v", line, err)
		}
		out = append(out, c)
	}

	return out, nil
}

// Save atomically replaces the file with s
func (s *Store) Save(ctx context.Context, series market_data.Series) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create series dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".series-*.csv")
	if err != nil {
		return errors.Wrap(err, "failed to create temp series file")
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write header")
	}
	for _, c := range series {
		if err := w.Write(formatRecord(c)); err != nil {
			tmp.Close()
			return errors.Wrap(err, "failed to write candle")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to flush series file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close series file")
	}

	return os.Rename(tmp.Name(), s.path)
}

// Reset removes the file
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove series file")
	}
	return nil
}

func formatRecord(c market_data.Candle) []string {
	return []string{
		c.Timestamp.UTC().Format(TimestampLayout),
		strconv.FormatFloat(c.Open, 'g', -1, 64),
		strconv.FormatFloat(c.High, 'g', -1, 64),
		strconv.FormatFloat(c.Low, 'g', -1, 64),
		strconv.FormatFloat(c.Close, 'g', -1, 64),
		strconv.FormatFloat(c.Volume, 'g', -1, 64),
	}
}

func parseRecord(rec []string) (market_data.Candle, error) {
	ts, err := time.ParseInLocation(TimestampLayout, rec[0], time.UTC)
	if err != nil {
		return market_data.Candle{}, err
	}

	var vals [5]float64
	for i := range vals {
		vals[i], err = strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return market_data.Candle{}, err
		}
	}

	return market_data.Candle{
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}, nil
}
