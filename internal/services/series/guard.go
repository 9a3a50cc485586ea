package series

import (
	"math"

	"marketpulse/internal/domain/market_data"
	"marketpulse/pkg/errors"
)

// frozenWindow is how many trailing closes must differ for the market to count as live
const frozenWindow = 5

// CheckHealth rejects series the pipeline must not process
func CheckHealth(s market_data.Series) error {
	last, ok := s.Last()
	if !ok {
		return errors.Wrap(errors.ErrDataQuality, "empty series")
	}
	if last.Close <= 0 {
		return errors.Wrapf(errors.ErrDataQuality, "last close is %v", last.Close)
	}
	for _, c := range s {
		if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			return errors.Wrapf(errors.ErrDataQuality, "non-finite close at %s", c.Timestamp)
		}
	}
	if frozen(s) {
		return errors.Wrap(errors.ErrDataQuality, "market frozen")
	}
	return nil
}

// frozen reports zero variance over the trailing window. A single candle has no variance to judge.
func frozen(s market_data.Series) bool {
	tail := s
	if len(tail) > frozenWindow {
		tail = tail[len(tail)-frozenWindow:]
	}
	if len(tail) < 2 {
		return false
	}
	for _, c := range tail[1:] {
		if c.Close != tail[0].Close {
			return false
		}
	}
	return true
}
