package series

import (
	"sort"
	"time"

	"marketpulse/internal/domain/market_data"
)

// Merge combines historical and live candles into one ordered, de-duplicated,
// gap-filled series of at most targetSize candles.
//
// Candles observed later win on equal timestamps, and live candles are observed
// after historical ones. Invalid candles and missing grid slots (when interval > 0)
// are filled with a copy of the last valid candle; invalid leading candles are dropped.
func Merge(live, historical market_data.Series, targetSize int, interval time.Duration) market_data.Series {
	if targetSize <= 0 {
		return market_data.Series{}
	}

	all := make(market_data.Series, 0, len(historical)+len(live))
	for _, c := range historical {
		c.Timestamp = Normalize(c.Timestamp)
		all = append(all, c)
	}
	for _, c := range live {
		c.Timestamp = Normalize(c.Timestamp)
		all = append(all, c)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.Before(all[j].Timestamp)
	})

	deduped := all[:0]
	for _, c := range all {
		if n := len(deduped); n > 0 && deduped[n-1].Timestamp.Equal(c.Timestamp) {
			deduped[n-1] = c
			continue
		}
		deduped = append(deduped, c)
	}

	out := make(market_data.Series, 0, len(deduped))
	var (
		prev    market_data.Candle
		hasPrev bool
	)
	for _, c := range deduped {
		if !c.Valid() {
			if !hasPrev {
				continue
			}
			c = restamp(prev, c.Timestamp)
		}

		if hasPrev && interval > 0 {
			out = appendGap(out, prev, c.Timestamp, interval, targetSize)
		}

		out = append(out, c)
		prev, hasPrev = c, true
	}

	return out.Tail(targetSize)
}

// Normalize converts a timestamp to UTC and drops the monotonic clock reading
func Normalize(ts time.Time) time.Time {
	return ts.UTC().Round(0)
}

// appendGap fills grid slots strictly between prev and next, at most limit of them
func appendGap(out market_data.Series, prev market_data.Candle, next time.Time, interval time.Duration, limit int) market_data.Series {
	gap := next.Sub(prev.Timestamp)
	if gap <= interval {
		return out
	}

	missing := int((gap - 1) / interval)
	skip := 0
	if missing > limit {
		skip = missing - limit
	}

	for k := skip + 1; k <= missing; k++ {
		out = append(out, restamp(prev, prev.Timestamp.Add(time.Duration(k)*interval)))
	}
	return out
}

func restamp(c market_data.Candle, ts time.Time) market_data.Candle {
	c.Timestamp = ts
	return c
}
