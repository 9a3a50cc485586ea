package series

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/market_data"
	"marketpulse/internal/testsupport"
	"marketpulse/pkg/errors"
)

func hour(h int) time.Time {
	return testsupport.Epoch.Add(time.Duration(h) * time.Hour)
}

func candle(h int, close float64) market_data.Candle {
	return market_data.Candle{Timestamp: hour(h), Open: close, High: close, Low: close, Close: close, Volume: 10}
}

func assertStrictlyIncreasing(t *testing.T, s market_data.Series) {
	t.Helper()
	for i := 1; i < len(s); i++ {
		require.True(t, s[i].Timestamp.After(s[i-1].Timestamp), "index %d", i)
	}
}

func TestMergePropertiesOnRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for iter := 0; iter < 50; iter++ {
		var live, hist market_data.Series
		for i := 0; i < rng.Intn(60); i++ {
			live = append(live, candle(rng.Intn(120), 1+rng.Float64()*100))
		}
		for i := 0; i < rng.Intn(60); i++ {
			hist = append(hist, candle(rng.Intn(120), 1+rng.Float64()*100))
		}
		target := 1 + rng.Intn(80)

		for _, interval := range []time.Duration{0, time.Hour} {
			out := Merge(live, hist, target, interval)
			assert.LessOrEqual(t, len(out), target)
			assertStrictlyIncreasing(t, out)
			for _, c := range out {
				assert.True(t, c.Valid())
			}
		}
	}
}

func TestMergeSelfIsIdempotent(t *testing.T) {
	s := testsupport.RandomWalk(40, 3, 100, 0.01)

	shuffled := s.Clone()
	rand.New(rand.NewSource(5)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	out := Merge(shuffled, shuffled, 100, time.Hour)
	assert.Equal(t, s, out)

	again := Merge(out, out, 100, time.Hour)
	assert.Equal(t, out, again)
}

func TestMergeLiveWinsOnDuplicateTimestamp(t *testing.T) {
	hist := market_data.Series{candle(0, 10), candle(1, 11)}
	live := market_data.Series{candle(1, 99)}

	out := Merge(live, hist, 10, time.Hour)
	require.Len(t, out, 2)
	assert.Equal(t, 99.0, out[1].Close)
}

func TestMergeNormalizesTimezones(t *testing.T) {
	tehran := time.FixedZone("IRST", 3*3600+1800)
	hist := market_data.Series{candle(0, 10)}
	live := market_data.Series{candle(0, 20)}
	live[0].Timestamp = live[0].Timestamp.In(tehran)

	out := Merge(live, hist, 10, time.Hour)
	require.Len(t, out, 1)
	assert.Equal(t, 20.0, out[0].Close)
	assert.Equal(t, time.UTC, out[0].Timestamp.Location())
}

func TestMergeForwardFillsGaps(t *testing.T) {
	hist := market_data.Series{candle(0, 10), candle(3, 13)}

	out := Merge(nil, hist, 10, time.Hour)
	require.Len(t, out, 4)
	assert.Equal(t, []float64{10, 10, 10, 13}, out.Closes())
	assert.Equal(t, hour(1), out[1].Timestamp)
	assert.Equal(t, hour(2), out[2].Timestamp)
}

func TestMergeFillsInvalidRowsAndDropsLeading(t *testing.T) {
	bad := candle(0, 0)
	nan := candle(2, 12)
	nan.Close = math.NaN()

	out := Merge(nil, market_data.Series{bad, candle(1, 11), nan, candle(3, 13)}, 10, time.Hour)
	require.Len(t, out, 3)
	assert.Equal(t, hour(1), out[0].Timestamp)
	assert.Equal(t, []float64{11, 11, 13}, out.Closes())
}

func TestMergeTruncatesToTarget(t *testing.T) {
	s := testsupport.Rising(30, 100, 0.01)

	out := Merge(s, nil, 10, time.Hour)
	require.Len(t, out, 10)
	assert.Equal(t, s[20:], out)
}

func TestMergeCapsHugeGaps(t *testing.T) {
	hist := market_data.Series{candle(0, 10), candle(100000, 20)}

	out := Merge(nil, hist, 5, time.Hour)
	require.Len(t, out, 5)
	assert.Equal(t, hour(100000), out[4].Timestamp)
	assert.Equal(t, hour(99999), out[3].Timestamp)
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil, 10, time.Hour))
	assert.Empty(t, Merge(testsupport.Flat(5, 1), nil, 0, time.Hour))
}

func TestCheckHealth(t *testing.T) {
	assert.Error(t, CheckHealth(nil))
	assert.NoError(t, CheckHealth(testsupport.Rising(3, 1, 0.01)))
	assert.NoError(t, CheckHealth(testsupport.Flat(1, 50)))

	s := testsupport.Rising(3, 1, 0.01)
	s[2].Close = 0
	assert.Error(t, CheckHealth(s))

	s = testsupport.Rising(3, 1, 0.01)
	s[1].Close = math.NaN()
	assert.ErrorIs(t, CheckHealth(s), errors.ErrDataQuality)
}

func TestCheckHealthRejectsFrozenMarket(t *testing.T) {
	err := CheckHealth(testsupport.Flat(100, 50))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDataQuality)
	assert.Contains(t, err.Error(), "market frozen")

	// movement before the trailing window does not help
	s := append(testsupport.Rising(10, 40, 0.01), testsupport.Flat(5, 50)...)
	assert.Error(t, CheckHealth(s))

	// one move inside the window is enough
	s = testsupport.Flat(100, 50)
	s[97].Close = 50.5
	assert.NoError(t, CheckHealth(s))
}

func TestSyntheticAnchorsOnPrice(t *testing.T) {
	end := hour(100)
	s := Synthetic(50, 123.5, end, time.Hour, 42)

	require.Len(t, s, 50)
	last, _ := s.Last()
	assert.Equal(t, 123.5, last.Close)
	assert.Equal(t, end.Add(-time.Hour), last.Timestamp)
	assertStrictlyIncreasing(t, s)
	for _, c := range s {
		assert.True(t, c.Valid())
	}

	assert.Equal(t, s, Synthetic(50, 123.5, end, time.Hour, 42))
}
