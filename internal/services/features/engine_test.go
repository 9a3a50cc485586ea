package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/testsupport"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(nil)
	require.NoError(t, err)
	return e
}

func TestComputeDropsWarmupRows(t *testing.T) {
	e := newEngine(t)
	s := testsupport.RandomWalk(200, 1, 100, 0.01)

	rows := e.Compute(s)
	require.Len(t, rows, 200-e.Warmup())
	assert.Equal(t, s[e.Warmup()].Timestamp, rows[0].Timestamp)

	for _, r := range rows {
		assert.True(t, r.Finite())
		assert.Len(t, r.Values, len(Names))
	}
}

func TestComputeShortSeries(t *testing.T) {
	e := newEngine(t)
	assert.Empty(t, e.Compute(testsupport.RandomWalk(e.Warmup(), 1, 100, 0.01)))
	assert.Empty(t, e.Compute(nil))
	assert.Len(t, e.Compute(testsupport.RandomWalk(e.Warmup()+1, 1, 100, 0.01)), 1)
}

func TestComputeIsCausal(t *testing.T) {
	e := newEngine(t)
	s := testsupport.RandomWalk(300, 2, 100, 0.02)

	full := e.Compute(s)
	prefix := e.Compute(s[:180])

	require.NotEmpty(t, prefix)
	for i, r := range prefix {
		assert.Equal(t, full[i].Timestamp, r.Timestamp)
		assert.Equal(t, full[i].Values, r.Values, "row %d", i)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	e := newEngine(t)
	s := testsupport.RandomWalk(120, 4, 100, 0.01)
	assert.Equal(t, e.Compute(s), e.Compute(s))
}

func TestComputeDropsNonFiniteRows(t *testing.T) {
	e := newEngine(t)
	s := testsupport.RandomWalk(120, 4, 100, 0.01)
	// zero volume over a whole window makes vol_ratio 0/0
	for i := 80; i < 100; i++ {
		s[i].Volume = 0
	}

	rows := e.Compute(s)
	assert.Less(t, len(rows), 120-e.Warmup())
	for _, r := range rows {
		assert.False(t, math.IsNaN(r.Values[VolRatio]))
	}
}

func TestComputeKnownValues(t *testing.T) {
	e := newEngine(t)
	s := testsupport.Rising(80, 100, 0.01)

	rows := e.Compute(s)
	last := rows[len(rows)-1]

	assert.InDelta(t, 0.01, last.Values[PctChange1h], 1e-9)
	assert.InDelta(t, math.Pow(1.01, 24)-1, last.Values[PctChange24h], 1e-9)
	assert.InDelta(t, 1.01, last.Values[VolatilityRatio], 1e-9)
	assert.Greater(t, last.Values[PriceSMARatio], 1.0)
	assert.Greater(t, last.Values[RSI], 70.0)
}

func TestNewEngineRejectsUnknownFeature(t *testing.T) {
	_, err := NewEngine([]string{"sma_50", "moon_phase"})
	assert.Error(t, err)
}

func TestMatrix(t *testing.T) {
	e, err := NewEngine([]string{RSI, MACDHist})
	require.NoError(t, err)

	rows := e.Compute(testsupport.RandomWalk(100, 3, 100, 0.01))
	m, err := e.Matrix(rows)
	require.NoError(t, err)
	require.Len(t, m, len(rows))
	assert.Equal(t, []float64{rows[0].Values[RSI], rows[0].Values[MACDHist]}, m[0])
}
