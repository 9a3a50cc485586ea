package ml

import (
	"sort"

	"marketpulse/pkg/errors"
)

// RobustScaler centers on the median and scales by the interquartile range.
// Fitted parameters are persisted with the models.
type RobustScaler struct {
	Center []float64 `json:"center"`
	Scale  []float64 `json:"scale"`
}

// FitRobustScaler fits per-column median and IQR. A zero IQR scales by 1.
func FitRobustScaler(X [][]float64) (*RobustScaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, errors.Wrap(errors.ErrInsufficientData, "cannot fit scaler on empty matrix")
	}

	cols := len(X[0])
	s := &RobustScaler{
		Center: make([]float64, cols),
		Scale:  make([]float64, cols),
	}

	col := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			if len(row) != cols {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "row %d has %d columns, want %d", i, len(row), cols)
			}
			col[i] = row[j]
		}
		sort.Float64s(col)

		s.Center[j] = quantile(col, 0.5)
		iqr := quantile(col, 0.75) - quantile(col, 0.25)
		if iqr == 0 {
			iqr = 1
		}
		s.Scale[j] = iqr
	}

	return s, nil
}

// Width is the number of columns the scaler was fitted on
func (s *RobustScaler) Width() int {
	return len(s.Center)
}

// TransformRow scales one vector into a new slice
func (s *RobustScaler) TransformRow(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Center[j]) / s.Scale[j]
	}
	return out
}

// Transform scales every row of X into a new matrix
func (s *RobustScaler) Transform(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.TransformRow(row)
	}
	return out
}

// quantile uses linear interpolation between closest ranks of a sorted slice
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
