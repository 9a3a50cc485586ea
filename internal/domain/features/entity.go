package features

import (
	"math"
	"time"
)

// Row is the feature vector computed for one candle
type Row struct {
	Timestamp time.Time          `json:"timestamp"`
	Close     float64            `json:"close"`
	Values    map[string]float64 `json:"values"`
}

// Get returns the named feature and whether it exists
func (r Row) Get(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Finite reports whether every value in the row is a finite number
func (r Row) Finite() bool {
	if math.IsNaN(r.Close) || math.IsInf(r.Close, 0) {
		return false
	}
	for _, v := range r.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Vector extracts the named features in order. Missing features are an error
// reported through ok=false.
func (r Row) Vector(names []string) ([]float64, bool) {
	out := make([]float64, len(names))
	for i, n := range names {
		v, ok := r.Values[n]
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// Label is the triple-barrier class of an anchor timestamp:
// 1 when the upper barrier was touched first, 0 otherwise.
type Label struct {
	Timestamp time.Time `json:"timestamp"`
	Class     int       `json:"class"`
}

// LabelMap indexes labels by timestamp
func LabelMap(labels []Label) map[time.Time]int {
	out := make(map[time.Time]int, len(labels))
	for _, l := range labels {
		out[l.Timestamp] = l.Class
	}
	return out
}
