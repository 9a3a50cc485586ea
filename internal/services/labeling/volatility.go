package labeling

import "math"

// Volatility is the exponentially weighted standard deviation of percentage returns
// with the given span (alpha = 2/(span+1)), using adjusted weights and the unbiased
// correction. Index 0 has no return and index 1 a single one, so both are NaN.
func Volatility(closes []float64, span int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) > 0 {
		out[0] = math.NaN()
	}
	if span < 1 {
		span = 1
	}

	decay := 1 - 2/float64(span+1)
	var sw, sw2, swx, swxx float64
	for i := 1; i < len(closes); i++ {
		r := closes[i]/closes[i-1] - 1

		sw = sw*decay + 1
		sw2 = sw2*decay*decay + 1
		swx = swx*decay + r
		swxx = swxx*decay + r*r

		denom := sw*sw - sw2
		if denom <= 0 {
			out[i] = math.NaN()
			continue
		}

		mean := swx / sw
		biased := swxx/sw - mean*mean
		if biased < 0 {
			biased = 0
		}
		out[i] = math.Sqrt(biased * sw * sw / denom)
	}
	return out
}
