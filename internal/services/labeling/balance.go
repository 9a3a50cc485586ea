package labeling

import (
	"marketpulse/pkg/errors"
)

// Balance summarises a label distribution
type Balance struct {
	Positive int     `json:"positive"`
	Negative int     `json:"negative"`
	Minority float64 `json:"minority_fraction"`
}

// Total returns the number of labels
func (b Balance) Total() int {
	return b.Positive + b.Negative
}

// CheckBalance returns ErrClassImbalance when the minority class is under minFraction
func CheckBalance(classes []int, minFraction float64) (Balance, error) {
	var b Balance
	for _, c := range classes {
		if c == 1 {
			b.Positive++
		} else {
			b.Negative++
		}
	}

	if b.Total() == 0 {
		return b, errors.Wrap(errors.ErrInsufficientData, "no labels")
	}

	minority := b.Positive
	if b.Negative < minority {
		minority = b.Negative
	}
	b.Minority = float64(minority) / float64(b.Total())

	if b.Minority < minFraction {
		return b, errors.Wrapf(errors.ErrClassImbalance,
			"minority class is %.1f%% of %d labels (floor %.1f%%)",
			b.Minority*100, b.Total(), minFraction*100)
	}
	return b, nil
}
