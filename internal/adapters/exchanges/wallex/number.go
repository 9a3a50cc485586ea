package wallex

import (
	"bytes"
	"strconv"

	"marketpulse/pkg/errors"
)

// number accepts both JSON numbers and numeric strings; Wallex uses either
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.Wrapf(errors.ErrDataQuality, "not a number: %q", data)
	}
	*n = number(v)
	return nil
}
