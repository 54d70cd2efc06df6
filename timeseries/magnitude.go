package timeseries

import (
	"fmt"
	"math"
)

// Magnitude computes the Euclidean magnitude over a subset of channels,
// typically the three axes of an accelerometer, producing a channel suitable
// as a shake reference. NaN contributions are skipped; a row where every
// contributing channel is missing stays missing.
func Magnitude(t *Table, cols []string, name string) (*Signal, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: no columns given for magnitude", ErrUnknownColumn)
	}
	series := make([][]float64, len(cols))
	for i, col := range cols {
		values, ok := t.columns[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		series[i] = values
	}

	out := make([]float64, t.NumRows())
	for row := range out {
		sum := 0.0
		seen := false
		for _, values := range series {
			v := values[row]
			if math.IsNaN(v) {
				continue
			}
			sum += v * v
			seen = true
		}
		if !seen {
			out[row] = math.NaN()
			continue
		}
		out[row] = math.Sqrt(sum)
	}
	return &Signal{Name: name, Index: t.index, Values: out}, nil
}
