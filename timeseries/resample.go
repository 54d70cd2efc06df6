package timeseries

import (
	"math"
	"time"
)

// Grid builds an equidistant time index covering [start, end] at the given
// frequency in Hz. The last grid point is the greatest one not after end.
func Grid(start, end time.Time, freq float64) []time.Time {
	if freq <= 0 || end.Before(start) {
		return nil
	}
	step := time.Duration(float64(time.Second) / freq)
	if step <= 0 {
		return nil
	}
	n := int(end.Sub(start)/step) + 1
	index := make([]time.Time, n)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * step)
	}
	return index
}

// ResampleNearest maps the signal onto the grid by nearest-neighbor lookup.
// A grid point takes the value of the closest valid sample within tolerance,
// and NaN otherwise. This keeps genuine gaps as gaps: a tolerance at the
// signal's native sampling interval means no value ever bridges a hole wider
// than one native step.
func (s *Signal) ResampleNearest(grid []time.Time, tolerance time.Duration) *Signal {
	compact := s.DropMissing()
	values := make([]float64, len(grid))
	j := 0
	for i, ts := range grid {
		for j+1 < compact.Len() && absDuration(compact.Index[j+1].Sub(ts)) <= absDuration(compact.Index[j].Sub(ts)) {
			j++
		}
		if compact.Len() > 0 && absDuration(compact.Index[j].Sub(ts)) <= tolerance {
			values[i] = compact.Values[j]
		} else {
			values[i] = math.NaN()
		}
	}
	return &Signal{Name: s.Name, Index: grid, Values: values}
}

// Resample maps every channel of the table onto the grid with per-channel
// nearest-neighbor lookup. Each channel uses its own native interval as the
// fill tolerance so coarse channels do not fabricate samples on a fine grid.
func (t *Table) Resample(grid []time.Time) (*Table, error) {
	out, err := NewTable(grid)
	if err != nil {
		return nil, err
	}
	for _, name := range t.names {
		signal := &Signal{Name: name, Index: t.index, Values: t.columns[name]}
		tolerance, err := signal.NativeInterval()
		if err != nil {
			// Channel with fewer than two observations: nothing to carry over.
			empty := make([]float64, len(grid))
			for i := range empty {
				empty[i] = math.NaN()
			}
			if err := out.AddColumn(name, empty); err != nil {
				return nil, err
			}
			continue
		}
		resampled := signal.ResampleNearest(grid, tolerance)
		if err := out.AddColumn(name, resampled.Values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
