// Package timeseries provides the time-indexed data model shared by the
// synchronization engine: single-channel signals, multi-channel tables,
// gap-preserving resampling, and affine index transforms. Missing samples
// are represented as NaN, never as zeros.
package timeseries

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Signal is an ordered sequence of (timestamp, value) samples for one channel.
// The index is strictly increasing. Values may be NaN where the channel had
// no observation at that timestamp.
type Signal struct {
	Name   string
	Index  []time.Time
	Values []float64
}

// NewSignal creates a signal after validating that the index is strictly
// increasing and matches the value count.
func NewSignal(name string, index []time.Time, values []float64) (*Signal, error) {
	if len(index) == 0 {
		return nil, ErrEmptyIndex
	}
	if len(index) != len(values) {
		return nil, fmt.Errorf("%w: %d timestamps, %d values", ErrLengthMismatch, len(index), len(values))
	}
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("%w: at position %d", ErrIndexNotIncreasing, i)
		}
	}
	return &Signal{Name: name, Index: index, Values: values}, nil
}

// Len returns the number of samples, including missing ones.
func (s *Signal) Len() int {
	return len(s.Index)
}

// FirstValid returns the timestamp of the first non-NaN sample.
func (s *Signal) FirstValid() (time.Time, bool) {
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			return s.Index[i], true
		}
	}
	return time.Time{}, false
}

// LastValid returns the timestamp of the last non-NaN sample.
func (s *Signal) LastValid() (time.Time, bool) {
	for i := len(s.Values) - 1; i >= 0; i-- {
		if !math.IsNaN(s.Values[i]) {
			return s.Index[i], true
		}
	}
	return time.Time{}, false
}

// Duration returns the elapsed time between the first and last valid sample.
func (s *Signal) Duration() (time.Duration, error) {
	first, ok := s.FirstValid()
	if !ok {
		return 0, ErrEmptyIndex
	}
	last, _ := s.LastValid()
	return last.Sub(first), nil
}

// DropMissing returns a compacted copy without NaN samples.
func (s *Signal) DropMissing() *Signal {
	index := make([]time.Time, 0, len(s.Index))
	values := make([]float64, 0, len(s.Values))
	for i, v := range s.Values {
		if !math.IsNaN(v) {
			index = append(index, s.Index[i])
			values = append(values, v)
		}
	}
	return &Signal{Name: s.Name, Index: index, Values: values}
}

// Slice returns a copy restricted to samples with from <= t <= to.
func (s *Signal) Slice(from, to time.Time) *Signal {
	lo := sort.Search(len(s.Index), func(i int) bool { return !s.Index[i].Before(from) })
	hi := sort.Search(len(s.Index), func(i int) bool { return s.Index[i].After(to) })
	index := make([]time.Time, hi-lo)
	values := make([]float64, hi-lo)
	copy(index, s.Index[lo:hi])
	copy(values, s.Values[lo:hi])
	return &Signal{Name: s.Name, Index: index, Values: values}
}

// Normalize scales the signal to [0, 1] over its observed range. Missing
// samples are ignored and stay missing. Fails on flat signals, since a
// normalized amplitude threshold would be meaningless for them.
func (s *Signal) Normalize() (*Signal, error) {
	valid := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 valid samples for %q", ErrTooFewSamples, s.Name)
	}

	lo := floats.Min(valid)
	hi := floats.Max(valid)
	if hi-lo < 1e-12 {
		return nil, fmt.Errorf("%w: %q", ErrConstantSignal, s.Name)
	}

	out := make([]float64, len(s.Values))
	for i, v := range s.Values {
		if math.IsNaN(v) {
			out[i] = math.NaN()
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return &Signal{Name: s.Name, Index: s.Index, Values: out}, nil
}

// InferFrequency estimates the native sampling rate in Hz as the inverse of
// the median inter-sample interval of the valid samples.
func (s *Signal) InferFrequency() (float64, error) {
	compact := s.DropMissing()
	if compact.Len() < 2 {
		return 0, fmt.Errorf("%w: need at least 2 valid samples for %q", ErrTooFewSamples, s.Name)
	}

	deltas := make([]float64, compact.Len()-1)
	for i := 1; i < compact.Len(); i++ {
		deltas[i-1] = float64(compact.Index[i].Sub(compact.Index[i-1]))
	}
	sort.Float64s(deltas)
	median := stat.Quantile(0.5, stat.Empirical, deltas, nil)
	if median <= 0 {
		return 0, fmt.Errorf("%w: at %q", ErrIndexNotIncreasing, s.Name)
	}
	return float64(time.Second) / median, nil
}

// NativeInterval returns the median inter-sample interval of the valid samples.
func (s *Signal) NativeInterval() (time.Duration, error) {
	freq, err := s.InferFrequency()
	if err != nil {
		return 0, err
	}
	return time.Duration(float64(time.Second) / freq), nil
}
