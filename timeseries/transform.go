package timeseries

import "time"

// AffineTransform maps a timeline onto another clock:
//
//	t' = anchor + stretch*(t - anchor) + shift
//
// Stretch corrects a constant clock-rate difference, shift a constant offset.
// The anchor is the fixed point of the stretch and must be the same instant
// that was used when the transform parameters were estimated.
type AffineTransform struct {
	Stretch float64
	Shift   time.Duration
	Anchor  time.Time
}

// Identity returns the transform that leaves a timeline unchanged.
func Identity(anchor time.Time) AffineTransform {
	return AffineTransform{Stretch: 1, Anchor: anchor}
}

// Apply maps a single timestamp.
func (a AffineTransform) Apply(ts time.Time) time.Time {
	elapsed := time.Duration(float64(ts.Sub(a.Anchor)) * a.Stretch)
	return a.Anchor.Add(elapsed).Add(a.Shift)
}

// ApplyToSignal returns a copy of the signal on the transformed timeline.
func (a AffineTransform) ApplyToSignal(s *Signal) *Signal {
	index := make([]time.Time, len(s.Index))
	for i, ts := range s.Index {
		index[i] = a.Apply(ts)
	}
	values := append([]float64(nil), s.Values...)
	return &Signal{Name: s.Name, Index: index, Values: values}
}

// ApplyToTable returns a copy of the table on the transformed timeline.
// A positive stretch keeps the index strictly increasing.
func (a AffineTransform) ApplyToTable(t *Table) (*Table, error) {
	return t.TransformIndex(a.Apply)
}
