package alignment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/shakealign/alignment/config"
	"github.com/RyanBlaney/shakealign/timeseries"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const testStep = 100 * time.Millisecond // 10 Hz test recordings

// shake describes a synthetic shake burst: count peaks of the given
// amplitude, the first at offset, spaced half a second apart.
type shake struct {
	offset time.Duration
	count  int
	amp    float64
}

// shakeValues renders shakes onto a zero baseline of n samples.
func shakeValues(n int, shakes []shake) []float64 {
	values := make([]float64, n)
	for _, s := range shakes {
		for p := 0; p < s.count; p++ {
			at := s.offset + time.Duration(p)*500*time.Millisecond
			idx := int(at / testStep)
			if idx > 0 && idx < n-1 {
				values[idx] = s.amp
			}
		}
	}
	return values
}

// shakeSignal builds a 10 Hz test recording with the given shakes.
func shakeSignal(t *testing.T, name string, start time.Time, length time.Duration, shakes []shake) *timeseries.Signal {
	t.Helper()
	n := int(length / testStep)
	index := make([]time.Time, n)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * testStep)
	}
	signal, err := timeseries.NewSignal(name, index, shakeValues(n, shakes))
	require.NoError(t, err)
	return signal
}

// warpIndex maps reference timestamps onto a skewed source clock so that the
// affine transform (stretch, shift) anchored at anchor maps them back:
//
//	t_src = anchor + ((t - anchor) - shift) / stretch
func warpIndex(index []time.Time, anchor time.Time, stretch float64, shift time.Duration) []time.Time {
	warped := make([]time.Time, len(index))
	for i, ts := range index {
		elapsed := ts.Sub(anchor) - shift
		warped[i] = anchor.Add(time.Duration(float64(elapsed) / stretch))
	}
	return warped
}

// testExtractorConfig keeps the detection windows small enough for short
// synthetic recordings.
func testExtractorConfig() config.ExtractorConfig {
	return config.ExtractorConfig{
		Threshold:         0.5,
		Distance:          time.Second,
		MinLength:         3,
		StartWindowLength: 30 * time.Second,
		EndWindowLength:   30 * time.Second,
		TimeBuffer:        time.Second,
	}
}

// triangleSignal builds a signal that is zero except for a triangular pulse
// of the given half-width centered at center.
func triangleSignal(t *testing.T, name string, start time.Time, n int, center, halfWidth time.Duration) *timeseries.Signal {
	t.Helper()
	index := make([]time.Time, n)
	values := make([]float64, n)
	for i := range index {
		index[i] = start.Add(time.Duration(i) * testStep)
		distance := index[i].Sub(start.Add(center))
		if distance < 0 {
			distance = -distance
		}
		if distance < halfWidth {
			values[i] = 1 - float64(distance)/float64(halfWidth)
		}
	}
	signal, err := timeseries.NewSignal(name, index, values)
	require.NoError(t, err)
	return signal
}

func durationDelta(t *testing.T, want, got, tolerance time.Duration) {
	t.Helper()
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqualf(t, diff, tolerance, "want %v, got %v (tolerance %v)", want, got, tolerance)
}
