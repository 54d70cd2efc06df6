package timeseries_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/shakealign/timeseries"
)

// TestGrid verifies equidistant index construction.
func TestGrid(t *testing.T) {
	grid := timeseries.Grid(testStart, testStart.Add(time.Second), 10)
	require.Len(t, grid, 11)
	assert.Equal(t, testStart, grid[0])
	assert.Equal(t, testStart.Add(time.Second), grid[10])

	assert.Nil(t, timeseries.Grid(testStart, testStart.Add(-time.Second), 10))
	assert.Nil(t, timeseries.Grid(testStart, testStart.Add(time.Second), 0))
}

// TestResampleNearest_GapPolicy verifies that nearest-neighbor resampling
// never carries a value across a gap wider than the tolerance.
func TestResampleNearest_GapPolicy(t *testing.T) {
	// 1 Hz signal with a 5 s hole between the two halves.
	index := []time.Time{
		testStart,
		testStart.Add(1 * time.Second),
		testStart.Add(2 * time.Second),
		testStart.Add(7 * time.Second),
		testStart.Add(8 * time.Second),
	}
	signal, err := timeseries.NewSignal("s", index, []float64{1, 2, 3, 4, 5})
	require.NoError(t, err)

	grid := timeseries.Grid(testStart, testStart.Add(8*time.Second), 1)
	resampled := signal.ResampleNearest(grid, time.Second)

	require.Len(t, resampled.Values, 9)
	assert.Equal(t, []float64{1, 2, 3}, resampled.Values[:3])
	// Grid points inside the hole stay undefined.
	assert.True(t, math.IsNaN(resampled.Values[4]))
	assert.True(t, math.IsNaN(resampled.Values[5]))
	assert.Equal(t, 4.0, resampled.Values[7])
	assert.Equal(t, 5.0, resampled.Values[8])
}

// TestResampleNearest_OffsetGrid verifies nearest selection between samples.
func TestResampleNearest_OffsetGrid(t *testing.T) {
	index := evenIndex(testStart, 4, time.Second)
	signal, err := timeseries.NewSignal("s", index, []float64{10, 20, 30, 40})
	require.NoError(t, err)

	grid := timeseries.Grid(testStart.Add(400*time.Millisecond), testStart.Add(3*time.Second), 1)
	resampled := signal.ResampleNearest(grid, time.Second)

	// 0.4s is closer to 0s, 1.4s closer to 1s, and so on.
	assert.Equal(t, []float64{10, 20, 30}, resampled.Values)
}

// TestTable_Resample verifies per-channel tolerances: each channel fills at
// most one of its own native intervals, so holes stay holes.
func TestTable_Resample(t *testing.T) {
	index := evenIndex(testStart, 11, time.Second)
	full := make([]float64, 11)
	holed := make([]float64, 11)
	for i := range full {
		full[i] = float64(i)
		holed[i] = float64(i)
	}
	// Same native rate, but nothing observed between 2 s and 8 s.
	for i := 3; i < 8; i++ {
		holed[i] = math.NaN()
	}

	table, err := timeseries.NewTable(index)
	require.NoError(t, err)
	require.NoError(t, table.AddColumn("full", full))
	require.NoError(t, table.AddColumn("holed", holed))

	grid := timeseries.Grid(testStart, testStart.Add(10*time.Second), 2)
	resampled, err := table.Resample(grid)
	require.NoError(t, err)

	fullOut, err := resampled.Column("full")
	require.NoError(t, err)
	holedOut, err := resampled.Column("holed")
	require.NoError(t, err)

	// Grid point at 5 s: the full channel has a sample, the holed one is
	// more than its native interval away from any observation.
	assert.Equal(t, 5.0, fullOut.Values[10])
	assert.True(t, math.IsNaN(holedOut.Values[10]))
	assert.Equal(t, 2.0, holedOut.Values[4])
	assert.Equal(t, 8.0, holedOut.Values[16])
}

// TestAffineTransform verifies stretch and shift application around the anchor.
func TestAffineTransform(t *testing.T) {
	transform := timeseries.AffineTransform{
		Stretch: 2.0,
		Shift:   time.Second,
		Anchor:  testStart,
	}

	mapped := transform.Apply(testStart.Add(10 * time.Second))
	assert.Equal(t, testStart.Add(21*time.Second), mapped)

	identity := timeseries.Identity(testStart)
	assert.Equal(t, testStart.Add(time.Minute), identity.Apply(testStart.Add(time.Minute)))
}
