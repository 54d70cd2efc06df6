package alignment

import (
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/RyanBlaney/shakealign/logging"
	"github.com/RyanBlaney/shakealign/timeseries"
)

// TimeshiftCalculator computes the constant time delta that, added to a
// target segment's timestamps, best aligns it with a reference segment.
// Both segments are resampled onto a common equidistant grid before the
// correlation so differing native sampling rates cannot bias the lag.
type TimeshiftCalculator struct {
	frequency float64
	logger    logging.Logger
}

// TimeshiftResult describes the best correlation lag between two segments.
type TimeshiftResult struct {
	// Shift is the signed time delta to add to the target's timestamps.
	Shift time.Duration `json:"shift"`

	// Lag is the winning lag in grid samples.
	Lag int `json:"lag"`

	// PeakCorrelation is the normalized correlation at the winning lag.
	PeakCorrelation float64 `json:"peak_correlation"`

	// GridStep is the common sampling interval used for the correlation.
	GridStep time.Duration `json:"grid_step"`
}

// NewTimeshiftCalculator creates a calculator correlating on an equidistant
// grid at the given frequency in Hz.
func NewTimeshiftCalculator(frequency float64) (*TimeshiftCalculator, error) {
	if frequency <= 0 {
		return nil, fmt.Errorf("%w: correlation frequency must be positive, got %v", ErrInvalidInput, frequency)
	}
	return &TimeshiftCalculator{
		frequency: frequency,
		logger: logging.WithFields(logging.Fields{
			"component": "timeshift_calculator",
		}),
	}, nil
}

// ComputeShift cross-correlates the target segment against the reference
// segment over the full combined lag range and returns the shift at the
// maximal correlation, breaking ties toward the smallest absolute lag.
// Correlating a segment with itself yields a zero shift.
func (tc *TimeshiftCalculator) ComputeShift(reference, target *timeseries.Signal) (*TimeshiftResult, error) {
	step := time.Duration(float64(time.Second) / tc.frequency)

	refSeries, refStart, err := tc.gridSeries(reference, step)
	if err != nil {
		return nil, err
	}
	tgtSeries, tgtStart, err := tc.gridSeries(target, step)
	if err != nil {
		return nil, err
	}

	correlations, energyRef, energyTgt := crossCorrelate(refSeries, tgtSeries)

	// Lag k aligns target sample m with reference sample m+k, so the lag
	// range [-(len(target)-1), len(reference)-1] covers the combined span.
	bestLag := 0
	bestCorr := math.Inf(-1)
	for lag := -(len(tgtSeries) - 1); lag <= len(refSeries)-1; lag++ {
		c := correlations[lagIndex(lag, len(correlations))]
		if c > bestCorr || (c == bestCorr && abs(lag) < abs(bestLag)) {
			bestCorr = c
			bestLag = lag
		}
	}

	peak := 0.0
	if energyRef > 0 && energyTgt > 0 {
		peak = bestCorr / math.Sqrt(energyRef*energyTgt)
	}

	shift := refStart.Sub(tgtStart) + time.Duration(bestLag)*step
	tc.logger.Debug("Computed segment timeshift", logging.Fields{
		"reference":        reference.Name,
		"target":           target.Name,
		"lag":              bestLag,
		"shift":            shift.String(),
		"peak_correlation": peak,
	})

	return &TimeshiftResult{
		Shift:           shift,
		Lag:             bestLag,
		PeakCorrelation: peak,
		GridStep:        step,
	}, nil
}

// gridSeries resamples a segment onto the common equidistant grid. Values
// are carried over by nearest-neighbor lookup bounded by the segment's
// native interval, so genuine gaps stay gaps; the remaining holes are
// zero-filled for the correlation only, never interpolated.
func (tc *TimeshiftCalculator) gridSeries(signal *timeseries.Signal, step time.Duration) ([]float64, time.Time, error) {
	first, ok := signal.FirstValid()
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: segment %q has no valid samples", ErrInvalidInput, signal.Name)
	}
	last, _ := signal.LastValid()

	tolerance, err := signal.NativeInterval()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if tolerance < step {
		tolerance = step
	}

	grid := timeseries.Grid(first, last, tc.frequency)
	if len(grid) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: segment %q spans no grid point", ErrInvalidInput, signal.Name)
	}
	resampled := signal.ResampleNearest(grid, tolerance)

	values := make([]float64, len(resampled.Values))
	for i, v := range resampled.Values {
		if math.IsNaN(v) {
			values[i] = 0
			continue
		}
		values[i] = v
	}
	return values, first, nil
}

// crossCorrelate computes the full linear cross-correlation of a against b
// through the frequency domain and returns the circular buffer together
// with both signal energies for peak normalization. The buffer is indexed
// through lagIndex.
func crossCorrelate(a, b []float64) ([]float64, float64, float64) {
	size := nextPowerOfTwo(len(a) + len(b) - 1)

	paddedA := make([]float64, size)
	paddedB := make([]float64, size)
	copy(paddedA, a)
	copy(paddedB, b)

	fftA := fft.FFTReal(paddedA)
	fftB := fft.FFTReal(paddedB)

	cross := make([]complex128, size)
	for i := range cross {
		cross[i] = fftA[i] * cmplx.Conj(fftB[i])
	}

	inverse := fft.IFFT(cross)
	correlations := make([]float64, size)
	for i, v := range inverse {
		correlations[i] = real(v)
	}

	return correlations, energy(a), energy(b)
}

// lagIndex maps a signed lag to its position in the circular correlation
// buffer: non-negative lags from the front, negative lags from the back.
func lagIndex(lag, size int) int {
	if lag >= 0 {
		return lag
	}
	return size + lag
}

func energy(data []float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v * v
	}
	return sum
}

func nextPowerOfTwo(n int) int {
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
