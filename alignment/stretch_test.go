package alignment_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/shakealign/alignment"
	"github.com/RyanBlaney/shakealign/timeseries"
)

func newTestStretchCalculator(t *testing.T) *alignment.StretchCalculator {
	t.Helper()
	extractor, err := alignment.NewShakeExtractor(testExtractorConfig())
	require.NoError(t, err)
	calculator, err := alignment.NewStretchCalculator(extractor, 10, 0)
	require.NoError(t, err)
	return calculator
}

// TestStretchCalculator_IdentitySource verifies that a source identical to
// the reference yields a stretch of one and a zero shift.
func TestStretchCalculator_IdentitySource(t *testing.T) {
	reference := shakeSignal(t, "ref", testStart, 2*time.Minute, []shake{
		{offset: 5 * time.Second, count: 5, amp: 1.0},
		{offset: 110 * time.Second, count: 5, amp: 1.0},
	})
	twin, err := timeseries.NewSignal("twin", reference.Index, reference.Values)
	require.NoError(t, err)

	result, err := newTestStretchCalculator(t).Compute(reference, twin, testStart)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, result.Stretch, 1e-12)
	durationDelta(t, 0, result.Shift, time.Millisecond)
	durationDelta(t, 0, result.Residual, time.Millisecond)
	assert.NotNil(t, result.ReferenceSegments)
	assert.NotNil(t, result.SourceSegments)
}

// TestStretchCalculator_RecoversDrift injects a known clock skew and offset
// into a warped copy of the reference and verifies both are recovered.
func TestStretchCalculator_RecoversDrift(t *testing.T) {
	const stretch = 1.01
	shift := -2 * time.Second

	reference := shakeSignal(t, "ref", testStart, 2*time.Minute, []shake{
		{offset: 5 * time.Second, count: 5, amp: 1.0},
		{offset: 110 * time.Second, count: 5, amp: 1.0},
	})

	// A recording whose clock runs slow and late: the affine transform
	// anchored at the reference start maps it back onto the reference.
	warped := warpIndex(reference.Index, testStart, stretch, shift)
	source, err := timeseries.NewSignal("skewed", warped, reference.Values)
	require.NoError(t, err)

	result, err := newTestStretchCalculator(t).Compute(reference, source, testStart)
	require.NoError(t, err)

	assert.InDelta(t, stretch, result.Stretch, 2.5e-3)
	durationDelta(t, shift, result.Shift, 150*time.Millisecond)
	durationDelta(t, 0, result.Residual, 100*time.Millisecond)

	// The recovered transform must map the source's shake times back onto
	// the reference's shake times.
	transform := timeseries.AffineTransform{
		Stretch: result.Stretch,
		Shift:   result.Shift,
		Anchor:  testStart,
	}
	sourceShake := warpIndex([]time.Time{testStart.Add(5 * time.Second)}, testStart, stretch, shift)[0]
	mapped := transform.Apply(sourceShake)
	durationDelta(t, 5*time.Second, mapped.Sub(testStart), 150*time.Millisecond)
}

// TestStretchCalculator_MissingSegment verifies that a source without an
// end-window shake is rejected, while whatever was detected stays available
// for diagnosis.
func TestStretchCalculator_MissingSegment(t *testing.T) {
	reference := shakeSignal(t, "ref", testStart, 2*time.Minute, []shake{
		{offset: 5 * time.Second, count: 5, amp: 1.0},
		{offset: 110 * time.Second, count: 5, amp: 1.0},
	})
	noEnd := shakeSignal(t, "broken", testStart, 2*time.Minute, []shake{
		{offset: 5 * time.Second, count: 5, amp: 1.0},
	})

	result, err := newTestStretchCalculator(t).Compute(reference, noEnd, testStart)
	assert.ErrorIs(t, err, alignment.ErrSegmentNotFound)

	require.NotNil(t, result)
	require.NotNil(t, result.SourceSegments)
	assert.NotNil(t, result.SourceSegments.First)
	assert.Nil(t, result.SourceSegments.Second)
	assert.NotNil(t, result.SourceSegments.Normalized)
	require.NotNil(t, result.ReferenceSegments)
	assert.NotNil(t, result.ReferenceSegments.Second)
}
