package alignment

import (
	"fmt"
	"time"

	"github.com/RyanBlaney/shakealign/logging"
	"github.com/RyanBlaney/shakealign/timeseries"
)

// StretchCalculator estimates the linear clock-rate correction between a
// source and the reference. The procedure is a fixed two-step corrective
// pass, not a convergence loop: estimate the stretch from the start- and
// end-segment timeshifts, apply it once, recompute both shifts, and fail
// when their residual difference still exceeds the tolerance.
type StretchCalculator struct {
	extractor SegmentExtractor
	shifts    *TimeshiftCalculator
	tolerance time.Duration
	logger    logging.Logger
}

// StretchResult carries the rate correction and the constant offset that
// remain to be applied to a source's timeline.
type StretchResult struct {
	// Stretch is the clock-rate correction factor, close to 1.
	Stretch float64 `json:"stretch_factor"`

	// Shift is the constant offset valid after the stretch is applied.
	Shift time.Duration `json:"timeshift"`

	// Residual is the difference between the start- and end-segment
	// timeshifts after the corrective pass.
	Residual time.Duration `json:"residual"`

	// ReferenceSegments and SourceSegments are the detected shakes of the
	// first extraction pass, kept for the debug hook.
	ReferenceSegments *SegmentResult `json:"-"`
	SourceSegments    *SegmentResult `json:"-"`
}

// NewStretchCalculator creates a calculator using the given extractor and a
// correlation grid at frequency Hz. A zero tolerance selects one grid
// sampling interval.
func NewStretchCalculator(extractor SegmentExtractor, frequency float64, tolerance time.Duration) (*StretchCalculator, error) {
	shifts, err := NewTimeshiftCalculator(frequency)
	if err != nil {
		return nil, err
	}
	if tolerance <= 0 {
		tolerance = time.Duration(float64(time.Second) / frequency)
	}
	return &StretchCalculator{
		extractor: extractor,
		shifts:    shifts,
		tolerance: tolerance,
		logger: logging.WithFields(logging.Fields{
			"component": "stretch_calculator",
		}),
	}, nil
}

// Compute returns the stretch factor and final constant shift that align the
// source's reference channel to the reference source's reference channel.
// The anchor must be the instant later used as the fixed point when the
// transform is applied to the source's data.
//
// On failure the returned result, when non-nil, still carries the segments
// extracted before the failure so the caller can hand them to a debug hook;
// its numeric fields are unset.
func (sc *StretchCalculator) Compute(reference, source *timeseries.Signal, anchor time.Time) (*StretchResult, error) {
	refSegments, err := sc.findBoth(reference)
	if err != nil {
		return partialResult(refSegments, nil), err
	}
	srcSegments, err := sc.findBoth(source)
	if err != nil {
		return partialResult(refSegments, srcSegments), err
	}
	partial := partialResult(refSegments, srcSegments)

	shiftFirst, err := sc.segmentShift(refSegments, srcSegments, true)
	if err != nil {
		return partial, err
	}
	shiftSecond, err := sc.segmentShift(refSegments, srcSegments, false)
	if err != nil {
		return partial, err
	}

	span := srcSegments.Second.Start.Sub(srcSegments.First.Start)
	if span == 0 {
		return partial, fmt.Errorf("%w: for %q, check the window lengths", ErrSegmentsIdentical, source.Name)
	}
	stretch := float64(span+shiftSecond.Shift-shiftFirst.Shift) / float64(span)
	sc.logger.Debug("Estimated stretch factor", logging.Fields{
		"source":       source.Name,
		"stretch":      stretch,
		"shift_first":  shiftFirst.Shift.String(),
		"shift_second": shiftSecond.Shift.String(),
	})

	// Corrective pass: one stretch application, then both shifts again.
	transform := timeseries.AffineTransform{Stretch: stretch, Anchor: anchor}
	stretchedSegments, err := sc.findBoth(transform.ApplyToSignal(source))
	if err != nil {
		return partial, fmt.Errorf("segment extraction after stretching: %w", err)
	}

	correctedFirst, err := sc.segmentShift(refSegments, stretchedSegments, true)
	if err != nil {
		return partial, err
	}
	correctedSecond, err := sc.segmentShift(refSegments, stretchedSegments, false)
	if err != nil {
		return partial, err
	}

	residual := correctedFirst.Shift - correctedSecond.Shift
	if residual < 0 {
		residual = -residual
	}
	if residual > sc.tolerance {
		return partial, fmt.Errorf(
			"%w: residual %v exceeds tolerance %v for %q",
			ErrNoConvergence, residual, sc.tolerance, source.Name)
	}

	return &StretchResult{
		Stretch:           stretch,
		Shift:             correctedFirst.Shift,
		Residual:          residual,
		ReferenceSegments: refSegments,
		SourceSegments:    srcSegments,
	}, nil
}

// findBoth extracts the segments of a reference channel and requires both
// windows to hold a selection. The partial result accompanies the error so
// the candidates and the normalized signal stay available for diagnosis.
func (sc *StretchCalculator) findBoth(signal *timeseries.Signal) (*SegmentResult, error) {
	result, err := sc.extractor.FindSegments(signal)
	if err != nil {
		return nil, err
	}
	if result.First == nil {
		return result, fmt.Errorf(
			"%w: no start-window shake for %q, check window lengths, threshold and minimum length",
			ErrSegmentNotFound, signal.Name)
	}
	if result.Second == nil {
		return result, fmt.Errorf(
			"%w: no end-window shake for %q, check window lengths, threshold and minimum length",
			ErrSegmentNotFound, signal.Name)
	}
	return result, nil
}

// partialResult wraps whatever segments were extracted before a failure.
func partialResult(ref, src *SegmentResult) *StretchResult {
	if ref == nil && src == nil {
		return nil
	}
	return &StretchResult{ReferenceSegments: ref, SourceSegments: src}
}

// segmentShift correlates the matching segment pair of two extraction
// results.
func (sc *StretchCalculator) segmentShift(ref, src *SegmentResult, first bool) (*TimeshiftResult, error) {
	refSegment, srcSegment := ref.Second, src.Second
	if first {
		refSegment, srcSegment = ref.First, src.First
	}
	return sc.shifts.ComputeShift(
		segmentData(ref.Normalized, refSegment),
		segmentData(src.Normalized, srcSegment),
	)
}
