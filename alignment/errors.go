package alignment

import "errors"

// The engine reports every failure through one of these sentinels, wrapped
// with source and window context. All of them are recoverable: the caller can
// retune the extraction parameters and retry, or inspect the reference signal
// through the debug hook. No shift or stretch is ever guessed on failure.
var (
	// ErrBadThreshold signals a detection threshold outside (0, 1).
	ErrBadThreshold = errors.New("alignment: threshold must be in (0, 1)")

	// ErrBadWindow signals start/end windows that overlap or jointly exceed
	// the recording, so a shake could not be attributed to one end.
	ErrBadWindow = errors.New("alignment: start and end windows must not overlap")

	// ErrSegmentNotFound signals that a window contained no qualifying
	// shake segment.
	ErrSegmentNotFound = errors.New("alignment: no shake segment found")

	// ErrNoConvergence signals that the corrective stretch pass left the
	// start- and end-segment timeshifts further apart than the tolerance.
	ErrNoConvergence = errors.New("alignment: timeshifts did not converge after stretch correction")

	// ErrInvalidInput signals a source table without the declared reference
	// channel, without a usable time index, or without data.
	ErrInvalidInput = errors.New("alignment: invalid source input")

	// ErrSegmentsIdentical signals that the first and second shake resolved
	// to the same instant, leaving no span to estimate drift from.
	ErrSegmentsIdentical = errors.New("alignment: first and second segment are identical")
)
