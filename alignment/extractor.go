package alignment

import (
	"fmt"

	"github.com/RyanBlaney/shakealign/alignment/config"
	"github.com/RyanBlaney/shakealign/logging"
	"github.com/RyanBlaney/shakealign/timeseries"
)

// SegmentExtractor locates the synchronization segments of a reference
// channel: the best shake inside the start window and the best shake inside
// the end window.
type SegmentExtractor interface {
	FindSegments(signal *timeseries.Signal) (*SegmentResult, error)
}

// SegmentResult carries the selected segments of one reference channel.
// First or Second is nil when the corresponding window held no qualifying
// candidate; callers decide whether that is fatal for their source.
// Candidates and Normalized feed the debug hook for visual diagnosis.
type SegmentResult struct {
	First      *Segment   `json:"first"`
	Second     *Segment   `json:"second"`
	Candidates []*Segment `json:"candidates"`

	Normalized *timeseries.Signal `json:"-"`
}

// ShakeExtractor detects deliberately induced shake events on a normalized
// reference channel. Peaks above the threshold are merged into candidate
// segments under the distance rule, filtered by window containment and
// minimum length, and ranked by mean+median amplitude weight.
type ShakeExtractor struct {
	cfg    config.ExtractorConfig
	logger logging.Logger
}

// NewShakeExtractor validates the detection parameters and creates an
// extractor.
func NewShakeExtractor(cfg config.ExtractorConfig) (*ShakeExtractor, error) {
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return nil, fmt.Errorf("%w: got %v", ErrBadThreshold, cfg.Threshold)
	}
	if cfg.Distance <= 0 {
		return nil, fmt.Errorf("%w: distance must be positive, got %v", ErrInvalidInput, cfg.Distance)
	}
	if cfg.MinLength < 1 {
		return nil, fmt.Errorf("%w: min length must be at least 1, got %d", ErrInvalidInput, cfg.MinLength)
	}
	if cfg.StartWindowLength <= 0 || cfg.EndWindowLength <= 0 {
		return nil, fmt.Errorf("%w: window lengths must be positive", ErrInvalidInput)
	}
	return &ShakeExtractor{
		cfg: cfg,
		logger: logging.WithFields(logging.Fields{
			"component": "shake_extractor",
		}),
	}, nil
}

// Config returns the extractor's detection parameters.
func (e *ShakeExtractor) Config() config.ExtractorConfig {
	return e.cfg
}

// FindSegments normalizes the reference channel to [0, 1], detects
// above-threshold local maxima, merges them into candidate segments and
// selects the heaviest qualifying candidate per window.
//
// The window geometry is checked before any peak detection: when the start
// and end windows overlap, a shake in the shared zone could not be
// attributed to either end of the recording.
func (e *ShakeExtractor) FindSegments(signal *timeseries.Signal) (*SegmentResult, error) {
	first, ok := signal.FirstValid()
	if !ok {
		return nil, fmt.Errorf("%w: signal %q has no valid samples", ErrInvalidInput, signal.Name)
	}
	last, _ := signal.LastValid()
	duration := last.Sub(first)

	if e.cfg.StartWindowLength+e.cfg.EndWindowLength > duration {
		return nil, fmt.Errorf(
			"%w: start (%v) plus end (%v) window exceeds signal %q duration (%v)",
			ErrBadWindow, e.cfg.StartWindowLength, e.cfg.EndWindowLength, signal.Name, duration)
	}
	startWindowEnd := first.Add(e.cfg.StartWindowLength)
	endWindowStart := last.Add(-e.cfg.EndWindowLength)

	normalized, err := signal.Normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	peaks := findPeaks(normalized, e.cfg.Threshold)
	e.logger.Debug("Detected peaks", logging.Fields{
		"signal":    signal.Name,
		"peaks":     len(peaks),
		"threshold": e.cfg.Threshold,
	})

	runs := mergePeaks(peaks, e.cfg.Distance)

	var candidates, startCandidates, endCandidates []*Segment
	for _, run := range runs {
		if len(run) < e.cfg.MinLength {
			continue
		}
		segment := &Segment{
			Start: run[0].Time.Add(-e.cfg.TimeBuffer),
			End:   run[len(run)-1].Time.Add(e.cfg.TimeBuffer),
			Peaks: run,
		}
		candidates = append(candidates, segment)

		switch {
		case !run[len(run)-1].Time.After(startWindowEnd):
			startCandidates = append(startCandidates, segment)
		case !run[0].Time.Before(endWindowStart):
			endCandidates = append(endCandidates, segment)
		}
	}
	e.logger.Debug("Merged peak runs", logging.Fields{
		"signal":           signal.Name,
		"runs":             len(runs),
		"candidates":       len(candidates),
		"start_candidates": len(startCandidates),
		"end_candidates":   len(endCandidates),
	})

	return &SegmentResult{
		First:      selectSegment(startCandidates),
		Second:     selectSegment(endCandidates),
		Candidates: candidates,
		Normalized: normalized,
	}, nil
}

// findPeaks returns the local maxima of the signal whose value reaches the
// threshold. Missing samples are skipped entirely, so a peak is judged
// against its nearest observed neighbors, never against a gap. A flat crest,
// as produced by a sensor clipping at full scale, counts as one peak at its
// middle sample.
func findPeaks(signal *timeseries.Signal, threshold float64) []Peak {
	compact := signal.DropMissing()
	var peaks []Peak
	for i := 1; i < compact.Len()-1; i++ {
		v := compact.Values[i]
		if v < threshold || v <= compact.Values[i-1] {
			continue
		}
		end := i
		for end+1 < compact.Len() && compact.Values[end+1] == v {
			end++
		}
		if end+1 < compact.Len() && v > compact.Values[end+1] {
			peaks = append(peaks, Peak{Time: compact.Index[(i+end)/2], Value: v})
		}
		i = end
	}
	return peaks
}

// segmentData slices the normalized signal to a segment's padded bounds.
func segmentData(normalized *timeseries.Signal, segment *Segment) *timeseries.Signal {
	return normalized.Slice(segment.Start, segment.End)
}
