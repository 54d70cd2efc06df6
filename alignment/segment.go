package alignment

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Peak is a local maximum of the normalized reference channel whose
// amplitude reached the detection threshold.
type Peak struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Segment is a contiguous run of peaks representing one detected shake.
// Start and End are the peak run bounds padded by the extractor's time
// buffer so the correlation sees the shake's onset and decay.
type Segment struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Peaks []Peak    `json:"peaks"`
}

// Weight ranks a segment within one window: mean plus median of its peak
// amplitudes. It has no meaning across windows or sources.
func (s *Segment) Weight() float64 {
	if len(s.Peaks) == 0 {
		return 0
	}
	values := make([]float64, len(s.Peaks))
	for i, p := range s.Peaks {
		values[i] = p.Value
	}
	mean := stat.Mean(values, nil)
	sort.Float64s(values)
	median := stat.Quantile(0.5, stat.Empirical, values, nil)
	return mean + median
}

// mergePeaks partitions chronologically ordered peaks into maximal runs
// where consecutive peaks are no farther apart than distance. The rule is
// single-linkage in time: any chain of within-distance neighbors lands in
// one run regardless of processing order.
func mergePeaks(peaks []Peak, distance time.Duration) [][]Peak {
	var runs [][]Peak
	for i, p := range peaks {
		if i == 0 || p.Time.Sub(peaks[i-1].Time) > distance {
			runs = append(runs, []Peak{p})
			continue
		}
		runs[len(runs)-1] = append(runs[len(runs)-1], p)
	}
	return runs
}

// weightTolerance treats weights this close as equal. Weights are sums of
// float means and medians, so candidates that are equal by construction can
// still differ in the last bits.
const weightTolerance = 1e-9

// selectSegment returns the candidate with the maximal weight, as a pure
// reduction over the collected list. Candidates arrive in chronological
// order and a new candidate must beat the incumbent by more than the
// tolerance, so ties and near-ties resolve to the earlier segment. Returns
// nil for an empty candidate list.
func selectSegment(candidates []*Segment) *Segment {
	var best *Segment
	bestWeight := 0.0
	for _, c := range candidates {
		w := c.Weight()
		switch {
		case best == nil:
			best, bestWeight = c, w
		case w > bestWeight+weightTolerance:
			best, bestWeight = c, w
		case w > bestWeight:
			bestWeight = w
		}
	}
	return best
}
