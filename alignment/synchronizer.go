// Package alignment synchronizes independently clocked sensor recordings by
// locating a deliberately induced shake near the start and the end of each
// recording, estimating the constant offset and the clock-drift stretch
// between every source and a chosen reference, and producing resampled
// output on one shared timeline.
package alignment

import (
	"fmt"
	"sort"
	"time"

	"github.com/RyanBlaney/shakealign/alignment/config"
	"github.com/RyanBlaney/shakealign/logging"
	"github.com/RyanBlaney/shakealign/timeseries"
)

// Source is one sensor recording: a time-indexed table plus the name of the
// channel carrying the shake fiducial.
type Source struct {
	Data      *timeseries.Table
	RefColumn string
}

// SyncParams are the per-source synchronization parameters. The reference
// source always carries a stretch of 1 and a zero shift.
type SyncParams struct {
	Stretch float64       `json:"stretch_factor"`
	Shift   time.Duration `json:"timeshift"`
}

// DebugHook receives, per source, the normalized reference channel and the
// detected segments. It also fires for sources that fail to synchronize,
// handing over whatever was detected so the recording can be inspected. It
// exists for visual diagnosis by an external plotting collaborator and has
// no effect on the synchronization itself.
type DebugHook interface {
	SegmentsDetected(source string, normalized *timeseries.Signal, segments *SegmentResult)
}

// Synchronizer orchestrates segment extraction, timeshift and stretch
// estimation per non-reference source, then applies the resulting affine
// transform to every channel and merges all sources onto a shared grid.
//
// Sources are processed strictly one at a time and intermediate resampled
// tables are dropped before the next source is taken up, which bounds the
// peak memory of the merge on long high-frequency recordings.
type Synchronizer struct {
	sources   map[string]Source
	refName   string
	extractor SegmentExtractor
	cfg       config.SyncConfig
	frequency float64
	anchor    time.Time
	logger    logging.Logger
	debug     DebugHook

	params   map[string]SyncParams
	failures map[string]error
	computed bool
}

// NewSynchronizer validates the source set and prepares a synchronizer. A
// nil extractor selects a ShakeExtractor with default parameters; a nil
// config selects the synchronization defaults. The correlation grid
// frequency defaults to the maximum rate inferred from the sources'
// reference channels.
func NewSynchronizer(sources map[string]Source, referenceName string, extractor SegmentExtractor, cfg *config.SyncConfig) (*Synchronizer, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources given", ErrInvalidInput)
	}
	if _, ok := sources[referenceName]; !ok {
		return nil, fmt.Errorf("%w: reference source %q is not among the sources", ErrInvalidInput, referenceName)
	}
	for name, source := range sources {
		if source.Data == nil || source.Data.NumRows() == 0 {
			return nil, fmt.Errorf("%w: source %q has no data", ErrInvalidInput, name)
		}
		if !source.Data.HasColumn(source.RefColumn) {
			return nil, fmt.Errorf("%w: source %q lacks reference channel %q", ErrInvalidInput, name, source.RefColumn)
		}
	}

	if extractor == nil {
		var err error
		extractor, err = NewShakeExtractor(config.DefaultExtractorConfig())
		if err != nil {
			return nil, err
		}
	}
	conf := config.DefaultSyncConfig()
	if cfg != nil {
		conf = *cfg
	}

	s := &Synchronizer{
		sources:   sources,
		refName:   referenceName,
		extractor: extractor,
		cfg:       conf,
		logger: logging.WithFields(logging.Fields{
			"component": "synchronizer",
			"reference": referenceName,
		}),
		params:   make(map[string]SyncParams),
		failures: make(map[string]error),
	}
	if err := s.prepare(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetDebugHook registers a hook receiving detected segments per source.
func (s *Synchronizer) SetDebugHook(hook DebugHook) {
	s.debug = hook
}

// Frequency returns the common correlation grid frequency in Hz.
func (s *Synchronizer) Frequency() float64 {
	return s.frequency
}

// Config returns the synchronization configuration in effect.
func (s *Synchronizer) Config() config.SyncConfig {
	return s.cfg
}

// prepare derives the correlation frequency and the transform anchor from
// the sources' reference channels.
func (s *Synchronizer) prepare() error {
	s.frequency = s.cfg.SamplingFrequency
	for _, name := range s.sourceNames() {
		signal, err := s.refSignal(name)
		if err != nil {
			return err
		}
		first, ok := signal.FirstValid()
		if !ok {
			return fmt.Errorf("%w: reference channel of %q has no valid samples", ErrInvalidInput, name)
		}
		if s.anchor.IsZero() || first.Before(s.anchor) {
			s.anchor = first
		}
		if s.cfg.SamplingFrequency > 0 {
			continue
		}
		freq, err := signal.InferFrequency()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if freq > s.frequency {
			s.frequency = freq
		}
	}
	s.logger.Debug("Prepared synchronizer", logging.Fields{
		"frequency": s.frequency,
		"anchor":    s.anchor.String(),
		"sources":   len(s.sources),
	})
	return nil
}

// SyncParams computes, lazily and once, the stretch factor and timeshift of
// every source. Failures are scoped to the failing source: its error is
// returned in the second map while all other sources still receive
// parameters. Only a defect of the reference source itself aborts the run.
func (s *Synchronizer) SyncParams() (map[string]SyncParams, map[string]error, error) {
	if err := s.ensureParams(); err != nil {
		return nil, nil, err
	}
	params := make(map[string]SyncParams, len(s.params))
	for name, p := range s.params {
		params[name] = p
	}
	failures := make(map[string]error, len(s.failures))
	for name, err := range s.failures {
		failures[name] = err
	}
	return params, failures, nil
}

func (s *Synchronizer) ensureParams() error {
	if s.computed {
		return nil
	}

	refSignal, err := s.refSignal(s.refName)
	if err != nil {
		return err
	}
	refSegments, err := s.extractor.FindSegments(refSignal)
	if err != nil {
		return fmt.Errorf("reference source %q: %w", s.refName, err)
	}
	// The hook fires before the completeness check so a defective reference
	// recording can still be inspected.
	if s.debug != nil {
		s.debug.SegmentsDetected(s.refName, refSegments.Normalized, refSegments)
	}
	if refSegments.First == nil || refSegments.Second == nil {
		return fmt.Errorf("%w: in reference source %q", ErrSegmentNotFound, s.refName)
	}

	calculator, err := NewStretchCalculator(s.extractor, s.frequency, s.cfg.ConvergenceTolerance)
	if err != nil {
		return err
	}

	s.params[s.refName] = SyncParams{Stretch: 1, Shift: 0}
	for _, name := range s.sourceNames() {
		if name == s.refName {
			continue
		}
		signal, err := s.refSignal(name)
		if err != nil {
			s.failures[name] = err
			continue
		}
		result, err := calculator.Compute(refSignal, signal, s.anchor)
		if err != nil {
			s.logger.Warn("Source failed to synchronize", logging.Fields{
				"source": name,
				"error":  err.Error(),
			})
			s.failures[name] = err
			if s.debug != nil && result != nil && result.SourceSegments != nil {
				s.debug.SegmentsDetected(name, result.SourceSegments.Normalized, result.SourceSegments)
			}
			continue
		}
		s.params[name] = SyncParams{Stretch: result.Stretch, Shift: result.Shift}
		s.logger.Info("Synchronized source", logging.Fields{
			"source":  name,
			"stretch": result.Stretch,
			"shift":   result.Shift.String(),
		})
		if s.debug != nil {
			s.debug.SegmentsDetected(name, result.SourceSegments.Normalized, result.SourceSegments)
		}
	}
	s.computed = true
	return nil
}

// SyncedSource applies the source's affine transform to its full table,
// every channel included, and returns the result on the source's own
// (transformed) index.
func (s *Synchronizer) SyncedSource(name string) (*timeseries.Table, error) {
	if err := s.ensureParams(); err != nil {
		return nil, err
	}
	if err, failed := s.failures[name]; failed {
		return nil, err
	}
	params, ok := s.params[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, name)
	}

	source := s.sources[name]
	if params.Stretch == 1 && params.Shift == 0 {
		return source.Data.Copy(), nil
	}
	transform := timeseries.AffineTransform{
		Stretch: params.Stretch,
		Shift:   params.Shift,
		Anchor:  s.anchor,
	}
	return transform.ApplyToTable(source.Data)
}

// SyncedData synchronizes every source. Per-source failures land in the
// second map and do not block the remaining sources.
func (s *Synchronizer) SyncedData() (map[string]*timeseries.Table, map[string]error, error) {
	if err := s.ensureParams(); err != nil {
		return nil, nil, err
	}
	synced := make(map[string]*timeseries.Table, len(s.params))
	failures := make(map[string]error, len(s.failures))
	for _, name := range s.sourceNames() {
		if err, failed := s.failures[name]; failed {
			failures[name] = err
			continue
		}
		table, err := s.SyncedSource(name)
		if err != nil {
			failures[name] = err
			continue
		}
		synced[name] = table
	}
	return synced, failures, nil
}

// Grid returns the shared output time index: the reference source's native
// index, or an equidistant grid over its range when a canonical sampling
// frequency is configured.
func (s *Synchronizer) Grid() []time.Time {
	index := s.sources[s.refName].Data.Index()
	if s.cfg.SamplingFrequency <= 0 {
		return index
	}
	return timeseries.Grid(index[0], index[len(index)-1], s.cfg.SamplingFrequency)
}

// MergedTable joins all successfully synchronized sources on the shared
// grid into one wide table, column names prefixed with the source name. The
// merge is a fold: each source is transformed, resampled, incorporated and
// released before the next one is loaded. Grid rows where a source had no
// observation stay NaN; nothing is interpolated across gaps.
func (s *Synchronizer) MergedTable() (*timeseries.Table, error) {
	if err := s.ensureParams(); err != nil {
		return nil, err
	}
	grid := s.Grid()

	var merged *timeseries.Table
	for _, name := range s.sourceNames() {
		if _, failed := s.failures[name]; failed {
			continue
		}
		synced, err := s.SyncedSource(name)
		if err != nil {
			return nil, err
		}
		resampled, err := synced.Resample(grid)
		if err != nil {
			return nil, fmt.Errorf("resampling source %q: %w", name, err)
		}
		if merged == nil {
			merged = resampled.WithPrefix(name + "_")
			continue
		}
		merged, err = merged.OuterJoin(resampled, name+"_")
		if err != nil {
			return nil, fmt.Errorf("merging source %q: %w", name, err)
		}
	}
	if merged == nil {
		return nil, fmt.Errorf("%w: every source failed to synchronize", ErrSegmentNotFound)
	}
	return merged, nil
}

// GroupedTables builds one merged table per caller-specified group, each
// group naming the wanted channels per source. Requested channels that do
// not exist are an error rather than silently dropped. Rows where every
// grouped channel is missing are removed.
func (s *Synchronizer) GroupedTables(groups map[string]map[string][]string) (map[string]*timeseries.Table, error) {
	if err := s.ensureParams(); err != nil {
		return nil, err
	}
	grid := s.Grid()

	tables := make(map[string]*timeseries.Table, len(groups))
	for _, groupName := range sortedKeys(groups) {
		group := groups[groupName]
		if len(group) == 0 {
			s.logger.Warn("Group has no requested channels", logging.Fields{
				"group": groupName,
			})
			continue
		}

		var merged *timeseries.Table
		for _, sourceName := range sortedKeys(group) {
			if len(group[sourceName]) == 0 {
				continue
			}
			if err, failed := s.failures[sourceName]; failed {
				return nil, fmt.Errorf("group %q needs source %q: %w", groupName, sourceName, err)
			}
			if _, ok := s.sources[sourceName]; !ok {
				return nil, fmt.Errorf("%w: group %q requests unknown source %q", ErrInvalidInput, groupName, sourceName)
			}
			synced, err := s.SyncedSource(sourceName)
			if err != nil {
				return nil, err
			}
			selected, err := synced.Select(group[sourceName])
			if err != nil {
				return nil, fmt.Errorf("%w: group %q, source %q: %v", ErrInvalidInput, groupName, sourceName, err)
			}
			resampled, err := selected.Resample(grid)
			if err != nil {
				return nil, fmt.Errorf("resampling source %q for group %q: %w", sourceName, groupName, err)
			}
			if merged == nil {
				merged = resampled.WithPrefix(sourceName + "_")
				continue
			}
			merged, err = merged.OuterJoin(resampled, sourceName+"_")
			if err != nil {
				return nil, fmt.Errorf("merging group %q: %w", groupName, err)
			}
		}
		if merged == nil {
			s.logger.Warn("Group resolved to no channels", logging.Fields{
				"group": groupName,
			})
			continue
		}
		tables[groupName] = merged.DropEmptyRows()
	}
	return tables, nil
}

func (s *Synchronizer) refSignal(name string) (*timeseries.Signal, error) {
	source := s.sources[name]
	signal, err := source.Data.Column(source.RefColumn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	// The channel keeps the source's name so logs and debug output refer
	// to the recording, not to a channel name shared by several sources.
	named := *signal
	named.Name = name
	return &named, nil
}

func (s *Synchronizer) sourceNames() []string {
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
