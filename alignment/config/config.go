// Package config holds the tunable parameters of the synchronization engine.
package config

import "time"

// ExtractorConfig controls shake segment detection on the normalized
// reference channel of each source.
type ExtractorConfig struct {
	// Threshold is the minimum normalized amplitude for peak detection,
	// in (0, 1). The reference channel is scaled to [0, 1] first.
	Threshold float64 `json:"threshold"`

	// Distance is the maximum gap between two peaks that still belong to
	// the same shake.
	Distance time.Duration `json:"distance"`

	// MinLength is the minimum number of peaks per shake.
	MinLength int `json:"min_length"`

	// StartWindowLength bounds the search for the first shake from the
	// start of the recording.
	StartWindowLength time.Duration `json:"start_window_length"`

	// EndWindowLength bounds the search for the second shake from the end
	// of the recording.
	EndWindowLength time.Duration `json:"end_window_length"`

	// TimeBuffer pads the selected segment on both sides so the
	// cross-correlation sees the shake's onset and decay.
	TimeBuffer time.Duration `json:"time_buffer"`
}

// DefaultExtractorConfig returns the detection parameters that work for
// hand-shaken wearable recordings with ten-minute lead-in windows.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Threshold:         0.6,
		Distance:          1500 * time.Millisecond,
		MinLength:         6,
		StartWindowLength: 600 * time.Second,
		EndWindowLength:   600 * time.Second,
		TimeBuffer:        time.Second,
	}
}

// SyncConfig controls timeshift estimation and the convergence check of the
// corrective stretch pass.
type SyncConfig struct {
	// SamplingFrequency overrides the common correlation grid frequency
	// in Hz. Zero selects the maximum frequency inferred from the sources'
	// reference channels.
	SamplingFrequency float64 `json:"sampling_frequency"`

	// ConvergenceTolerance bounds the residual difference between the
	// start- and end-segment timeshifts after the corrective stretch pass.
	// Zero selects one sampling interval of the common grid.
	ConvergenceTolerance time.Duration `json:"convergence_tolerance"`

	// SaveTotalTable controls whether the merged all-channels table is
	// produced alongside any caller-specified groupings.
	SaveTotalTable bool `json:"save_total_table"`
}

// DefaultSyncConfig returns the synchronization defaults.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		SamplingFrequency:    0,
		ConvergenceTolerance: 0,
		SaveTotalTable:       true,
	}
}
