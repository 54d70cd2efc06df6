package timeseries

import "errors"

var (
	// ErrEmptyIndex signals an operation on a table or signal with no samples.
	ErrEmptyIndex = errors.New("timeseries: empty time index")

	// ErrIndexNotIncreasing signals a time index that is not strictly increasing.
	ErrIndexNotIncreasing = errors.New("timeseries: index must be strictly increasing")

	// ErrLengthMismatch signals a column whose length differs from the index length.
	ErrLengthMismatch = errors.New("timeseries: column length does not match index length")

	// ErrUnknownColumn signals a lookup of a column that does not exist.
	ErrUnknownColumn = errors.New("timeseries: unknown column")

	// ErrDuplicateColumn signals an attempt to add a column name twice.
	ErrDuplicateColumn = errors.New("timeseries: duplicate column")

	// ErrConstantSignal signals a normalization attempt on a flat signal.
	ErrConstantSignal = errors.New("timeseries: cannot normalize constant signal")

	// ErrTooFewSamples signals an operation that needs more valid samples.
	ErrTooFewSamples = errors.New("timeseries: too few valid samples")
)
