package timeseries

import (
	"fmt"
	"math"
	"time"
)

// Table is a collection of named channels sharing one strictly increasing
// time index. It is the wide representation of a single sensor recording:
// channels with differing native rates carry NaN where they had no sample.
type Table struct {
	index   []time.Time
	names   []string
	columns map[string][]float64
}

// NewTable creates an empty table over the given index.
func NewTable(index []time.Time) (*Table, error) {
	if len(index) == 0 {
		return nil, ErrEmptyIndex
	}
	for i := 1; i < len(index); i++ {
		if !index[i].After(index[i-1]) {
			return nil, fmt.Errorf("%w: at position %d", ErrIndexNotIncreasing, i)
		}
	}
	return &Table{
		index:   index,
		columns: make(map[string][]float64),
	}, nil
}

// AddColumn attaches a channel to the table. The value count must match the
// index length; NaN marks missing observations.
func (t *Table) AddColumn(name string, values []float64) error {
	if _, exists := t.columns[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	if len(values) != len(t.index) {
		return fmt.Errorf("%w: column %q has %d values for %d timestamps",
			ErrLengthMismatch, name, len(values), len(t.index))
	}
	t.names = append(t.names, name)
	t.columns[name] = values
	return nil
}

// Index returns the shared time index.
func (t *Table) Index() []time.Time {
	return t.index
}

// ColumnNames returns the channel names in insertion order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// HasColumn reports whether the named channel exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// Column returns the named channel as a signal sharing the table's index.
func (t *Table) Column(name string) (*Signal, error) {
	values, ok := t.columns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return &Signal{Name: name, Index: t.index, Values: values}, nil
}

// NumRows returns the index length.
func (t *Table) NumRows() int {
	return len(t.index)
}

// NumColumns returns the channel count.
func (t *Table) NumColumns() int {
	return len(t.names)
}

// Copy returns a deep copy of the table.
func (t *Table) Copy() *Table {
	index := make([]time.Time, len(t.index))
	copy(index, t.index)
	out := &Table{
		index:   index,
		names:   append([]string(nil), t.names...),
		columns: make(map[string][]float64, len(t.columns)),
	}
	for name, values := range t.columns {
		out.columns[name] = append([]float64(nil), values...)
	}
	return out
}

// TransformIndex returns a copy of the table with every timestamp mapped
// through fn. The mapping must preserve strict monotonicity, which holds for
// any affine transform with a positive stretch factor.
func (t *Table) TransformIndex(fn func(time.Time) time.Time) (*Table, error) {
	index := make([]time.Time, len(t.index))
	for i, ts := range t.index {
		index[i] = fn(ts)
	}
	out, err := NewTable(index)
	if err != nil {
		return nil, err
	}
	for _, name := range t.names {
		values := append([]float64(nil), t.columns[name]...)
		if err := out.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// OuterJoin merges two tables on the union of their indices, prefixing the
// other table's column names when prefix is non-empty. Rows absent from one
// side are filled with NaN for that side's channels.
func (t *Table) OuterJoin(other *Table, prefix string) (*Table, error) {
	merged := unionIndex(t.index, other.index)
	out, err := NewTable(merged)
	if err != nil {
		return nil, err
	}

	leftPos := indexPositions(merged, t.index)
	rightPos := indexPositions(merged, other.index)

	for _, name := range t.names {
		out.names = append(out.names, name)
		out.columns[name] = scatter(t.columns[name], leftPos, len(merged))
	}
	for _, name := range other.names {
		target := name
		if prefix != "" {
			target = prefix + name
		}
		if _, exists := out.columns[target]; exists {
			return nil, fmt.Errorf("%w: %q after join", ErrDuplicateColumn, target)
		}
		out.names = append(out.names, target)
		out.columns[target] = scatter(other.columns[name], rightPos, len(merged))
	}
	return out, nil
}

// Select returns a copy restricted to the named channels, in the given order.
func (t *Table) Select(cols []string) (*Table, error) {
	out, err := NewTable(append([]time.Time(nil), t.index...))
	if err != nil {
		return nil, err
	}
	for _, name := range cols {
		values, ok := t.columns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if err := out.AddColumn(name, append([]float64(nil), values...)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WithPrefix returns a copy with every column name prefixed.
func (t *Table) WithPrefix(prefix string) *Table {
	out := t.Copy()
	names := make([]string, len(out.names))
	columns := make(map[string][]float64, len(out.columns))
	for i, name := range out.names {
		names[i] = prefix + name
		columns[prefix+name] = out.columns[name]
	}
	out.names = names
	out.columns = columns
	return out
}

// DropEmptyRows removes rows where every channel is NaN.
func (t *Table) DropEmptyRows() *Table {
	keep := make([]int, 0, len(t.index))
	for i := range t.index {
		for _, name := range t.names {
			if !math.IsNaN(t.columns[name][i]) {
				keep = append(keep, i)
				break
			}
		}
	}

	index := make([]time.Time, len(keep))
	for j, i := range keep {
		index[j] = t.index[i]
	}
	out := &Table{
		index:   index,
		names:   append([]string(nil), t.names...),
		columns: make(map[string][]float64, len(t.columns)),
	}
	for _, name := range t.names {
		src := t.columns[name]
		values := make([]float64, len(keep))
		for j, i := range keep {
			values[j] = src[i]
		}
		out.columns[name] = values
	}
	return out
}

// unionIndex merges two sorted indices into their sorted union.
func unionIndex(a, b []time.Time) []time.Time {
	out := make([]time.Time, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Before(b[j]):
			out = append(out, a[i])
			i++
		case b[j].Before(a[i]):
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// indexPositions maps each timestamp of sub to its position in merged.
// Both are sorted and sub is a subset of merged.
func indexPositions(merged, sub []time.Time) []int {
	pos := make([]int, len(sub))
	j := 0
	for i, ts := range sub {
		for j < len(merged) && merged[j].Before(ts) {
			j++
		}
		pos[i] = j
	}
	return pos
}

// scatter spreads values onto a wider row space, NaN elsewhere.
func scatter(values []float64, positions []int, size int) []float64 {
	out := make([]float64, size)
	for i := range out {
		out[i] = math.NaN()
	}
	for i, p := range positions {
		out[p] = values[i]
	}
	return out
}
