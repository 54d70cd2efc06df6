// Package export persists synchronized tables as CSV files: one snapshot per
// source, caller-specified grouped tables, the optional all-channels total
// table, and the synchronization parameters. It consumes the engine's
// outputs and contains no synchronization logic.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/RyanBlaney/shakealign/alignment"
	"github.com/RyanBlaney/shakealign/logging"
	"github.com/RyanBlaney/shakealign/timeseries"
)

// TableSpec names the output files: group name to {source to channel list}.
// Each group becomes one CSV file joining the listed channels, which is how
// recordings from mixed devices are split into per-sensor-type files.
type TableSpec map[string]map[string][]string

// Reserved file stems that the exporter claims for itself.
const (
	syncFileStem  = "SYNC"
	totalFileStem = "TOTAL"
)

// ErrReservedName signals a group named after a reserved output file.
var ErrReservedName = errors.New("export: SYNC and TOTAL are reserved table names")

// SaveTables exports the grouped tables described by spec, a TOTAL.csv
// joining all channels of all sources unless the synchronizer's
// configuration disables it, and the SYNC.csv parameter file. Tables are
// produced and written one at a time.
func SaveTables(targetDir string, sync *alignment.Synchronizer, spec TableSpec) error {
	saveTotal := sync.Config().SaveTotalTable
	if _, reserved := spec[syncFileStem]; reserved {
		return ErrReservedName
	}
	if _, reserved := spec[totalFileStem]; reserved && saveTotal {
		return fmt.Errorf("%w: remove the TOTAL group or disable the total table", ErrReservedName)
	}

	params, failures, err := sync.SyncParams()
	if err != nil {
		return err
	}
	if err := saveSyncParams(targetDir, params, failures); err != nil {
		return err
	}

	if len(spec) > 0 {
		grouped, err := sync.GroupedTables(spec)
		if err != nil {
			return err
		}
		for _, name := range sortedKeys(grouped) {
			if err := writeTable(filepath.Join(targetDir, name+".csv"), grouped[name]); err != nil {
				return err
			}
			delete(grouped, name)
		}
	}

	if saveTotal {
		total, err := sync.MergedTable()
		if err != nil {
			return err
		}
		if err := writeTable(filepath.Join(targetDir, totalFileStem+".csv"), total); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshots exports one CSV per synchronized source plus SYNC.csv. It
// does not produce a merged table.
func SaveSnapshots(targetDir string, sync *alignment.Synchronizer) error {
	params, failures, err := sync.SyncParams()
	if err != nil {
		return err
	}
	if err := saveSyncParams(targetDir, params, failures); err != nil {
		return err
	}

	for _, name := range sortedKeys(params) {
		table, err := sync.SyncedSource(name)
		if err != nil {
			return err
		}
		if err := writeTable(filepath.Join(targetDir, name+".csv"), table); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(failures) {
		logging.Warn("Skipping failed source in snapshot export", logging.Fields{
			"source": name,
			"error":  failures[name].Error(),
		})
	}
	return nil
}

// saveSyncParams writes the per-source stretch factor and timeshift.
// Failed sources appear with an empty parameter set and the error text.
func saveSyncParams(targetDir string, params map[string]alignment.SyncParams, failures map[string]error) error {
	file, err := os.Create(filepath.Join(targetDir, syncFileStem+".csv"))
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"source", "stretch_factor", "timeshift_seconds", "error"}); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for _, name := range sortedKeys(params) {
		p := params[name]
		record := []string{
			name,
			strconv.FormatFloat(p.Stretch, 'g', -1, 64),
			strconv.FormatFloat(p.Shift.Seconds(), 'g', -1, 64),
			"",
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	for _, name := range sortedKeys(failures) {
		if err := w.Write([]string{name, "", "", failures[name].Error()}); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// writeTable streams a table row by row: timestamp column first, then the
// channels in table order. Missing values become empty cells.
func writeTable(path string, table *timeseries.Table) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	names := table.ColumnNames()
	header := append([]string{"time"}, names...)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	columns := make([]*timeseries.Signal, len(names))
	for i, name := range names {
		signal, err := table.Column(name)
		if err != nil {
			return err
		}
		columns[i] = signal
	}

	record := make([]string, len(names)+1)
	for row, ts := range table.Index() {
		record[0] = ts.UTC().Format(time.RFC3339Nano)
		for i, signal := range columns {
			v := signal.Values[row]
			if math.IsNaN(v) {
				record[i+1] = ""
				continue
			}
			record[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
