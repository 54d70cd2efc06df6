package export_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/shakealign/alignment"
	"github.com/RyanBlaney/shakealign/alignment/config"
	"github.com/RyanBlaney/shakealign/export"
	"github.com/RyanBlaney/shakealign/timeseries"
)

var testStart = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// shakeTable builds a one-minute 10 Hz recording with shakes near both ends
// and an extra counter channel.
func shakeTable(t *testing.T) *timeseries.Table {
	t.Helper()
	const n = 600
	index := make([]time.Time, n)
	sig := make([]float64, n)
	counter := make([]float64, n)
	for i := range index {
		index[i] = testStart.Add(time.Duration(i) * 100 * time.Millisecond)
		counter[i] = float64(i)
	}
	for _, center := range []int{30, 550} {
		for p := 0; p < 5; p++ {
			sig[center+p*5] = 1.0
		}
	}

	table, err := timeseries.NewTable(index)
	require.NoError(t, err)
	require.NoError(t, table.AddColumn("sig", sig))
	require.NoError(t, table.AddColumn("counter", counter))
	return table
}

func newTestSynchronizer(t *testing.T, cfg *config.SyncConfig) *alignment.Synchronizer {
	t.Helper()
	table := shakeTable(t)
	extractor, err := alignment.NewShakeExtractor(config.ExtractorConfig{
		Threshold:         0.5,
		Distance:          time.Second,
		MinLength:         3,
		StartWindowLength: 20 * time.Second,
		EndWindowLength:   20 * time.Second,
		TimeBuffer:        time.Second,
	})
	require.NoError(t, err)

	synchronizer, err := alignment.NewSynchronizer(map[string]alignment.Source{
		"phone": {Data: table, RefColumn: "sig"},
		"watch": {Data: table.Copy(), RefColumn: "sig"},
	}, "phone", extractor, cfg)
	require.NoError(t, err)
	return synchronizer
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return records
}

// TestSaveSnapshots verifies the per-source CSVs and the parameter file.
func TestSaveSnapshots(t *testing.T) {
	dir := t.TempDir()
	sync := newTestSynchronizer(t, nil)

	require.NoError(t, export.SaveSnapshots(dir, sync))

	for _, name := range []string{"phone.csv", "watch.csv", "SYNC.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	records := readCSV(t, filepath.Join(dir, "phone.csv"))
	require.Len(t, records, 601)
	assert.Equal(t, []string{"time", "sig", "counter"}, records[0])
	assert.Equal(t, testStart.Format(time.RFC3339Nano), records[1][0])
	assert.Equal(t, "0", records[1][2])

	params := readCSV(t, filepath.Join(dir, "SYNC.csv"))
	require.Len(t, params, 3)
	assert.Equal(t, []string{"source", "stretch_factor", "timeshift_seconds", "error"}, params[0])
	assert.Equal(t, "phone", params[1][0])
	assert.Equal(t, "1", params[1][1])
	assert.Equal(t, "0", params[1][2])
	assert.Equal(t, "watch", params[2][0])
}

// TestSaveTables verifies grouped output plus the default-on total table.
func TestSaveTables(t *testing.T) {
	dir := t.TempDir()
	sync := newTestSynchronizer(t, nil)

	spec := export.TableSpec{
		"MOTION": {"phone": {"sig"}, "watch": {"sig"}},
	}
	require.NoError(t, export.SaveTables(dir, sync, spec))

	for _, name := range []string{"MOTION.csv", "TOTAL.csv", "SYNC.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	motion := readCSV(t, filepath.Join(dir, "MOTION.csv"))
	require.Len(t, motion, 601)
	assert.ElementsMatch(t, []string{"time", "phone_sig", "watch_sig"}, motion[0])

	total := readCSV(t, filepath.Join(dir, "TOTAL.csv"))
	require.Len(t, total, 601)
	assert.Len(t, total[0], 5)
}

// TestSaveTables_NoTotal verifies that the configuration's total-table
// switch reaches the exporter.
func TestSaveTables_NoTotal(t *testing.T) {
	dir := t.TempDir()
	sync := newTestSynchronizer(t, &config.SyncConfig{SaveTotalTable: false})

	require.NoError(t, export.SaveTables(dir, sync, nil))

	_, err := os.Stat(filepath.Join(dir, "TOTAL.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "SYNC.csv"))
	assert.NoError(t, err)
}

// TestSaveTables_ReservedNames verifies the reserved file stem checks.
func TestSaveTables_ReservedNames(t *testing.T) {
	dir := t.TempDir()
	sync := newTestSynchronizer(t, nil)

	err := export.SaveTables(dir, sync, export.TableSpec{
		"SYNC": {"phone": {"sig"}},
	})
	assert.ErrorIs(t, err, export.ErrReservedName)

	err = export.SaveTables(dir, sync, export.TableSpec{
		"TOTAL": {"phone": {"sig"}},
	})
	assert.ErrorIs(t, err, export.ErrReservedName)
}
