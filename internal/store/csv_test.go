package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/prihlasky/admissions-cli/internal/enrich"
	"github.com/prihlasky/admissions-cli/internal/model"
)

func testDefs() []model.MetricDefinition {
	return model.DefaultMetricDefinitions()
}

func rawRecord(school string, round int) model.RawRecord {
	return model.RawRecord{
		SchoolID:       school,
		SchoolName:     school,
		Region:         "Praha",
		City:           "Praha",
		CurriculumName: "Gymnázium",
		Round:          round,
		ExtractedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Metrics: map[string]string{
			model.MetricCapacity:     "120",
			model.MetricApplications: "200",
			model.MetricMinScore:     "59b.",
		},
	}
}

func TestRawCSV_AppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")

	s, err := OpenRawCSV(path, testDefs())
	require.NoError(t, err)
	require.NoError(t, s.Append([]model.RawRecord{rawRecord("g1", 1), rawRecord("g1", 2)}))
	require.NoError(t, s.Close())

	records, err := LoadRaw(path, testDefs())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "g1", records[0].SchoolID)
	assert.Equal(t, 1, records[0].Round)
	assert.Equal(t, "59b.", records[0].Metrics[model.MetricMinScore], "raw values survive storage untouched")
	assert.Equal(t, 2, records[1].Round)
}

func TestRawCSV_AppendAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")

	s, err := OpenRawCSV(path, testDefs())
	require.NoError(t, err)
	require.NoError(t, s.Append([]model.RawRecord{rawRecord("g1", 1)}))
	require.NoError(t, s.Close())

	// A restarted run opens the same file and appends without a second header.
	s, err = OpenRawCSV(path, testDefs())
	require.NoError(t, err)
	require.NoError(t, s.Append([]model.RawRecord{rawRecord("g2", 1)}))
	require.NoError(t, s.Close())

	records, err := LoadRaw(path, testDefs())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "g1", records[0].SchoolID)
	assert.Equal(t, "g2", records[1].SchoolID)
}

func TestRawSchools(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")

	done, err := RawSchools(path)
	require.NoError(t, err)
	assert.Empty(t, done, "missing store means nothing is done yet")

	s, err := OpenRawCSV(path, testDefs())
	require.NoError(t, err)
	require.NoError(t, s.Append([]model.RawRecord{rawRecord("g1", 1), rawRecord("g1", 2), rawRecord("g2", 1)}))
	require.NoError(t, s.Close())

	done, err = RawSchools(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"g1": true, "g2": true}, done)
}

func TestNormalized_WriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalized.csv")

	in := []model.NormalizedRecord{{
		SchoolID:       "g1",
		SchoolName:     "Gymnázium A",
		Region:         "Praha",
		City:           "Praha",
		CurriculumName: "Gymnázium",
		Round:          1,
		ExtractedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Metrics: map[string]model.Number{
			model.MetricCapacity:     model.Num(120),
			model.MetricApplications: model.Num(200),
			model.MetricAccepted:     model.Num(90),
			model.MetricMinScore:     {},
			model.MetricAvgScore:     model.Num(72.4),
		},
		AcceptanceRate: model.Num(45),
	}}

	require.NoError(t, WriteNormalized(path, in, testDefs()))

	out, err := LoadNormalized(path, testDefs())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in[0].SchoolID, out[0].SchoolID)
	assert.Equal(t, in[0].Metrics[model.MetricAvgScore], out[0].Metrics[model.MetricAvgScore])
	assert.False(t, out[0].Metrics[model.MetricMinScore].Valid, "missing stays missing through storage")
	assert.Equal(t, 45.0, out[0].AcceptanceRate.Value)
}

func TestWriteNormalized_ReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "normalized.csv")

	first := []model.NormalizedRecord{
		{SchoolID: "g1", Round: 1, ExtractedAt: time.Now().UTC(), Metrics: map[string]model.Number{}},
		{SchoolID: "g2", Round: 1, ExtractedAt: time.Now().UTC(), Metrics: map[string]model.Number{}},
	}
	require.NoError(t, WriteNormalized(path, first, testDefs()))

	second := first[:1]
	require.NoError(t, WriteNormalized(path, second, testDefs()))

	out, err := LoadNormalized(path, testDefs())
	require.NoError(t, err)
	assert.Len(t, out, 1, "normalized store is rewritten, not appended")
}

func TestWriteEnriched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enriched.csv")

	transfers := model.Num(1)
	in := []model.EnrichedRecord{{
		NormalizedRecord: model.NormalizedRecord{
			SchoolID:       "g1",
			SchoolName:     "Gymnázium A",
			Round:          1,
			ExtractedAt:    time.Now().UTC(),
			Metrics:        map[string]model.Number{model.MetricCapacity: model.Num(120)},
			AcceptanceRate: model.Num(45),
		},
		TransportAvailable: true,
		TransportInfo:      "34 min, 1 transfer",
		TransportDuration:  model.Num(34),
		TransportTransfers: transfers,
		Website:            "https://g1.cz",
		Status:             model.EnrichCompleted,
	}}

	require.NoError(t, WriteEnriched(path, in, testDefs()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "transport_duration_min")
	assert.Contains(t, content, "34 min, 1 transfer")
	assert.Contains(t, content, "completed")
	assert.Contains(t, content, "https://g1.cz")
}

func TestWriteEnrichedXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enriched.xlsx")

	in := []model.EnrichedRecord{{
		NormalizedRecord: model.NormalizedRecord{
			SchoolID:    "g1",
			Round:       1,
			ExtractedAt: time.Now().UTC(),
			Metrics:     map[string]model.Number{model.MetricCapacity: model.Num(120)},
		},
		TransportAvailable: true,
		TransportDuration:  model.Num(34),
		TransportTransfers: model.Num(1),
		Status:             model.EnrichCompleted,
	}}

	require.NoError(t, WriteEnrichedXLSX(path, in, testDefs()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	require.Len(t, sheet.Rows, 2)

	header := sheet.Rows[0]
	row := sheet.Rows[1]
	byName := map[string]string{}
	for i, cell := range header.Cells {
		if i < len(row.Cells) {
			byName[cell.Value] = row.Cells[i].Value
		}
	}
	assert.Equal(t, "g1", byName["school_id"])
	assert.Equal(t, "34", byName["transport_duration_min"], "whole-minute columns are integer cells")
	assert.Equal(t, "1", byName["transport_transfers"])
	assert.Equal(t, "completed", byName["status"])
}

func TestAppendStatusLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.jsonl")

	entries := []enrich.StatusEntry{
		{RunID: "run-1", SchoolID: "g1", Round: 1, Status: model.EnrichCompleted, Timestamp: time.Now().UTC()},
		{RunID: "run-1", SchoolID: "g2", Round: 1, Status: model.EnrichFailed, Timestamp: time.Now().UTC()},
	}
	require.NoError(t, AppendStatusLog(path, entries))
	require.NoError(t, AppendStatusLog(path, entries[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 3, lines, "status log appends across calls")
	assert.Contains(t, string(data), `"run_id":"run-1"`)
}
