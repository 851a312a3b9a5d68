package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prihlasky/admissions-cli/internal/model"
)

func rawRecord(school, curriculum string, round int, extractedAt time.Time, metrics map[string]string) model.RawRecord {
	return model.RawRecord{
		SchoolID:       school,
		SchoolName:     school,
		Region:         "Praha",
		City:           "Praha",
		CurriculumName: curriculum,
		Round:          round,
		ExtractedAt:    extractedAt,
		Metrics:        metrics,
	}
}

func TestRun_CoercesMetrics(t *testing.T) {
	n := New(model.DefaultMetricDefinitions())
	now := time.Now()

	records, warnings := n.Run([]model.RawRecord{
		rawRecord("g1", "Gymnázium", 1, now, map[string]string{
			model.MetricCapacity:     "120 (21+38+59+0+2)",
			model.MetricApplications: "200",
			model.MetricAccepted:     "90",
			model.MetricMinScore:     "59b.",
			model.MetricAvgScore:     "72,4",
		}),
	})

	require.Len(t, records, 1)
	assert.Empty(t, warnings)

	r := records[0]
	assert.Equal(t, 120.0, r.Metrics[model.MetricCapacity].Value)
	assert.Equal(t, 59.0, r.Metrics[model.MetricMinScore].Value)
	assert.Equal(t, 72.4, r.Metrics[model.MetricAvgScore].Value)
	require.True(t, r.AcceptanceRate.Valid)
	assert.Equal(t, 45.0, r.AcceptanceRate.Value)
}

func TestRun_MissingStaysMissing(t *testing.T) {
	n := New(model.DefaultMetricDefinitions())

	records, _ := n.Run([]model.RawRecord{
		rawRecord("g1", "Gymnázium", 2, time.Now(), map[string]string{
			model.MetricCapacity:     "-",
			model.MetricApplications: "",
		}),
	})

	require.Len(t, records, 1)
	assert.False(t, records[0].Metrics[model.MetricCapacity].Valid)
	assert.False(t, records[0].Metrics[model.MetricApplications].Valid)
	assert.False(t, records[0].AcceptanceRate.Valid)
}

func TestRun_DeduplicatesKeepingLatest(t *testing.T) {
	n := New(model.DefaultMetricDefinitions())
	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	records, _ := n.Run([]model.RawRecord{
		rawRecord("g1", "Gymnázium", 1, later, map[string]string{model.MetricCapacity: "60"}),
		rawRecord("g1", "Gymnázium", 1, earlier, map[string]string{model.MetricCapacity: "30"}),
	})

	require.Len(t, records, 1)
	assert.Equal(t, 60.0, records[0].Metrics[model.MetricCapacity].Value)
}

func TestRun_SortOrder(t *testing.T) {
	n := New(model.DefaultMetricDefinitions())
	now := time.Now()

	b := rawRecord("b", "Obor", 1, now, nil)
	b.Region = "Brno"
	a2 := rawRecord("a", "Obor", 2, now, nil)
	a2.Region = "Praha"
	a1 := rawRecord("a", "Obor", 1, now, nil)
	a1.Region = "Praha"

	records, _ := n.Run([]model.RawRecord{a2, b, a1})

	require.Len(t, records, 3)
	assert.Equal(t, "Brno", records[0].Region)
	assert.Equal(t, 1, records[1].Round)
	assert.Equal(t, 2, records[2].Round)
}

func TestRun_BoundedMetricWarning(t *testing.T) {
	n := New(model.DefaultMetricDefinitions())

	records, warnings := n.Run([]model.RawRecord{
		rawRecord("g1", "Gymnázium", 1, time.Now(), map[string]string{
			model.MetricAvgScore: "145",
		}),
	})

	require.Len(t, records, 1)
	require.Len(t, warnings, 1)
	assert.Equal(t, model.MetricAvgScore, warnings[0].Metric)
	// The value is reported but kept.
	assert.Equal(t, 145.0, records[0].Metrics[model.MetricAvgScore].Value)
}

func TestRun_AcceptanceRateOver100Warns(t *testing.T) {
	n := New(model.DefaultMetricDefinitions())

	records, warnings := n.Run([]model.RawRecord{
		rawRecord("g1", "Gymnázium", 1, time.Now(), map[string]string{
			model.MetricAccepted:     "150",
			model.MetricApplications: "100",
		}),
	})

	require.Len(t, records, 1)
	assert.Equal(t, 150.0, records[0].AcceptanceRate.Value)
	require.Len(t, warnings, 1)
	assert.Equal(t, "acceptance_rate", warnings[0].Metric)
}

func TestRun_Idempotent(t *testing.T) {
	defs := model.DefaultMetricDefinitions()
	n := New(defs)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	raw := []model.RawRecord{
		rawRecord("g1", "Gymnázium", 1, now, map[string]string{
			model.MetricCapacity:     "120",
			model.MetricApplications: "200",
			model.MetricAccepted:     "90",
			model.MetricMinScore:     "59b.",
		}),
	}

	first, _ := n.Run(raw)

	// Re-encode the normalized output as raw values and run again.
	reencoded := make([]model.RawRecord, 0, len(first))
	for _, r := range first {
		metrics := make(map[string]string, len(r.Metrics))
		for name, v := range r.Metrics {
			metrics[name] = v.String()
		}
		rr := rawRecord(r.SchoolID, r.CurriculumName, r.Round, r.ExtractedAt, metrics)
		reencoded = append(reencoded, rr)
	}
	second, _ := n.Run(reencoded)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Metrics, second[i].Metrics)
		assert.Equal(t, first[i].AcceptanceRate, second[i].AcceptanceRate)
	}
}
