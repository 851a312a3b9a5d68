package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMetricDefinitions(t *testing.T) {
	defs := DefaultMetricDefinitions()
	require.Len(t, defs, 10)

	assert.Equal(t, []string{
		MetricCapacity, MetricApplications, MetricAccepted, MetricMinScore, MetricAvgScore,
	}, MetricNames(defs))
	assert.Equal(t, []int{1, 2}, Rounds(defs))

	for _, d := range defs {
		if d.Name == MetricMinScore || d.Name == MetricAvgScore {
			assert.True(t, d.Bounded, "%s round %d", d.Name, d.Round)
		} else {
			assert.False(t, d.Bounded, "%s round %d", d.Name, d.Round)
		}
	}
}

func TestLoadMetricDefinitions_EmptyPathUsesDefaults(t *testing.T) {
	defs, err := LoadMetricDefinitions("")
	require.NoError(t, err)
	assert.Equal(t, DefaultMetricDefinitions(), defs)
}

func TestLoadMetricDefinitions_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- name: capacity
  round: 1
  property: k1_kapacita
  native_name: k1_kapacita
- name: avg_score
  round: 1
  property: k1_prum_skor
  native_name: "Prům. počet bodů"
  bounded: true
`), 0o644))

	defs, err := LoadMetricDefinitions(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "k1_prum_skor", defs[1].Property)
	assert.True(t, defs[1].Bounded)
}

func TestLoadMetricDefinitions_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))

	_, err := LoadMetricDefinitions(path)
	assert.Error(t, err)
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "", Number{}.String())
	assert.Equal(t, "45.5", Num(45.5).String())
	assert.Equal(t, "120", Num(120).String())

	assert.Nil(t, Number{}.IntOrNil())
	v := Num(34).IntOrNil()
	require.NotNil(t, v)
	assert.Equal(t, 34, *v)
}

func TestJourneySummary(t *testing.T) {
	one, two := 1, 2
	assert.Equal(t, "34 min", Journey{DurationMinutes: 34}.Summary())
	assert.Equal(t, "34 min, 1 transfer", Journey{DurationMinutes: 34, Transfers: &one}.Summary())
	assert.Equal(t, "52 min, 2 transfers", Journey{DurationMinutes: 52, Transfers: &two}.Summary())
}
