package model

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Canonical metric names shared by the raw and normalized stores.
const (
	MetricCapacity     = "capacity"
	MetricApplications = "applications"
	MetricAccepted     = "accepted"
	MetricMinScore     = "min_score"
	MetricAvgScore     = "avg_score"
)

// MetricDefinition binds one measured quantity to a query-level column
// property for one admission round. Definitions are config-time data; the
// pipeline never computes them.
type MetricDefinition struct {
	// Name is the canonical metric name, shared across rounds.
	Name string `yaml:"name"`
	// Round is the admission cycle the column belongs to (1 = primary,
	// 2 = supplementary).
	Round int `yaml:"round"`
	// Property is the column property referenced in the semantic query.
	Property string `yaml:"property"`
	// NativeName is the display name the dashboard binds to the column.
	NativeName string `yaml:"native_name"`
	// Bounded marks metrics whose domain is [0,100]; out-of-range values
	// are kept but reported through the warning channel.
	Bounded bool `yaml:"bounded"`
}

// DefaultMetricDefinitions returns the built-in metric set matching the
// dashboard's admission visual: five metrics per round, two rounds.
func DefaultMetricDefinitions() []MetricDefinition {
	return []MetricDefinition{
		{Name: MetricCapacity, Round: 1, Property: "k1_kapacita", NativeName: "k1_kapacita"},
		{Name: MetricApplications, Round: 1, Property: "k1_pocet_podanych", NativeName: "Počet podaných přihlášek celkem1"},
		{Name: MetricAccepted, Round: 1, Property: "k1_pocet_prijatych", NativeName: "Počet přijatých celkem1"},
		{Name: MetricMinScore, Round: 1, Property: "k1_min_skor", NativeName: "Min. počet bodů", Bounded: true},
		{Name: MetricAvgScore, Round: 1, Property: "k1_prum_skor", NativeName: "Prům. počet bodů", Bounded: true},
		{Name: MetricCapacity, Round: 2, Property: "k2_kapacita", NativeName: "Kap. 1"},
		{Name: MetricApplications, Round: 2, Property: "k2_pocet_podanych", NativeName: "Počet podaných přihlášek celkem 1"},
		{Name: MetricAccepted, Round: 2, Property: "k2_pocet_prijatych", NativeName: "Počet přijatých celkem 1"},
		{Name: MetricMinScore, Round: 2, Property: "k2_min_skor", NativeName: "Min. počet bodů ", Bounded: true},
		{Name: MetricAvgScore, Round: 2, Property: "k2_prum_skor", NativeName: "Prům. počet bodů ", Bounded: true},
	}
}

// LoadMetricDefinitions reads metric definitions from a YAML file. An empty
// path returns the built-in set.
func LoadMetricDefinitions(path string) ([]MetricDefinition, error) {
	if path == "" {
		return DefaultMetricDefinitions(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: read %s", path)
	}
	var defs []MetricDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, eris.Wrapf(err, "metrics: parse %s", path)
	}
	if len(defs) == 0 {
		return nil, eris.Errorf("metrics: %s defines no metrics", path)
	}
	return defs, nil
}

// MetricNames returns the unique canonical names in definition order.
func MetricNames(defs []MetricDefinition) []string {
	seen := make(map[string]bool, len(defs))
	var names []string
	for _, d := range defs {
		if seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		names = append(names, d.Name)
	}
	return names
}

// Rounds returns the distinct rounds in ascending order.
func Rounds(defs []MetricDefinition) []int {
	seen := make(map[int]bool, 2)
	var rounds []int
	for _, d := range defs {
		if seen[d.Round] {
			continue
		}
		seen[d.Round] = true
		rounds = append(rounds, d.Round)
	}
	sort.Ints(rounds)
	return rounds
}
