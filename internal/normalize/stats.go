package normalize

import (
	"math"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// MetricStats summarizes one metric column over the normalized store.
type MetricStats struct {
	Metric  string
	Round   int
	Present int
	Total   float64
	Min     float64
	Max     float64
	Mean    float64
}

type statKey struct {
	name  string
	round int
}

type agg struct {
	count int
	sum   float64
	min   float64
	max   float64
}

// Summarize computes per-metric summary statistics plus the acceptance-rate
// distribution per round. Missing values are excluded from every aggregate.
func Summarize(records []model.NormalizedRecord, defs []model.MetricDefinition) []MetricStats {
	order := make([]statKey, 0, len(defs)+2)
	for _, d := range defs {
		order = append(order, statKey{d.Name, d.Round})
	}
	for _, round := range model.Rounds(defs) {
		order = append(order, statKey{"acceptance_rate", round})
	}

	aggs := make(map[statKey]*agg, len(order))
	for _, k := range order {
		aggs[k] = &agg{min: math.Inf(1), max: math.Inf(-1)}
	}

	observe := func(name string, round int, n model.Number) {
		if !n.Valid {
			return
		}
		a := aggs[statKey{name, round}]
		if a == nil {
			return
		}
		a.count++
		a.sum += n.Value
		a.min = math.Min(a.min, n.Value)
		a.max = math.Max(a.max, n.Value)
	}

	for _, r := range records {
		for name, n := range r.Metrics {
			observe(name, r.Round, n)
		}
		observe("acceptance_rate", r.Round, r.AcceptanceRate)
	}

	stats := make([]MetricStats, 0, len(order))
	for _, k := range order {
		a := aggs[k]
		s := MetricStats{Metric: k.name, Round: k.round, Present: a.count}
		if a.count > 0 {
			s.Total = a.sum
			s.Min = a.min
			s.Max = a.max
			s.Mean = a.sum / float64(a.count)
		}
		stats = append(stats, s)
	}
	return stats
}
