package normalize

import (
	"sort"

	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// Warning reports a value outside its expected domain. Warnings never block
// the run; the value is kept as-is.
type Warning struct {
	Key    model.RecordKey
	Metric string
	Value  float64
}

// Normalizer coerces raw records into normalized ones.
type Normalizer struct {
	defs []model.MetricDefinition
}

// New creates a Normalizer for the given metric definitions.
func New(defs []model.MetricDefinition) *Normalizer {
	return &Normalizer{defs: defs}
}

// Run normalizes the raw records: every metric becomes number-or-missing,
// the acceptance rate is derived, duplicates on (school, curriculum, round)
// collapse to the most recently extracted row, and the result is sorted by
// (region, school, curriculum, round). Running it again over its own output
// re-encoded as raw values yields the same records.
func (n *Normalizer) Run(raw []model.RawRecord) ([]model.NormalizedRecord, []Warning) {
	bounded := n.boundedMetrics()

	// Dedup keeps the most recently extracted row; on equal timestamps the
	// later input row wins, matching append order in the raw store.
	index := make(map[model.RecordKey]int, len(raw))
	var kept []model.RawRecord
	for _, r := range raw {
		if i, ok := index[r.Key()]; ok {
			if !r.ExtractedAt.Before(kept[i].ExtractedAt) {
				kept[i] = r
			}
			continue
		}
		index[r.Key()] = len(kept)
		kept = append(kept, r)
	}

	var warnings []Warning
	records := make([]model.NormalizedRecord, 0, len(kept))
	for _, r := range kept {
		rec := model.NormalizedRecord{
			SchoolID:         r.SchoolID,
			SchoolName:       r.SchoolName,
			Region:           r.Region,
			City:             r.City,
			CurriculumCode:   r.CurriculumCode,
			CurriculumName:   r.CurriculumName,
			CurriculumDetail: r.CurriculumDetail,
			Round:            r.Round,
			ExtractedAt:      r.ExtractedAt,
			Metrics:          make(map[string]model.Number, len(r.Metrics)),
		}

		for name, value := range r.Metrics {
			num := ParseNumber(value)
			rec.Metrics[name] = num
			if num.Valid && bounded[name] && (num.Value < 0 || num.Value > 100) {
				warnings = append(warnings, Warning{Key: r.Key(), Metric: name, Value: num.Value})
			}
		}

		rec.AcceptanceRate = AcceptanceRate(
			rec.Metrics[model.MetricAccepted],
			rec.Metrics[model.MetricApplications],
		)
		if rec.AcceptanceRate.Valid && rec.AcceptanceRate.Value > 100 {
			warnings = append(warnings, Warning{Key: r.Key(), Metric: "acceptance_rate", Value: rec.AcceptanceRate.Value})
		}

		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Region != b.Region {
			return a.Region < b.Region
		}
		if a.SchoolName != b.SchoolName {
			return a.SchoolName < b.SchoolName
		}
		if a.CurriculumName != b.CurriculumName {
			return a.CurriculumName < b.CurriculumName
		}
		if a.CurriculumDetail != b.CurriculumDetail {
			return a.CurriculumDetail < b.CurriculumDetail
		}
		return a.Round < b.Round
	})

	for _, w := range warnings {
		zap.L().Warn("normalize: value outside expected range",
			zap.String("school", w.Key.SchoolID),
			zap.String("curriculum", w.Key.Curriculum),
			zap.Int("round", w.Key.Round),
			zap.String("metric", w.Metric),
			zap.Float64("value", w.Value),
		)
	}

	zap.L().Info("normalize: run complete",
		zap.Int("input", len(raw)),
		zap.Int("output", len(records)),
		zap.Int("deduplicated", len(raw)-len(kept)),
		zap.Int("warnings", len(warnings)),
	)
	return records, warnings
}

func (n *Normalizer) boundedMetrics() map[string]bool {
	bounded := make(map[string]bool, len(n.defs))
	for _, d := range n.defs {
		if d.Bounded {
			bounded[d.Name] = true
		}
	}
	return bounded
}
