package model

import "time"

// RecordKey identifies one (school, curriculum, round) row. Uniqueness after
// deduplication holds on this key.
type RecordKey struct {
	SchoolID   string
	Curriculum string
	Detail     string
	Round      int
}

// RawRecord is one (school, curriculum, round) row as extracted, with every
// metric kept as its untyped raw value ("" = absent). Produced once by the
// extractor and never mutated afterward.
type RawRecord struct {
	SchoolID         string
	SchoolName       string
	Region           string
	City             string
	CurriculumCode   string
	CurriculumName   string
	CurriculumDetail string
	Round            int
	ExtractedAt      time.Time
	Metrics          map[string]string
}

// Key returns the dedup key for the record.
func (r RawRecord) Key() RecordKey {
	return RecordKey{
		SchoolID:   r.SchoolID,
		Curriculum: r.CurriculumName,
		Detail:     r.CurriculumDetail,
		Round:      r.Round,
	}
}

// NormalizedRecord is a RawRecord with every metric coerced to the canonical
// number-or-missing type plus the derived acceptance rate.
type NormalizedRecord struct {
	SchoolID         string
	SchoolName       string
	Region           string
	City             string
	CurriculumCode   string
	CurriculumName   string
	CurriculumDetail string
	Round            int
	ExtractedAt      time.Time
	Metrics          map[string]Number
	AcceptanceRate   Number
}

// Key returns the dedup key for the record.
func (r NormalizedRecord) Key() RecordKey {
	return RecordKey{
		SchoolID:   r.SchoolID,
		Curriculum: r.CurriculumName,
		Detail:     r.CurriculumDetail,
		Round:      r.Round,
	}
}

// EnrichStatus classifies the outcome of enriching one record.
type EnrichStatus string

const (
	EnrichCompleted EnrichStatus = "completed"
	EnrichPartial   EnrichStatus = "partial"
	EnrichFailed    EnrichStatus = "failed"
)

// EnrichedRecord is a NormalizedRecord merged with the lookup payloads. A
// record is emitted even when every lookup failed; Status records how much
// of the enrichment took.
type EnrichedRecord struct {
	NormalizedRecord

	TransportAvailable bool
	TransportInfo      string
	TransportDuration  Number
	TransportTransfers Number
	Website            string
	Phone              string
	Email              string
	StreetAddress      string
	Status             EnrichStatus
}
