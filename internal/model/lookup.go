package model

import (
	"fmt"
	"time"
)

// LookupKind names one external enrichment query type.
type LookupKind string

const (
	LookupTransport LookupKind = "transport"
	LookupContact   LookupKind = "contact"
)

// LookupOutcome tags the result of one external lookup. ConfirmedAbsent is a
// valid negative answer, not an error; Failed is transient.
type LookupOutcome string

const (
	LookupFound  LookupOutcome = "found"
	LookupAbsent LookupOutcome = "absent"
	LookupFailed LookupOutcome = "failed"
)

// Journey is the best feasible connection reported by the routing provider.
type Journey struct {
	DurationMinutes int    `json:"duration_minutes"`
	Transfers       *int   `json:"transfers,omitempty"`
	Departure       string `json:"departure"`
	Arrival         string `json:"arrival"`
	PlannerURL      string `json:"planner_url,omitempty"`
}

// Summary renders the one-line route description used in the enriched store.
func (j Journey) Summary() string {
	if j.Transfers == nil {
		return fmt.Sprintf("%d min", j.DurationMinutes)
	}
	if *j.Transfers == 1 {
		return fmt.Sprintf("%d min, 1 transfer", j.DurationMinutes)
	}
	return fmt.Sprintf("%d min, %d transfers", j.DurationMinutes, *j.Transfers)
}

// LookupResult is the outcome of one external query. Immutable once cached;
// superseded only by an explicit bypass.
type LookupResult struct {
	Kind     LookupKind    `json:"kind"`
	Outcome  LookupOutcome `json:"outcome"`
	Journey  *Journey      `json:"journey,omitempty"`
	Contact  *Contact      `json:"contact,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	CachedAt time.Time     `json:"cached_at"`
}
