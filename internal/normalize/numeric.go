// Package normalize implements the second pipeline stage: coercing raw
// metric values into the canonical number-or-missing type, deriving
// acceptance rates, deduplicating, and sorting.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// placeholders are the tokens the dashboard emits for "no data". They map
// to missing, never to zero.
var placeholders = map[string]bool{
	"":    true,
	"-":   true,
	"–":   true,
	"—":   true,
	"n/a": true,
	"n.a": true,
}

// ParseNumber coerces one raw value into the canonical number-or-missing
// form. It strips the scraped-text artifacts the dashboard is known to
// produce ("59b.", "45,5 %", "120 (21+38+59+0+2)"), reinterprets the Czech
// decimal comma and space thousands separator, and resolves anything still
// unparseable to missing.
func ParseNumber(raw string) model.Number {
	v := strings.TrimSpace(raw)
	if placeholders[strings.ToLower(v)] {
		return model.Number{}
	}

	// Point-count suffix: "59b." -> "59", "64.5b." -> "64.5".
	v = strings.ReplaceAll(v, "b.", "")

	// Composite values like "120 (21+38+59+0+2)" keep the leading total.
	if i := strings.IndexByte(v, '('); i >= 0 {
		v = v[:i]
	}

	v = strings.ReplaceAll(v, "%", "")

	// Czech locale: space (or NBSP) groups thousands, comma marks decimals.
	v = strings.ReplaceAll(v, "\u00a0", "")
	v = strings.ReplaceAll(v, " ", "")
	v = strings.ReplaceAll(v, ",", ".")

	v = strings.TrimRight(v, ".")
	if v == "" {
		return model.Number{}
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return model.Number{}
	}
	return model.Num(f)
}

// AcceptanceRate derives accepted/applications as a percentage rounded to
// two decimals. Zero or missing applications yield missing, never zero and
// never an error.
func AcceptanceRate(accepted, applications model.Number) model.Number {
	if !accepted.Valid || !applications.Valid || applications.Value == 0 {
		return model.Number{}
	}
	rate := accepted.Value / applications.Value * 100
	return model.Num(round2(rate))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
