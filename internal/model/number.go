package model

import "strconv"

// Number is the canonical number-or-missing representation every stage
// downstream of normalization relies on. The zero value is missing.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a present Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// String renders the number for flat-file output. Missing renders as "".
func (n Number) String() string {
	if !n.Valid {
		return ""
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// IntOrNil returns the value as *int for nullable integer columns.
func (n Number) IntOrNil() *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Value)
	return &v
}
