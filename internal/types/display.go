package types

import "strconv"

// NotApplicable is how unmeasurable readings are displayed.
const NotApplicable = "N/A"

// FormatLevel renders a reading with one decimal and a unit, or N/A when unmeasurable.
func FormatLevel(v float64, unit string) string {
	if !IsMeasured(v) {
		return NotApplicable
	}

	s := strconv.FormatFloat(v, 'f', 1, 64)
	// -0.04 would print as "-0.0".
	if s == "-0.0" {
		s = "0.0"
	}

	if unit == "" {
		return s
	}

	return s + " " + unit
}

// Optional returns a pointer to a measured value, or nil. JSON and Parquet encode nil as null.
func Optional(v float64) *float64 {
	if !IsMeasured(v) {
		return nil
	}

	return &v
}
