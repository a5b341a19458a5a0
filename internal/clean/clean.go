// Package clean normalizes raw snapshot values to typed values or nil.
//
// The federal snapshot files encode "not reported" several different ways:
// blank cells, the tokens NA / N/A / nan / NULL, and the negative sentinel
// codes -2, -3 and -999. All of them canonicalize to nil here so the store
// only ever sees NULL for missing data. Negative numbers are never
// legitimate values in this model (rates, counts, dollar amounts), so any
// negative numeric input also becomes nil.
package clean

import (
	"strconv"
	"strings"
)

// Kind declares the target type of a cleaned value.
type Kind int

const (
	// Text keeps the trimmed string as-is when it is not a sentinel.
	Text Kind = iota
	// Numeric parses the value and rejects negatives; unparseable input is
	// treated as absent rather than stored literally.
	Numeric
)

// sentinels are the raw tokens meaning "value not reported". Matching is
// case-sensitive after trimming, mirroring the upstream file conventions.
var sentinels = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"nan":  {},
	"NULL": {},
	"-3":   {},
	"-2":   {},
	"-999": {},
}

// Sentinel reports whether the trimmed token is a known missing-data marker.
func Sentinel(s string) bool {
	_, ok := sentinels[strings.TrimSpace(s)]
	return ok
}

// Value cleans one raw scalar for the declared kind. The result is either a
// value of that kind (string, int64 or float64) or nil. Every input has a
// defined output; Value never panics.
func Value(v any, kind Kind) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if _, ok := sentinels[s]; ok {
			return nil
		}
		if kind == Text {
			return s
		}
		return parseNumeric(s)
	case int:
		if t < 0 {
			return nil
		}
		return int64(t)
	case int64:
		if t < 0 {
			return nil
		}
		return t
	case float64:
		if t < 0 {
			return nil
		}
		return t
	default:
		// Unknown dynamic type: keep Text values, drop Numeric ones.
		if kind == Text {
			return v
		}
		return nil
	}
}

// parseNumeric converts a non-sentinel string to int64 or float64. Integers
// stay integral so key columns keep their natural type.
func parseNumeric(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i < 0 {
			return nil
		}
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return nil
		}
		return f
	}
	return nil
}
