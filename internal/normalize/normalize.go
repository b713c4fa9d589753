// Package normalize turns loosely formatted roster fields into canonical
// comparison keys. All functions are pure and never fail: when a value cannot
// be derived the result says so explicitly instead of raising or inventing one.
package normalize

import (
	"strings"
	"unicode"
)

// UnknownCourse is the canonical key for an empty or missing course name.
const UnknownCourse = "UNKNOWN"

// Two-digit batch entries at or below this value belong to the 2000s;
// anything above belongs to the 1900s. Fixed institutional policy.
const twoDigitCutoff = 30

// Accepted year window for normalized batch years, inclusive.
const (
	minYear = 1980
	maxYear = 2030
)

// CourseKey returns the canonical grouping key for a free-text course name:
// trimmed, upper-cased, with runs of whitespace collapsed to a single space.
// Inputs differing only in case or spacing collapse to the same key.
func CourseKey(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	if len(fields) == 0 {
		return UnknownCourse
	}
	return strings.ToUpper(strings.Join(fields, " "))
}

// BatchYear extracts a 4-digit year from a free-text batch string
// ("2016", "16", "Batch 2016", "2016-2020"). The first maximal run of digits
// is used; 1-2 digit values are disambiguated into a full year, runs longer
// than 4 digits cannot name a year. Years outside [1980, 2030] are rejected.
// ok is false when no acceptable year is present.
func BatchYear(s string) (year int, ok bool) {
	digits := firstDigitRun(s)
	if digits == "" || len(digits) > 4 {
		return 0, false
	}
	n := 0
	for _, r := range digits {
		n = n*10 + int(r-'0')
	}
	if len(digits) <= 2 {
		if n <= twoDigitCutoff {
			n += 2000
		} else {
			n += 1900
		}
	}
	if n < minYear || n > maxYear {
		return 0, false
	}
	return n, true
}

func firstDigitRun(s string) string {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i]
		}
	}
	if start >= 0 {
		return s[start:]
	}
	return ""
}
