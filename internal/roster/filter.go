package roster

import (
	"sort"
	"strings"

	"github.com/classroll/backend/internal/normalize"
)

// PresenceFilter narrows a view by presence state.
type PresenceFilter string

const (
	PresenceAll     PresenceFilter = "all"
	PresencePresent PresenceFilter = "present"
	PresenceAbsent  PresenceFilter = "absent"
)

// Filter is the set of conjunctive predicates applied to a collection.
// Empty string fields mean "all". Search matches case-insensitively as a
// substring against full name or contact number.
type Filter struct {
	Course   string
	Batch    string
	Shift    string
	Presence PresenceFilter
	Search   string
}

// SortKey names a sortable column.
type SortKey string

const (
	SortByName     SortKey = "name"
	SortByCourse   SortKey = "course"
	SortByBatch    SortKey = "batch"
	SortByShift    SortKey = "shift"
	SortByContact  SortKey = "contact"
	SortByPresence SortKey = "presence"
)

// Sort orders a view by a column key. A zero Sort leaves input order intact.
type Sort struct {
	Key  SortKey
	Desc bool
}

// Apply returns the visible, ordered subset of in for the given specs.
// Pure: in is never mutated and the result is a fresh slice. An empty
// collection yields an empty result; an all-pass filter with a zero sort
// yields the input as provided.
func Apply(in []Attendee, f Filter, s Sort) []Attendee {
	out := make([]Attendee, 0, len(in))
	for _, a := range in {
		if f.matches(a) {
			out = append(out, a)
		}
	}
	if s.Key != "" {
		sortAttendees(out, s)
	}
	return out
}

func (f Filter) matches(a Attendee) bool {
	if f.Course != "" && a.Course != f.Course {
		return false
	}
	if f.Batch != "" && a.Batch != f.Batch {
		return false
	}
	if f.Shift != "" && a.Shift != f.Shift {
		return false
	}
	switch f.Presence {
	case PresencePresent:
		if !a.IsPresent {
			return false
		}
	case PresenceAbsent:
		if a.IsPresent {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(a.FullName), q) &&
			!strings.Contains(strings.ToLower(a.ContactNo), q) {
			return false
		}
	}
	return true
}

func sortAttendees(list []Attendee, s Sort) {
	less := lessFunc(s.Key)
	sort.SliceStable(list, func(i, j int) bool {
		if s.Desc {
			i, j = j, i
		}
		return less(list[i], list[j])
	})
}

func lessFunc(key SortKey) func(a, b Attendee) bool {
	switch key {
	case SortByCourse:
		// Canonical keys so sorting groups the way counting does.
		return func(a, b Attendee) bool {
			return normalize.CourseKey(a.Course) < normalize.CourseKey(b.Course)
		}
	case SortByBatch:
		// Normalized years so "9" does not sort before "10";
		// unparseable batches sort after every real year.
		return func(a, b Attendee) bool {
			return batchRank(a.Batch) < batchRank(b.Batch)
		}
	case SortByShift:
		return func(a, b Attendee) bool { return textLess(a.Shift, b.Shift) }
	case SortByContact:
		return func(a, b Attendee) bool { return textLess(a.ContactNo, b.ContactNo) }
	case SortByPresence:
		return func(a, b Attendee) bool { return !a.IsPresent && b.IsPresent }
	default:
		return func(a, b Attendee) bool { return textLess(a.FullName, b.FullName) }
	}
}

func batchRank(batch string) int {
	if year, ok := normalize.BatchYear(batch); ok {
		return year
	}
	return 1 << 30
}

func textLess(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
