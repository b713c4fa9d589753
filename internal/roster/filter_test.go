package roster

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testRoster() []Attendee {
	now := time.Now()
	return []Attendee{
		{ID: uuid.New(), FullName: "Asha Verma", Course: "BCA", Batch: "2016", Shift: "Morning", ContactNo: "9876500001"},
		{ID: uuid.New(), FullName: "Bilal Khan", Course: "bca", Batch: "16", Shift: "Evening", ContactNo: "9876500002", IsPresent: true, CheckedInAt: &now},
		{ID: uuid.New(), FullName: "Chitra Rao", Course: "B.Com", Batch: "Batch 1999", Shift: "Morning", ContactNo: "9123400003"},
	}
}

func TestApplyFilters(t *testing.T) {
	in := testRoster()
	tests := []struct {
		name      string
		filter    Filter
		wantNames []string
	}{
		{
			name:      "no constraints keeps everything",
			filter:    Filter{},
			wantNames: []string{"Asha Verma", "Bilal Khan", "Chitra Rao"},
		},
		{
			name:      "course is exact match on the raw value",
			filter:    Filter{Course: "BCA"},
			wantNames: []string{"Asha Verma"},
		},
		{
			name:      "batch exact match",
			filter:    Filter{Batch: "16"},
			wantNames: []string{"Bilal Khan"},
		},
		{
			name:      "shift exact match",
			filter:    Filter{Shift: "Morning"},
			wantNames: []string{"Asha Verma", "Chitra Rao"},
		},
		{
			name:      "present only",
			filter:    Filter{Presence: PresencePresent},
			wantNames: []string{"Bilal Khan"},
		},
		{
			name:      "absent only",
			filter:    Filter{Presence: PresenceAbsent},
			wantNames: []string{"Asha Verma", "Chitra Rao"},
		},
		{
			name:      "search matches name case-insensitively",
			filter:    Filter{Search: "bilal"},
			wantNames: []string{"Bilal Khan"},
		},
		{
			name:      "search matches contact number",
			filter:    Filter{Search: "91234"},
			wantNames: []string{"Chitra Rao"},
		},
		{
			name:      "predicates are conjunctive",
			filter:    Filter{Shift: "Morning", Presence: PresencePresent},
			wantNames: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Apply(in, tt.filter, Sort{})
			names := make([]string, 0, len(got))
			for _, a := range got {
				names = append(names, a.FullName)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := testRoster()
	before := make([]Attendee, len(in))
	copy(before, in)
	Apply(in, Filter{Course: "BCA"}, Sort{Key: SortByName, Desc: true})
	assert.Equal(t, before, in)
}

func TestApplyEmptyCollection(t *testing.T) {
	got := Apply(nil, Filter{Course: "BCA"}, Sort{Key: SortByBatch})
	assert.Empty(t, got)
}

func TestSortByBatchUsesNormalizedYears(t *testing.T) {
	in := testRoster() // batches: "2016", "16", "Batch 1999"
	got := Apply(in, Filter{}, Sort{Key: SortByBatch})
	batches := []string{got[0].Batch, got[1].Batch, got[2].Batch}
	// 1999 first; "2016" and "16" normalize to the same year and keep input order.
	assert.Equal(t, []string{"Batch 1999", "2016", "16"}, batches)
}

func TestSortByBatchUnparseableLast(t *testing.T) {
	in := []Attendee{
		{FullName: "A", Batch: "no digits"},
		{FullName: "B", Batch: "9"},
		{FullName: "C", Batch: "10"},
	}
	got := Apply(in, Filter{}, Sort{Key: SortByBatch})
	assert.Equal(t, []string{"9", "10", "no digits"}, []string{got[0].Batch, got[1].Batch, got[2].Batch})
}

func TestSortByCourseUsesCanonicalKey(t *testing.T) {
	in := []Attendee{
		{FullName: "A", Course: "bsc"},
		{FullName: "B", Course: "B.Com"},
		{FullName: "C", Course: "BCA"},
	}
	got := Apply(in, Filter{}, Sort{Key: SortByCourse})
	assert.Equal(t, []string{"B.Com", "BCA", "bsc"}, []string{got[0].Course, got[1].Course, got[2].Course})
}

func TestSortByPresence(t *testing.T) {
	in := []Attendee{
		{FullName: "A", IsPresent: true},
		{FullName: "B"},
		{FullName: "C", IsPresent: true},
	}
	asc := Apply(in, Filter{}, Sort{Key: SortByPresence})
	assert.False(t, asc[0].IsPresent)
	assert.True(t, asc[1].IsPresent)
	assert.True(t, asc[2].IsPresent)

	desc := Apply(in, Filter{}, Sort{Key: SortByPresence, Desc: true})
	assert.True(t, desc[0].IsPresent)
	assert.True(t, desc[1].IsPresent)
	assert.False(t, desc[2].IsPresent)
}

func TestSortByNameCaseInsensitive(t *testing.T) {
	in := []Attendee{
		{FullName: "charlie"},
		{FullName: "Alice"},
		{FullName: "bob"},
	}
	got := Apply(in, Filter{}, Sort{Key: SortByName})
	assert.Equal(t, []string{"Alice", "bob", "charlie"}, []string{got[0].FullName, got[1].FullName, got[2].FullName})

	desc := Apply(in, Filter{}, Sort{Key: SortByName, Desc: true})
	assert.Equal(t, "charlie", desc[0].FullName)
}

func TestComputeStats(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil))

	in := testRoster()
	got := ComputeStats(in)
	assert.Equal(t, Stats{Total: 3, Present: 1, Absent: 2, Percentage: 33}, got)

	in[0].IsPresent = true
	got = ComputeStats(in)
	assert.Equal(t, Stats{Total: 3, Present: 2, Absent: 1, Percentage: 67}, got)
}

func TestPresentByCourseGroupsCanonically(t *testing.T) {
	in := testRoster() // "BCA" and "bca" must share a bucket
	in[0].IsPresent = true
	got := PresentByCourse(in)
	assert.Equal(t, map[string]int{"BCA": 2}, got)

	in[2].IsPresent = true // course "B.Com"
	got = PresentByCourse(in)
	assert.Equal(t, 1, got["B.COM"])
}
