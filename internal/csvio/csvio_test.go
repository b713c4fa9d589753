package csvio

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/backend/internal/roster"
)

func TestParseRosterFuzzyHeaders(t *testing.T) {
	in := "Student Name,Program,Admission Year,SHIFT,Mobile No,Attendance\n" +
		"John Doe,BCA,2024,Morning,9876543210,present\n" +
		"Jane Roe,B.Com,2023,,,\n"
	rows, err := ParseRoster(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{
		FullName:  "John Doe",
		Course:    "BCA",
		Batch:     "2024",
		Shift:     "Morning",
		ContactNo: "9876543210",
		Presence:  PresencePresent,
	}, rows[0])
	assert.Equal(t, "Jane Roe", rows[1].FullName)
	assert.Equal(t, PresenceUnspecified, rows[1].Presence)
}

func TestParseRosterSkipsBlankNames(t *testing.T) {
	in := "name,course,batch\nJohn Doe,CS,2024\n,EC,2025\n"
	rows, err := ParseRoster(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "John Doe", rows[0].FullName)
}

func TestParseRosterKeepsEmptyCourseAndBatch(t *testing.T) {
	in := "name,course,batch\nJohn Doe,,\n"
	rows, err := ParseRoster(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Course)
	assert.Equal(t, "", rows[0].Batch)
}

func TestParseRosterMissingRequiredColumns(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "no batch", header: "name,course,shift", want: "batch"},
		{name: "no course", header: "name,batch", want: "course"},
		{name: "nothing resolves", header: "a,b,c", want: "name, course, batch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ParseRoster(strings.NewReader(tt.header + "\nv1,v2,v3\n"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Nil(t, rows)
		})
	}
}

func TestParseRosterStructuralErrorAbortsWhole(t *testing.T) {
	in := "name,course,batch\nJohn Doe,CS,2024\n\"broken,EC,2025\n"
	rows, err := ParseRoster(strings.NewReader(in))
	require.Error(t, err)
	assert.Nil(t, rows)
}

func TestParseRosterEmptyInput(t *testing.T) {
	_, err := ParseRoster(strings.NewReader(""))
	require.Error(t, err)
}

func TestParsePresenceValues(t *testing.T) {
	tests := []struct {
		in   string
		want Presence
	}{
		{"yes", PresencePresent},
		{"TRUE", PresencePresent},
		{"1", PresencePresent},
		{"Present", PresencePresent},
		{"no", PresenceAbsent},
		{"False", PresenceAbsent},
		{"0", PresenceAbsent},
		{"ABSENT", PresenceAbsent},
		{"", PresenceUnspecified},
		{"maybe", PresenceUnspecified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parsePresence(tt.in), "input %q", tt.in)
	}
}

func TestWriteRosterQuotesDelimiters(t *testing.T) {
	checkedIn := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	attendees := []roster.Attendee{
		{FullName: "Doe, John", Course: "BCA", Batch: "2024", Shift: "Morning", ContactNo: "98765,43210", IsPresent: true, CheckedInAt: &checkedIn},
		{FullName: "Jane Roe", Course: "B.Com", Batch: "2023"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRoster(&buf, attendees))

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Full Name,Course,Shift,Batch,Contact No.,Present,Checked In At", lines[0])
	assert.Contains(t, lines[1], `"Doe, John"`)
	assert.Contains(t, lines[1], `"98765,43210"`)
	assert.Contains(t, lines[1], "Yes")
	assert.Contains(t, lines[1], "2024-03-01 09:30:00")
	assert.Contains(t, lines[2], "No")
	assert.True(t, strings.HasSuffix(lines[2], ","), "empty checked-in renders as empty field")
}

func TestRoundTrip(t *testing.T) {
	now := time.Now()
	attendees := []roster.Attendee{
		{FullName: "Asha Verma", Course: "BCA", Batch: "2016", Shift: "Morning", ContactNo: "9876500001"},
		{FullName: "Khan, Bilal", Course: "B.Com", Batch: "16", ContactNo: "9876500002", IsPresent: true, CheckedInAt: &now},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRoster(&buf, attendees))

	rows, err := ParseRoster(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(attendees))
	for i, a := range attendees {
		assert.Equal(t, a.FullName, rows[i].FullName)
		assert.Equal(t, a.Course, rows[i].Course)
		assert.Equal(t, a.Batch, rows[i].Batch)
		assert.Equal(t, a.Shift, rows[i].Shift)
		assert.Equal(t, a.ContactNo, rows[i].ContactNo)
	}
	assert.Equal(t, PresenceAbsent, rows[0].Presence, "exported No maps back to absent")
	assert.Equal(t, PresencePresent, rows[1].Presence)
}
