// Package csvio parses roster CSV uploads and serializes the collection back
// out. Import columns are resolved by fuzzy header matching, not position;
// export uses encoding/csv so delimiter or newline characters in a field
// survive the round trip.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/classroll/backend/internal/roster"
)

// Presence is the tri-state presence value of an imported row. Unspecified
// rows must default to absent when written to the store.
type Presence int

const (
	PresenceUnspecified Presence = iota
	PresencePresent
	PresenceAbsent
)

// Row is one importable attendee candidate.
type Row struct {
	FullName  string
	Course    string
	Batch     string
	Shift     string
	ContactNo string
	Presence  Presence
}

// ExportHeader is the fixed header row of exported rosters.
var ExportHeader = []string{"Full Name", "Course", "Shift", "Batch", "Contact No.", "Present", "Checked In At"}

// checkedInLayout renders check-in timestamps for export.
const checkedInLayout = "2006-01-02 15:04:05"

// Substrings (lower-case) that identify each column role in a header cell.
var (
	nameAliases     = []string{"name"}
	courseAliases   = []string{"course", "program"}
	batchAliases    = []string{"batch", "year"}
	shiftAliases    = []string{"shift"}
	contactAliases  = []string{"contact", "phone", "mobile"}
	presenceAliases = []string{"present", "attendance", "status"}
)

type columns struct {
	name     int
	course   int
	batch    int
	shift    int
	contact  int
	presence int
}

// ParseRoster reads delimited text with a header row and returns attendee
// candidates. The name, course and batch roles are required; if any cannot be
// resolved from the header the whole parse fails and no rows are returned.
// Rows with a blank name are skipped silently. A structurally broken file
// (bad quoting, inconsistent field counts) aborts the parse at the first
// problem.
func ParseRoster(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file: expected a header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		name := strings.TrimSpace(cell(record, cols.name))
		if name == "" {
			continue
		}
		// Empty course/batch values are kept as-is; data quality is a
		// review concern, not grounds for silently dropping a person.
		rows = append(rows, Row{
			FullName:  name,
			Course:    strings.TrimSpace(cell(record, cols.course)),
			Batch:     strings.TrimSpace(cell(record, cols.batch)),
			Shift:     strings.TrimSpace(cell(record, cols.shift)),
			ContactNo: strings.TrimSpace(cell(record, cols.contact)),
			Presence:  parsePresence(cell(record, cols.presence)),
		})
	}
	return rows, nil
}

func resolveColumns(header []string) (columns, error) {
	cols := columns{
		name:     findColumn(header, nameAliases),
		course:   findColumn(header, courseAliases),
		batch:    findColumn(header, batchAliases),
		shift:    findColumn(header, shiftAliases),
		contact:  findColumn(header, contactAliases),
		presence: findColumn(header, presenceAliases),
	}
	var missing []string
	if cols.name < 0 {
		missing = append(missing, "name")
	}
	if cols.course < 0 {
		missing = append(missing, "course")
	}
	if cols.batch < 0 {
		missing = append(missing, "batch")
	}
	if len(missing) > 0 {
		return columns{}, fmt.Errorf("required column(s) not found in header: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

func findColumn(header []string, aliases []string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, alias := range aliases {
			if strings.Contains(h, alias) {
				return i
			}
		}
	}
	return -1
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func parsePresence(s string) Presence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1", "present":
		return PresencePresent
	case "false", "no", "0", "absent":
		return PresenceAbsent
	default:
		return PresenceUnspecified
	}
}

// WriteRoster serializes the complete collection in the given order. Export
// always covers the full collection, never a filtered view; a forgotten
// filter must not thin out a backup.
func WriteRoster(w io.Writer, attendees []roster.Attendee) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, a := range attendees {
		if err := cw.Write(exportRecord(a)); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func exportRecord(a roster.Attendee) []string {
	present := "No"
	if a.IsPresent {
		present = "Yes"
	}
	checkedIn := ""
	if a.CheckedInAt != nil {
		checkedIn = a.CheckedInAt.Local().Format(checkedInLayout)
	}
	return []string{a.FullName, a.Course, a.Shift, a.Batch, a.ContactNo, present, checkedIn}
}

// FormatCheckedIn renders a check-in timestamp the way exports do.
func FormatCheckedIn(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(checkedInLayout)
}
