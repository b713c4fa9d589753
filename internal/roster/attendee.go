// Package roster holds the attendee domain model and the pure filter/sort
// engine shared by the table, admin and print surfaces.
package roster

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/classroll/backend/internal/normalize"
)

// Attendee is one person tracked for attendance.
type Attendee struct {
	ID          uuid.UUID  `json:"id"`
	FullName    string     `json:"full_name"`
	Course      string     `json:"course"`
	Batch       string     `json:"batch"`
	Shift       string     `json:"shift,omitempty"`
	ContactNo   string     `json:"contact_no,omitempty"`
	IsPresent   bool       `json:"is_present"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Stats summarizes presence across a collection.
type Stats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Percentage int `json:"percentage"`
}

// ComputeStats counts presence over a collection. Percentage is
// round(present/total*100); zero for an empty collection.
func ComputeStats(attendees []Attendee) Stats {
	s := Stats{Total: len(attendees)}
	for _, a := range attendees {
		if a.IsPresent {
			s.Present++
		}
	}
	s.Absent = s.Total - s.Present
	if s.Total > 0 {
		s.Percentage = int(math.Round(float64(s.Present) / float64(s.Total) * 100))
	}
	return s
}

// PresentByCourse counts present attendees per canonical course key, so
// "bca" and " BCA " land in the same bucket.
func PresentByCourse(attendees []Attendee) map[string]int {
	counts := make(map[string]int)
	for _, a := range attendees {
		if a.IsPresent {
			counts[normalize.CourseKey(a.Course)]++
		}
	}
	return counts
}
