// Package store is the durable attendee collection backed by PostgreSQL.
// Every mutation keeps is_present and checked_in_at paired in a single
// statement; the schema enforces the pairing with a CHECK constraint.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/classroll/backend/internal/csvio"
	"github.com/classroll/backend/internal/roster"
)

// ErrNotFound is returned when a record id does not exist in the collection.
var ErrNotFound = errors.New("attendee not found")

const attendeeColumns = "id, full_name, course, batch, shift, contact_no, is_present, checked_in_at, created_at, updated_at"

// Repository persists attendees.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an attendee repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilter is the server-side prefilter. Zero-value fields are ignored;
// search and sorting stay client-side in the roster engine.
type ListFilter struct {
	Course      string
	Batch       string
	Shift       string
	PresentOnly bool
}

// ListAll returns the complete collection in stable iteration order.
func (r *Repository) ListAll(ctx context.Context) ([]roster.Attendee, error) {
	return r.list(ctx, ListFilter{})
}

// ListFiltered returns the collection narrowed by the prefilter.
func (r *Repository) ListFiltered(ctx context.Context, f ListFilter) ([]roster.Attendee, error) {
	return r.list(ctx, f)
}

func (r *Repository) list(ctx context.Context, f ListFilter) ([]roster.Attendee, error) {
	q := "SELECT " + attendeeColumns + " FROM attendees"
	var (
		conds []string
		args  []interface{}
	)
	if f.Course != "" {
		args = append(args, f.Course)
		conds = append(conds, fmt.Sprintf("course = $%d", len(args)))
	}
	if f.Batch != "" {
		args = append(args, f.Batch)
		conds = append(conds, fmt.Sprintf("batch = $%d", len(args)))
	}
	if f.Shift != "" {
		args = append(args, f.Shift)
		conds = append(conds, fmt.Sprintf("shift = $%d", len(args)))
	}
	if f.PresentOnly {
		conds = append(conds, "is_present")
	}
	for i, c := range conds {
		if i == 0 {
			q += " WHERE " + c
		} else {
			q += " AND " + c
		}
	}
	q += " ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []roster.Attendee
	for rows.Next() {
		var a roster.Attendee
		if err := scanAttendee(rows, &a); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// GetByID returns a single attendee.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*roster.Attendee, error) {
	q := "SELECT " + attendeeColumns + " FROM attendees WHERE id = $1"
	var a roster.Attendee
	if err := scanAttendee(r.pool.QueryRow(ctx, q, id), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Stats returns total/present/absent counts with a rounded percentage.
func (r *Repository) Stats(ctx context.Context) (roster.Stats, error) {
	const q = `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_present) FROM attendees`
	var s roster.Stats
	if err := r.pool.QueryRow(ctx, q).Scan(&s.Total, &s.Present); err != nil {
		return roster.Stats{}, err
	}
	s.Absent = s.Total - s.Present
	if s.Total > 0 {
		s.Percentage = (s.Present*100 + s.Total/2) / s.Total
	}
	return s, nil
}

// NewAttendee is the creatable subset of an attendee record.
type NewAttendee struct {
	FullName  string
	Course    string
	Batch     string
	Shift     string
	ContactNo string
}

// Create inserts one attendee, absent by default, and returns the stored record.
func (r *Repository) Create(ctx context.Context, in NewAttendee) (*roster.Attendee, error) {
	const q = `INSERT INTO attendees (full_name, course, batch, shift, contact_no)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + attendeeColumns
	var a roster.Attendee
	if err := scanAttendee(r.pool.QueryRow(ctx, q, in.FullName, in.Course, in.Batch, in.Shift, in.ContactNo), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateBulk inserts parsed CSV rows one by one and returns how many landed.
// Rows with an explicit "present" value check in immediately; unspecified and
// absent rows default to absent. Partial progress on failure is reported via
// the count, not rolled back.
func (r *Repository) CreateBulk(ctx context.Context, rows []csvio.Row) (int, error) {
	const q = `INSERT INTO attendees (full_name, course, batch, shift, contact_no, is_present, checked_in_at)
		VALUES ($1, $2, $3, $4, $5, $6, CASE WHEN $6 THEN NOW() ELSE NULL END)`
	imported := 0
	for _, row := range rows {
		present := row.Presence == csvio.PresencePresent
		if _, err := r.pool.Exec(ctx, q, row.FullName, row.Course, row.Batch, row.Shift, row.ContactNo, present); err != nil {
			return imported, fmt.Errorf("insert %q: %w", row.FullName, err)
		}
		imported++
	}
	return imported, nil
}

// SetPresence flips one record. checked_in_at is set to now on the transition
// to present and cleared on the transition to absent, in the same statement.
func (r *Repository) SetPresence(ctx context.Context, id uuid.UUID, isPresent bool) (*roster.Attendee, error) {
	const q = `UPDATE attendees
		SET is_present = $2,
		    checked_in_at = CASE WHEN $2 THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + attendeeColumns
	var a roster.Attendee
	if err := scanAttendee(r.pool.QueryRow(ctx, q, id, isPresent), &a); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// SetPresenceBulk flips a set of records and returns how many were updated.
func (r *Repository) SetPresenceBulk(ctx context.Context, ids []uuid.UUID, isPresent bool) (int, error) {
	const q = `UPDATE attendees
		SET is_present = $2,
		    checked_in_at = CASE WHEN $2 THEN NOW() ELSE NULL END,
		    updated_at = NOW()
		WHERE id = ANY($1)`
	tag, err := r.pool.Exec(ctx, q, ids, isPresent)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes one record permanently. ErrNotFound when it is already gone.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendees WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll clears the collection and returns how many records were removed.
func (r *Repository) DeleteAll(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attendees`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ResetAllPresence forces every record to absent and returns how many flipped.
func (r *Repository) ResetAllPresence(ctx context.Context) (int, error) {
	const q = `UPDATE attendees
		SET is_present = FALSE, checked_in_at = NULL, updated_at = NOW()
		WHERE is_present`
	tag, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// DistinctCourses returns the sorted set of stored course values.
func (r *Repository) DistinctCourses(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT course FROM attendees ORDER BY course`)
}

// DistinctBatches returns the sorted set of stored batch values.
func (r *Repository) DistinctBatches(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT batch FROM attendees ORDER BY batch`)
}

// DistinctShifts returns the sorted set of stored shift values, excluding unset.
func (r *Repository) DistinctShifts(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT shift FROM attendees WHERE shift <> '' ORDER BY shift`)
}

func (r *Repository) distinct(ctx context.Context, q string) ([]string, error) {
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanAttendee(row pgx.Row, a *roster.Attendee) error {
	return row.Scan(&a.ID, &a.FullName, &a.Course, &a.Batch, &a.Shift, &a.ContactNo,
		&a.IsPresent, &a.CheckedInAt, &a.CreatedAt, &a.UpdatedAt)
}
