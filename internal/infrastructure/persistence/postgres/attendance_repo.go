package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
)

// AttendanceRepository implements attendance.Repository for PostgreSQL.
type AttendanceRepository struct {
	q Querier
}

const attendanceColumns = `id, user_id, course_id, day_number, status, date, marked_by, created_at, updated_at`

// Upsert inserts or updates the mark for (user, course, day).
// xmax = 0 only for a freshly inserted row version.
func (r *AttendanceRepository) Upsert(ctx context.Context, rec *attendance.Record) (*attendance.Record, bool, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, course_id, day_number) DO UPDATE SET
			status = EXCLUDED.status,
			date = EXCLUDED.date,
			marked_by = EXCLUDED.marked_by,
			updated_at = EXCLUDED.updated_at
		RETURNING `+attendanceColumns+`, (xmax = 0) AS inserted`,
		rec.ID, rec.UserID, rec.CourseID, rec.DayNumber, string(rec.Status),
		rec.Date, nullableUUID(rec.MarkedBy), rec.CreatedAt, rec.UpdatedAt,
	)

	var inserted bool
	stored, err := scanAttendance(row, &inserted)
	if err != nil {
		return nil, false, mapError("attendance", "Upsert", "attendance", rec.ID, err)
	}
	return stored, inserted, nil
}

// EnsurePresent inserts the record unless the day already has a mark.
func (r *AttendanceRepository) EnsurePresent(ctx context.Context, rec *attendance.Record) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		INSERT INTO attendance (`+attendanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, course_id, day_number) DO NOTHING
	`, rec.ID, rec.UserID, rec.CourseID, rec.DayNumber, string(rec.Status),
		rec.Date, nullableUUID(rec.MarkedBy), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return false, mapError("attendance", "EnsurePresent", "attendance", rec.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// List returns the learner's marks for a course ordered by day.
func (r *AttendanceRepository) List(ctx context.Context, userID, courseID string) ([]attendance.Record, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE user_id = $1 AND course_id = $2
		ORDER BY day_number
	`, userID, courseID)
	if err != nil {
		return nil, mapError("attendance", "List", "attendance", courseID, err)
	}
	defer rows.Close()

	result := make([]attendance.Record, 0)
	for rows.Next() {
		rec, err := scanAttendance(rows, nil)
		if err != nil {
			return nil, mapError("attendance", "List", "attendance", courseID, err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("attendance", "List", "attendance", courseID, err)
	}
	return result, nil
}

func scanAttendance(row pgx.Row, inserted *bool) (*attendance.Record, error) {
	var rec attendance.Record
	var status string
	var markedBy *string

	dest := []any{
		&rec.ID, &rec.UserID, &rec.CourseID, &rec.DayNumber, &status,
		&rec.Date, &markedBy, &rec.CreatedAt, &rec.UpdatedAt,
	}
	if inserted != nil {
		dest = append(dest, inserted)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	rec.Status = attendance.Status(status)
	if markedBy != nil {
		rec.MarkedBy = *markedBy
	}
	return &rec, nil
}

func nullableUUID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
