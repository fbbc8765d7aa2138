package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	q Querier
}

const enrollmentColumns = `id, user_id, course_id, status, progress, enrolled_at, completed_at, dropped_at, updated_at`

// The non-dropped row wins, then the most recent one.
const currentEnrollmentQuery = `
	SELECT ` + enrollmentColumns + `
	FROM enrollments
	WHERE user_id = $1 AND course_id = $2
	ORDER BY (status = 'dropped'), enrolled_at DESC
	LIMIT 1
`

// Create inserts a new enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO enrollments (`+enrollmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.ID, e.UserID, e.CourseID, string(e.Status), e.Progress,
		e.EnrolledAt, e.CompletedAt, e.DroppedAt, e.UpdatedAt)
	return mapError("enrollment", "Create", "enrollment", e.ID, err)
}

// GetByID returns an enrollment by ID.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	e, err := scanEnrollment(row)
	if err != nil {
		return nil, mapError("enrollment", "GetByID", "enrollment", id, err)
	}
	return e, nil
}

// GetCurrent returns the learner's current enrollment in a course.
func (r *EnrollmentRepository) GetCurrent(ctx context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	e, err := scanEnrollment(r.q.QueryRow(ctx, currentEnrollmentQuery, userID, courseID))
	if err != nil {
		return nil, mapError("enrollment", "GetCurrent", "enrollment for course", courseID, err)
	}
	return e, nil
}

// GetCurrentForUpdate is GetCurrent with a row lock.
func (r *EnrollmentRepository) GetCurrentForUpdate(ctx context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	e, err := scanEnrollment(r.q.QueryRow(ctx, currentEnrollmentQuery+` FOR UPDATE`, userID, courseID))
	if err != nil {
		return nil, mapError("enrollment", "GetCurrentForUpdate", "enrollment for course", courseID, err)
	}
	return e, nil
}

// SaveState writes progress and the enrolled->completed promotion.
// Terminal rows keep their status and completed_at is written at most once.
func (r *EnrollmentRepository) SaveState(ctx context.Context, e *enrollment.Enrollment) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE enrollments SET
			progress = $2,
			status = CASE
				WHEN status = 'enrolled' AND $3::text = 'completed' THEN 'completed'
				ELSE status
			END,
			completed_at = CASE
				WHEN status = 'enrolled' AND $3::text = 'completed' THEN COALESCE(completed_at, $4)
				ELSE completed_at
			END,
			updated_at = $5
		WHERE id = $1
		RETURNING `+enrollmentColumns,
		e.ID, e.Progress, string(e.Status), e.CompletedAt, e.UpdatedAt,
	)

	stored, err := scanEnrollment(row)
	if err != nil {
		return nil, mapError("enrollment", "SaveState", "enrollment", e.ID, err)
	}
	return stored, nil
}

// Drop moves an enrolled row to dropped. Dropping a dropped row is a no-op;
// a completed row cannot be dropped.
func (r *EnrollmentRepository) Drop(ctx context.Context, id string, at time.Time) (*enrollment.Enrollment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE enrollments SET status = 'dropped', dropped_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'enrolled'
		RETURNING `+enrollmentColumns, id, at)

	e, err := scanEnrollment(row)
	if err == nil {
		return e, nil
	}
	if !IsNoRows(err) {
		return nil, mapError("enrollment", "Drop", "enrollment", id, err)
	}

	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == enrollment.StatusCompleted {
		return nil, shared.ErrInvalidTransition
	}
	return existing, nil
}

// ListEnrolled pages through active enrollments by id.
func (r *EnrollmentRepository) ListEnrolled(ctx context.Context, afterID string, limit int) ([]enrollment.Enrollment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+enrollmentColumns+`
		FROM enrollments
		WHERE status = 'enrolled' AND id > $1
		ORDER BY id
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, mapError("enrollment", "ListEnrolled", "enrollments", afterID, err)
	}
	defer rows.Close()

	result := make([]enrollment.Enrollment, 0, limit)
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, mapError("enrollment", "ListEnrolled", "enrollments", afterID, err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("enrollment", "ListEnrolled", "enrollments", afterID, err)
	}
	return result, nil
}

func scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var status string
	if err := row.Scan(
		&e.ID, &e.UserID, &e.CourseID, &status, &e.Progress,
		&e.EnrolledAt, &e.CompletedAt, &e.DroppedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	e.Status = enrollment.Status(status)
	return &e, nil
}
