package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CatalogRepository implements course.Repository for PostgreSQL.
type CatalogRepository struct {
	q Querier
}

const lessonColumns = `id, course_id, day_number, type, title, content_url, position, questions`

// GetCatalog returns the course with all of its lessons.
func (r *CatalogRepository) GetCatalog(ctx context.Context, courseID string) (*course.Catalog, error) {
	query := `
		SELECT id, title, description, total_days, status, passing_score, created_at, updated_at
		FROM courses
		WHERE id = $1
	`

	var c course.Course
	var status string
	err := r.q.QueryRow(ctx, query, courseID).Scan(
		&c.ID, &c.Title, &c.Description, &c.TotalDays, &status,
		&c.PassingScore, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, mapError("course", "GetCatalog", "course", courseID, err)
	}
	c.Status = course.Status(status)

	rows, err := r.q.Query(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE course_id = $1
		ORDER BY day_number, position, id
	`, courseID)
	if err != nil {
		return nil, mapError("course", "GetCatalog", "lessons", courseID, err)
	}
	defer rows.Close()

	lessons := make([]course.Lesson, 0)
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, mapError("course", "GetCatalog", "lesson", courseID, err)
		}
		lessons = append(lessons, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("course", "GetCatalog", "lessons", courseID, err)
	}

	return &course.Catalog{Course: c, Lessons: lessons}, nil
}

// GetLesson returns a lesson by ID.
func (r *CatalogRepository) GetLesson(ctx context.Context, lessonID string) (*course.Lesson, error) {
	row := r.q.QueryRow(ctx, `SELECT `+lessonColumns+` FROM lessons WHERE id = $1`, lessonID)
	l, err := scanLesson(row)
	if err != nil {
		return nil, mapError("course", "GetLesson", "lesson", lessonID, err)
	}
	return l, nil
}

// SaveCatalog upserts the course, removes lessons missing from the import
// and upserts the rest. Call it inside WithinTx.
func (r *CatalogRepository) SaveCatalog(ctx context.Context, catalog *course.Catalog) error {
	c := catalog.Course

	_, err := r.q.Exec(ctx, `
		INSERT INTO courses (id, title, description, total_days, status, passing_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			total_days = EXCLUDED.total_days,
			status = EXCLUDED.status,
			passing_score = EXCLUDED.passing_score,
			updated_at = EXCLUDED.updated_at
	`, c.ID, c.Title, c.Description, c.TotalDays, string(c.Status), c.PassingScore, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return mapError("course", "SaveCatalog", "course", c.ID, err)
	}

	ids := make([]string, 0, len(catalog.Lessons))
	for _, l := range catalog.Lessons {
		ids = append(ids, l.ID)
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM lessons WHERE course_id = $1 AND NOT (id = ANY($2))`, c.ID, ids); err != nil {
		return mapError("course", "SaveCatalog", "lessons", c.ID, err)
	}

	for _, l := range catalog.Lessons {
		questions, err := json.Marshal(l.Questions)
		if err != nil {
			return fmt.Errorf("marshal questions for lesson %s: %w", l.ID, err)
		}
		if l.Questions == nil {
			questions = []byte("[]")
		}

		tag, err := r.q.Exec(ctx, `
			INSERT INTO lessons (`+lessonColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				day_number = EXCLUDED.day_number,
				type = EXCLUDED.type,
				title = EXCLUDED.title,
				content_url = EXCLUDED.content_url,
				position = EXCLUDED.position,
				questions = EXCLUDED.questions
			WHERE lessons.course_id = EXCLUDED.course_id
		`, l.ID, c.ID, l.DayNumber, string(l.Type), l.Title, l.ContentURL, l.Position, questions)
		if err != nil {
			return mapError("course", "SaveCatalog", "lesson", l.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return shared.NewDomainError("course", "SaveCatalog", shared.ErrAlreadyExists,
				fmt.Sprintf("lesson %s belongs to another course", l.ID)).WithCode(shared.CodeConflict)
		}
	}

	return nil
}

func scanLesson(row pgx.Row) (*course.Lesson, error) {
	var l course.Lesson
	var lessonType string
	var questions []byte

	if err := row.Scan(
		&l.ID, &l.CourseID, &l.DayNumber, &lessonType,
		&l.Title, &l.ContentURL, &l.Position, &questions,
	); err != nil {
		return nil, err
	}
	l.Type = course.LessonType(lessonType)

	if len(questions) > 0 {
		if err := json.Unmarshal(questions, &l.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal questions for lesson %s: %w", l.ID, err)
		}
	}
	if len(l.Questions) == 0 {
		l.Questions = nil
	}
	return &l, nil
}
