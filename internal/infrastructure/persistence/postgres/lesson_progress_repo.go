package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// LessonProgressRepository implements enrollment.ProgressRepository for PostgreSQL.
type LessonProgressRepository struct {
	q Querier
}

const lessonProgressColumns = `user_id, lesson_id, video_watched, pdf_viewed, quiz_passed, quiz_score, quiz_attempts, updated_at`

// RecordQuizAttempt upserts the row in one statement: attempts+1, score
// overwritten, pass flag ORed with the stored one.
func (r *LessonProgressRepository) RecordQuizAttempt(ctx context.Context, userID, lessonID string, score float64, passed bool, at time.Time) (*enrollment.LessonProgress, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, quiz_passed, quiz_score, quiz_attempts, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			quiz_attempts = lesson_progress.quiz_attempts + 1,
			quiz_score = EXCLUDED.quiz_score,
			quiz_passed = lesson_progress.quiz_passed OR EXCLUDED.quiz_passed,
			updated_at = EXCLUDED.updated_at
		RETURNING `+lessonProgressColumns,
		userID, lessonID, passed, score, at,
	)

	p, err := scanLessonProgress(row)
	if err != nil {
		return nil, mapError("enrollment", "RecordQuizAttempt", "lesson", lessonID, err)
	}
	return p, nil
}

// MarkViewed sets video_watched or pdf_viewed, creating the row if needed.
func (r *LessonProgressRepository) MarkViewed(ctx context.Context, userID, lessonID string, c enrollment.Component, at time.Time) (*enrollment.LessonProgress, error) {
	var video, pdf bool
	switch c {
	case enrollment.ComponentVideo:
		video = true
	case enrollment.ComponentPDF:
		pdf = true
	default:
		return nil, shared.ValidationError("enrollment", "MarkViewed", shared.CodeValidation, "unknown lesson component")
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO lesson_progress (user_id, lesson_id, video_watched, pdf_viewed, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, lesson_id) DO UPDATE SET
			video_watched = lesson_progress.video_watched OR EXCLUDED.video_watched,
			pdf_viewed = lesson_progress.pdf_viewed OR EXCLUDED.pdf_viewed,
			updated_at = EXCLUDED.updated_at
		RETURNING `+lessonProgressColumns,
		userID, lessonID, video, pdf, at,
	)

	p, err := scanLessonProgress(row)
	if err != nil {
		return nil, mapError("enrollment", "MarkViewed", "lesson", lessonID, err)
	}
	return p, nil
}

// List returns the learner's rows for the given lessons.
func (r *LessonProgressRepository) List(ctx context.Context, userID string, lessonIDs []string) ([]enrollment.LessonProgress, error) {
	if len(lessonIDs) == 0 {
		return []enrollment.LessonProgress{}, nil
	}

	rows, err := r.q.Query(ctx, `
		SELECT `+lessonProgressColumns+`
		FROM lesson_progress
		WHERE user_id = $1 AND lesson_id = ANY($2)
		ORDER BY lesson_id
	`, userID, lessonIDs)
	if err != nil {
		return nil, mapError("enrollment", "ListLessonProgress", "lesson progress", userID, err)
	}
	defer rows.Close()

	result := make([]enrollment.LessonProgress, 0, len(lessonIDs))
	for rows.Next() {
		p, err := scanLessonProgress(rows)
		if err != nil {
			return nil, mapError("enrollment", "ListLessonProgress", "lesson progress", userID, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("enrollment", "ListLessonProgress", "lesson progress", userID, err)
	}
	return result, nil
}

func scanLessonProgress(row pgx.Row) (*enrollment.LessonProgress, error) {
	var p enrollment.LessonProgress
	if err := row.Scan(
		&p.UserID, &p.LessonID, &p.VideoWatched, &p.PDFViewed,
		&p.QuizPassed, &p.QuizScore, &p.QuizAttempts, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}
