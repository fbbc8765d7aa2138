package enrollment

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции над записями на курс.
type Repository interface {
	// Create вставляет новую запись.
	// Возвращает ErrAlreadyExists, если активная запись для (user, course) уже есть.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID возвращает запись по ID.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// GetCurrent возвращает самую свежую запись пользователя на курс
	// в любом статусе. Возвращает NotFound, если записей нет.
	GetCurrent(ctx context.Context, userID, courseID string) (*Enrollment, error)

	// GetCurrentForUpdate is GetCurrent that also locks the row until the
	// surrounding transaction ends, serializing concurrent recomputes.
	GetCurrentForUpdate(ctx context.Context, userID, courseID string) (*Enrollment, error)

	// SaveState persists progress, status and completed_at with guards:
	// a completed or dropped row keeps its status and a non-null completed_at
	// is never overwritten. Returns the row as stored.
	SaveState(ctx context.Context, e *Enrollment) (*Enrollment, error)

	// Drop переводит активную запись в dropped.
	Drop(ctx context.Context, id string, at time.Time) (*Enrollment, error)

	// ListEnrolled pages through rows in status enrolled ordered by id,
	// starting after the given id ("" for the first page).
	ListEnrolled(ctx context.Context, afterID string, limit int) ([]Enrollment, error)
}

// ProgressRepository определяет операции над LessonProgress.
type ProgressRepository interface {
	// RecordQuizAttempt atomically increments attempts, overwrites the score
	// and ORs the pass flag. Creates the row on first attempt.
	RecordQuizAttempt(ctx context.Context, userID, lessonID string, score float64, passed bool, at time.Time) (*LessonProgress, error)

	// MarkViewed sets the video or pdf flag, creating the row if needed.
	MarkViewed(ctx context.Context, userID, lessonID string, c Component, at time.Time) (*LessonProgress, error)

	// List возвращает прогресс пользователя по указанным урокам.
	// Уроки без записи в результат не попадают.
	List(ctx context.Context, userID string, lessonIDs []string) ([]LessonProgress, error)
}
