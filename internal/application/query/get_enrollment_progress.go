package query

import (
	"context"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ENROLLMENT PROGRESS QUERY
// Прогресс всегда пересчитывается из LessonProgress; сохранённое значение
// возвращается рядом для сравнения.
// ══════════════════════════════════════════════════════════════════════════════

// GetEnrollmentProgressQuery содержит параметры запроса.
type GetEnrollmentProgressQuery struct {
	Actor shared.Principal

	// UserID - learner; пусто = сам вызывающий.
	UserID   string
	CourseID string
}

// EnrollmentProgressDTO - DTO прогресса записи на курс.
type EnrollmentProgressDTO struct {
	EnrollmentID string `json:"enrollment_id"`
	UserID       string `json:"user_id"`
	CourseID     string `json:"course_id"`

	// Progress is recomputed on read; StoredProgress is the cached column.
	Progress       int  `json:"progress"`
	StoredProgress int  `json:"stored_progress"`
	Stale          bool `json:"stale"`

	Status        string     `json:"status"`
	CompletedDays int        `json:"completed_days"`
	TotalDays     int        `json:"total_days"`
	GatedDays     int        `json:"gated_days"`
	CurrentDay    int        `json:"current_day"`
	EnrolledAt    time.Time  `json:"enrolled_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// GetEnrollmentProgressHandler обрабатывает запрос прогресса.
type GetEnrollmentProgressHandler struct {
	store progress.Store
}

// NewGetEnrollmentProgressHandler создаёт новый обработчик.
func NewGetEnrollmentProgressHandler(store progress.Store) *GetEnrollmentProgressHandler {
	return &GetEnrollmentProgressHandler{store: store}
}

// Handle выполняет запрос. Missing course or enrollment is NotFound.
func (h *GetEnrollmentProgressHandler) Handle(ctx context.Context, q GetEnrollmentProgressQuery) (*EnrollmentProgressDTO, error) {
	if err := requireCourse("GetEnrollmentProgress", q.CourseID); err != nil {
		return nil, err
	}
	userID, err := subjectFor("GetEnrollmentProgress", q.Actor, q.UserID)
	if err != nil {
		return nil, err
	}

	snap, err := progress.LoadSnapshot(ctx, h.store, userID, q.CourseID, progress.LoadOptions{})
	if err != nil {
		return nil, err
	}

	e := snap.Enrollment
	computed, ok := snap.Percentage()
	pct := progress.Resolve(e.Progress, computed, ok).Int()

	return &EnrollmentProgressDTO{
		EnrollmentID:   e.ID,
		UserID:         e.UserID,
		CourseID:       e.CourseID,
		Progress:       pct,
		StoredProgress: e.Progress,
		Stale:          pct != e.Progress,
		Status:         string(e.Status),
		CompletedDays:  snap.Outline.CompletedDays(),
		TotalDays:      snap.Catalog.Course.TotalDays,
		GatedDays:      snap.Outline.GatedDays(),
		CurrentDay:     snap.Outline.CurrentDay,
		EnrolledAt:     e.EnrolledAt,
		CompletedAt:    e.CompletedAt,
	}, nil
}
