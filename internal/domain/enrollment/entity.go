// Package enrollment содержит модель записи на курс и прогресса по урокам.
//
// Enrollment хранит кэшированный процент прогресса; источник истины -
// записи LessonProgress. Статус меняется только по переходам
// enrolled → completed и enrolled → dropped, оба конечные.
package enrollment

import (
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет статус записи на курс.
type Status string

const (
	StatusEnrolled  Status = "enrolled"
	StatusCompleted Status = "completed"
	StatusDropped   Status = "dropped"
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusEnrolled, StatusCompleted, StatusDropped:
		return true
	}
	return false
}

// IsTerminal reports whether no transition leaves this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusDropped
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment - запись пользователя на курс.
type Enrollment struct {
	ID          string
	UserID      string
	CourseID    string
	Status      Status
	Progress    int
	EnrolledAt  time.Time
	CompletedAt *time.Time
	DroppedAt   *time.Time
	UpdatedAt   time.Time
}

// New создаёт новую активную запись с нулевым прогрессом.
func New(id, userID, courseID string, now time.Time) *Enrollment {
	return &Enrollment{
		ID:         id,
		UserID:     userID,
		CourseID:   courseID,
		Status:     StatusEnrolled,
		Progress:   0,
		EnrolledAt: now,
		UpdatedAt:  now,
	}
}

// IsActive reports whether the learner may still make progress.
func (e *Enrollment) IsActive() bool {
	return e.Status == StatusEnrolled
}

// Transition is the outcome of applying a recomputed percentage.
type Transition struct {
	PreviousStatus   Status
	PreviousProgress int
	Completed        bool
}

// ApplyProgress stores a recomputed percentage and promotes enrolled to completed at 100.
// completed_at is set once; dropped and completed rows never change status.
func (e *Enrollment) ApplyProgress(pct shared.Percentage, now time.Time) Transition {
	t := Transition{PreviousStatus: e.Status, PreviousProgress: e.Progress}
	e.Progress = pct.Int()
	if e.Status == StatusEnrolled && pct.IsComplete() {
		e.Status = StatusCompleted
		if e.CompletedAt == nil {
			at := now
			e.CompletedAt = &at
		}
		t.Completed = true
	}
	e.UpdatedAt = now
	return t
}

// Drop переводит запись в dropped. Повторный вызов ничего не меняет.
func (e *Enrollment) Drop(now time.Time) (bool, error) {
	switch e.Status {
	case StatusDropped:
		return false, nil
	case StatusCompleted:
		return false, shared.ErrInvalidTransition
	}
	e.Status = StatusDropped
	at := now
	e.DroppedAt = &at
	e.UpdatedAt = now
	return true, nil
}

// CheckInvariants verifies completed_at is set iff the status is completed.
func (e *Enrollment) CheckInvariants() error {
	if !e.Status.IsValid() {
		return shared.ValidationError("enrollment", "CheckInvariants", shared.CodeInvalidStatus, "unknown enrollment status")
	}
	if e.Progress < 0 || e.Progress > 100 {
		return shared.ValidationError("enrollment", "CheckInvariants", shared.CodeValidation, "progress out of range")
	}
	if (e.CompletedAt != nil) != (e.Status == StatusCompleted) {
		return shared.NewDomainError("enrollment", "CheckInvariants", shared.ErrInvalidState,
			"completed_at must be set iff status is completed")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// Component is a viewable part of a day.
type Component string

const (
	ComponentVideo Component = "video"
	ComponentPDF   Component = "pdf"
)

// LessonProgress - прогресс пользователя по одному уроку.
type LessonProgress struct {
	UserID       string
	LessonID     string
	VideoWatched bool
	PDFViewed    bool
	QuizPassed   bool
	QuizScore    *float64
	QuizAttempts int
	UpdatedAt    time.Time
}

// NewLessonProgress создаёт пустую запись прогресса.
func NewLessonProgress(userID, lessonID string, now time.Time) *LessonProgress {
	return &LessonProgress{UserID: userID, LessonID: lessonID, UpdatedAt: now}
}

// RecordAttempt counts an attempt, overwrites the score and keeps a prior pass.
func (p *LessonProgress) RecordAttempt(score float64, passed bool, now time.Time) {
	p.QuizAttempts++
	s := score
	p.QuizScore = &s
	p.QuizPassed = p.QuizPassed || passed
	p.UpdatedAt = now
}

// MarkViewed sets the flag for the given component.
func (p *LessonProgress) MarkViewed(c Component, now time.Time) {
	switch c {
	case ComponentVideo:
		p.VideoWatched = true
	case ComponentPDF:
		p.PDFViewed = true
	}
	p.UpdatedAt = now
}

// PassedSet collects lesson ids with a recorded quiz pass.
func PassedSet(records []LessonProgress) map[string]bool {
	passed := make(map[string]bool, len(records))
	for _, r := range records {
		if r.QuizPassed {
			passed[r.LessonID] = true
		}
	}
	return passed
}
