// Package attendance models per-day attendance marks.
// The day is a structured integer, one record per (user, course, day).
package attendance

import (
	"context"
	"strings"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// Status of an attendance mark.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusExcused:
		return true
	}
	return false
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", shared.ValidationError("attendance", "ParseStatus", shared.CodeInvalidStatus,
			"status must be one of present, absent, late, excused")
	}
	return st, nil
}

// Record is a single attendance mark.
type Record struct {
	ID        string
	UserID    string
	CourseID  string
	DayNumber int
	Status    Status
	Date      time.Time
	MarkedBy  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the record against the course length.
func (r *Record) Validate(totalDays int) error {
	if _, err := shared.NewDayNumber(r.DayNumber, totalDays); err != nil {
		return err
	}
	if !r.Status.IsValid() {
		return shared.ValidationError("attendance", "Validate", shared.CodeInvalidStatus, "unknown attendance status")
	}
	if r.Date.IsZero() {
		return shared.ValidationError("attendance", "Validate", shared.CodeValidation, "date is required")
	}
	return nil
}

// Repository хранит отметки посещаемости.
type Repository interface {
	// Upsert inserts or updates in place by (user, course, day).
	// created is true when a new row was inserted.
	Upsert(ctx context.Context, r *Record) (stored *Record, created bool, err error)

	// EnsurePresent inserts the record only if none exists for the day.
	// Existing marks, including staff marks, are left untouched.
	EnsurePresent(ctx context.Context, r *Record) (created bool, err error)

	// List возвращает отметки пользователя по курсу, упорядоченные по дню.
	List(ctx context.Context, userID, courseID string) ([]Record, error)
}
