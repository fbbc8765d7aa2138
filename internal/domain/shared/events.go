package shared

import (
	"time"
)

// EventType names a domain event on the bus and on the wire.
type EventType string

// Events are published only after the fact they describe is stored.
const (
	EventEnrolled            EventType = "enrollment.enrolled"
	EventEnrollmentDropped   EventType = "enrollment.dropped"
	EventEnrollmentCompleted EventType = "enrollment.completed"

	EventQuizAttempted EventType = "progress.quiz_attempted"
	EventDayUnlocked   EventType = "progress.day_unlocked"

	EventAttendanceMarked EventType = "attendance.marked"

	EventCatalogImported EventType = "catalog.imported"
)

// Event is what handlers receive. Payload is the only part that survives
// a trip through another instance, so handlers read data from it.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]any
}

// BaseEvent carries the envelope fields; concrete events embed it and add Payload.
type BaseEvent struct {
	Type      EventType `json:"type"`
	At        time.Time `json:"occurred_at"`
	Aggregate string    `json:"aggregate_id"`
}

func NewBaseEvent(t EventType, aggregateID string) BaseEvent {
	return BaseEvent{Type: t, At: time.Now().UTC(), Aggregate: aggregateID}
}

func (e BaseEvent) EventType() EventType  { return e.Type }
func (e BaseEvent) OccurredAt() time.Time { return e.At }
func (e BaseEvent) AggregateID() string   { return e.Aggregate }

// learner is the pair every learner-facing event carries.
type learner struct {
	UserID   string `json:"user_id"`
	CourseID string `json:"course_id"`
}

func (l learner) fields(extra map[string]any) map[string]any {
	out := map[string]any{"user_id": l.UserID, "course_id": l.CourseID}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// ───────────────────────────────────────────────────────────────────────────
// Зачисление
// ───────────────────────────────────────────────────────────────────────────

// EnrolledEvent: aggregate is the enrollment id.
type EnrolledEvent struct {
	BaseEvent
	learner
}

func (e EnrolledEvent) Payload() map[string]any { return e.fields(nil) }

func NewEnrolledEvent(enrollmentID, userID, courseID string) EnrolledEvent {
	return EnrolledEvent{NewBaseEvent(EventEnrolled, enrollmentID), learner{userID, courseID}}
}

type EnrollmentDroppedEvent struct {
	BaseEvent
	learner
	Progress int `json:"progress"`
}

func (e EnrollmentDroppedEvent) Payload() map[string]any {
	return e.fields(map[string]any{"progress": e.Progress})
}

func NewEnrollmentDroppedEvent(enrollmentID, userID, courseID string, progress int) EnrollmentDroppedEvent {
	return EnrollmentDroppedEvent{
		BaseEvent: NewBaseEvent(EventEnrollmentDropped, enrollmentID),
		learner:   learner{userID, courseID},
		Progress:  progress,
	}
}

// EnrollmentCompletedEvent is published once per enrollment, on the
// enrolled to completed transition.
type EnrollmentCompletedEvent struct {
	BaseEvent
	learner
	CompletedAt time.Time `json:"completed_at"`
}

func (e EnrollmentCompletedEvent) Payload() map[string]any {
	return e.fields(map[string]any{"completed_at": e.CompletedAt})
}

func NewEnrollmentCompletedEvent(enrollmentID, userID, courseID string, completedAt time.Time) EnrollmentCompletedEvent {
	return EnrollmentCompletedEvent{
		BaseEvent:   NewBaseEvent(EventEnrollmentCompleted, enrollmentID),
		learner:     learner{userID, courseID},
		CompletedAt: completedAt,
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Прогресс
// ───────────────────────────────────────────────────────────────────────────

// QuizAttemptedEvent: aggregate is the lesson id.
type QuizAttemptedEvent struct {
	BaseEvent
	learner
	LessonID  string  `json:"lesson_id"`
	DayNumber int     `json:"day_number"`
	Score     float64 `json:"score"`
	Passed    bool    `json:"passed"`
	Attempts  int     `json:"attempts"`
}

func (e QuizAttemptedEvent) Payload() map[string]any {
	return e.fields(map[string]any{
		"lesson_id":  e.LessonID,
		"day_number": e.DayNumber,
		"score":      e.Score,
		"passed":     e.Passed,
		"attempts":   e.Attempts,
	})
}

func NewQuizAttemptedEvent(userID, courseID, lessonID string, day int, score float64, passed bool, attempts int) QuizAttemptedEvent {
	return QuizAttemptedEvent{
		BaseEvent: NewBaseEvent(EventQuizAttempted, lessonID),
		learner:   learner{userID, courseID},
		LessonID:  lessonID,
		DayNumber: day,
		Score:     score,
		Passed:    passed,
		Attempts:  attempts,
	}
}

// DayUnlockedEvent: aggregate is the course id.
type DayUnlockedEvent struct {
	BaseEvent
	learner
	DayNumber int `json:"day_number"`
}

func (e DayUnlockedEvent) Payload() map[string]any {
	return e.fields(map[string]any{"day_number": e.DayNumber})
}

func NewDayUnlockedEvent(userID, courseID string, day int) DayUnlockedEvent {
	return DayUnlockedEvent{
		BaseEvent: NewBaseEvent(EventDayUnlocked, courseID),
		learner:   learner{userID, courseID},
		DayNumber: day,
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Посещаемость
// ───────────────────────────────────────────────────────────────────────────

// AttendanceMarkedEvent: Created is false when an existing record was updated.
type AttendanceMarkedEvent struct {
	BaseEvent
	learner
	DayNumber int    `json:"day_number"`
	Status    string `json:"status"`
	Created   bool   `json:"created"`
}

func (e AttendanceMarkedEvent) Payload() map[string]any {
	return e.fields(map[string]any{
		"day_number": e.DayNumber,
		"status":     e.Status,
		"created":    e.Created,
	})
}

func NewAttendanceMarkedEvent(attendanceID, userID, courseID string, day int, status string, created bool) AttendanceMarkedEvent {
	return AttendanceMarkedEvent{
		BaseEvent: NewBaseEvent(EventAttendanceMarked, attendanceID),
		learner:   learner{userID, courseID},
		DayNumber: day,
		Status:    status,
		Created:   created,
	}
}

// ───────────────────────────────────────────────────────────────────────────
// Каталог
// ───────────────────────────────────────────────────────────────────────────

// CatalogImportedEvent has no learner; the aggregate is the course id.
type CatalogImportedEvent struct {
	BaseEvent
	LessonCount int `json:"lesson_count"`
	TotalDays   int `json:"total_days"`
}

func (e CatalogImportedEvent) Payload() map[string]any {
	return map[string]any{"lesson_count": e.LessonCount, "total_days": e.TotalDays}
}

func NewCatalogImportedEvent(courseID string, lessons, totalDays int) CatalogImportedEvent {
	return CatalogImportedEvent{
		BaseEvent:   NewBaseEvent(EventCatalogImported, courseID),
		LessonCount: lessons,
		TotalDays:   totalDays,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// ШИНА
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler errors are logged by the bus, never seen by the publisher.
type EventHandler func(event Event) error

type EventPublisher interface {
	Publish(event Event) error
}

type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	// SubscribeAll receives every event after the typed handlers.
	SubscribeAll(handler EventHandler) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
}
