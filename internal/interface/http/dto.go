package http

import (
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUESTS
// ══════════════════════════════════════════════════════════════════════════════

// SubmitQuizRequest is the body of POST /lessons/{lessonId}/quiz-attempts.
type SubmitQuizRequest struct {
	Answers map[string]int `json:"answers" validate:"required,min=1"`
}

// RecordViewRequest is the body of POST /lessons/{lessonId}/views. The body
// is optional; the lesson type decides which flag is set.
type RecordViewRequest struct{}

// MarkAttendanceRequest is the body of PUT /courses/{courseId}/attendance/{day}.
type MarkAttendanceRequest struct {
	UserID string `json:"user_id" validate:"omitempty,uuid"`
	Status string `json:"status" validate:"required"`
	Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// QuestionRequest is one quiz question in a catalog import.
type QuestionRequest struct {
	ID            string   `json:"id" validate:"required"`
	Prompt        string   `json:"prompt" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2,dive,required"`
	CorrectOption int      `json:"correct_option" validate:"gte=0"`
}

// LessonRequest is one lesson in a catalog import.
type LessonRequest struct {
	ID         string            `json:"id" validate:"required,max=128"`
	DayNumber  int               `json:"day_number" validate:"required,gte=1"`
	Type       string            `json:"type" validate:"required,oneof=video pdf quiz"`
	Title      string            `json:"title" validate:"required"`
	ContentURL string            `json:"content_url"`
	Position   int               `json:"position" validate:"gte=0"`
	Questions  []QuestionRequest `json:"questions" validate:"required_if=Type quiz,dive"`
}

// ImportCourseRequest is the body of PUT /admin/courses/{courseId}.
type ImportCourseRequest struct {
	Title        string          `json:"title" validate:"required"`
	Description  string          `json:"description"`
	TotalDays    int             `json:"total_days" validate:"required,gte=7,lte=30"`
	Status       string          `json:"status" validate:"omitempty,oneof=active inactive archived"`
	PassingScore float64         `json:"passing_score" validate:"gte=0,lte=100"`
	Lessons      []LessonRequest `json:"lessons" validate:"dive"`
}

// toCatalog converts the request into the domain catalog.
func (req ImportCourseRequest) toCatalog(courseID string) course.Catalog {
	status := course.Status(req.Status)
	if status == "" {
		status = course.StatusActive
	}
	c := course.Catalog{
		Course: course.Course{
			ID:           courseID,
			Title:        req.Title,
			Description:  req.Description,
			TotalDays:    req.TotalDays,
			Status:       status,
			PassingScore: req.PassingScore,
		},
		Lessons: make([]course.Lesson, 0, len(req.Lessons)),
	}
	for _, l := range req.Lessons {
		lesson := course.Lesson{
			ID:         l.ID,
			CourseID:   courseID,
			DayNumber:  l.DayNumber,
			Type:       course.LessonType(l.Type),
			Title:      l.Title,
			ContentURL: l.ContentURL,
			Position:   l.Position,
		}
		for _, q := range l.Questions {
			lesson.Questions = append(lesson.Questions, course.QuizQuestion{
				ID:            q.ID,
				Prompt:        q.Prompt,
				Options:       q.Options,
				CorrectOption: q.CorrectOption,
			})
		}
		c.Lessons = append(c.Lessons, lesson)
	}
	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentResponse is the wire form of an enrollment.
type EnrollmentResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	CourseID    string     `json:"course_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	EnrolledAt  time.Time  `json:"enrolled_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DroppedAt   *time.Time `json:"dropped_at,omitempty"`

	// Set by enroll and drop when nothing changed.
	Unchanged bool `json:"unchanged,omitempty"`
}

func toEnrollmentResponse(e enrollment.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		CourseID:    e.CourseID,
		Status:      string(e.Status),
		Progress:    e.Progress,
		EnrolledAt:  e.EnrolledAt,
		CompletedAt: e.CompletedAt,
		DroppedAt:   e.DroppedAt,
	}
}

// QuizAttemptResponse reports a graded attempt and its effect on progress.
type QuizAttemptResponse struct {
	LessonID          string  `json:"lesson_id"`
	CourseID          string  `json:"course_id"`
	DayNumber         int     `json:"day_number"`
	Score             float64 `json:"score"`
	Passed            bool    `json:"passed"`
	Attempts          int     `json:"attempts"`
	Progress          int     `json:"progress"`
	Status            string  `json:"status,omitempty"`
	UnlockedNextDay   bool    `json:"unlocked_next_day"`
	NextDay           int     `json:"next_day,omitempty"`
	AttendanceCreated bool    `json:"attendance_created"`
	ProgressStale     bool    `json:"progress_stale"`
}

func toQuizAttemptResponse(r *command.SubmitQuizResult) QuizAttemptResponse {
	return QuizAttemptResponse{
		LessonID:          r.LessonID,
		CourseID:          r.CourseID,
		DayNumber:         r.DayNumber,
		Score:             r.Score,
		Passed:            r.Passed,
		Attempts:          r.Attempts,
		Progress:          r.Progress,
		Status:            string(r.Status),
		UnlockedNextDay:   r.UnlockedNextDay,
		NextDay:           r.NextDay,
		AttendanceCreated: r.AttendanceCreated,
		ProgressStale:     r.ProgressStale,
	}
}

// AttendanceResponse is the wire form of an attendance mark.
type AttendanceResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	CourseID      string    `json:"course_id"`
	DayNumber     int       `json:"day_number"`
	Status        string    `json:"status"`
	Date          string    `json:"date"`
	MarkedBy      string    `json:"marked_by,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
	Created       bool      `json:"created"`
	Progress      int       `json:"progress"`
	ProgressStale bool      `json:"progress_stale"`
}

func toAttendanceResponse(r *command.MarkAttendanceResult) AttendanceResponse {
	return AttendanceResponse{
		ID:            r.Record.ID,
		UserID:        r.Record.UserID,
		CourseID:      r.Record.CourseID,
		DayNumber:     r.Record.DayNumber,
		Status:        string(r.Record.Status),
		Date:          r.Record.Date.Format("2006-01-02"),
		MarkedBy:      r.Record.MarkedBy,
		UpdatedAt:     r.Record.UpdatedAt,
		Created:       r.Created,
		Progress:      r.Progress,
		ProgressStale: r.ProgressStale,
	}
}

// LessonProgressResponse is the per-lesson activity row.
type LessonProgressResponse struct {
	LessonID     string   `json:"lesson_id"`
	VideoWatched bool     `json:"video_watched"`
	PDFViewed    bool     `json:"pdf_viewed"`
	QuizPassed   bool     `json:"quiz_passed"`
	QuizScore    *float64 `json:"quiz_score,omitempty"`
	QuizAttempts int      `json:"quiz_attempts"`
}

func toLessonProgressResponse(p *enrollment.LessonProgress) LessonProgressResponse {
	return LessonProgressResponse{
		LessonID:     p.LessonID,
		VideoWatched: p.VideoWatched,
		PDFViewed:    p.PDFViewed,
		QuizPassed:   p.QuizPassed,
		QuizScore:    p.QuizScore,
		QuizAttempts: p.QuizAttempts,
	}
}

// RecomputeResponse reports an administrative progress recompute.
type RecomputeResponse struct {
	EnrollmentID     string     `json:"enrollment_id"`
	Progress         int        `json:"progress"`
	PreviousProgress int        `json:"previous_progress"`
	Status           string     `json:"status"`
	PreviousStatus   string     `json:"previous_status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Changed          bool       `json:"changed"`
	CurrentDay       int        `json:"current_day"`
}

func toRecomputeResponse(r *command.PromotionResult) RecomputeResponse {
	return RecomputeResponse{
		EnrollmentID:     r.EnrollmentID,
		Progress:         r.Progress,
		PreviousProgress: r.PreviousProgress,
		Status:           string(r.Status),
		PreviousStatus:   string(r.PreviousStatus),
		CompletedAt:      r.CompletedAt,
		Changed:          r.Changed,
		CurrentDay:       r.Outline.CurrentDay,
	}
}

// ImportCourseResponse summarises a catalog import.
type ImportCourseResponse struct {
	CourseID        string `json:"course_id"`
	Lessons         int    `json:"lessons"`
	GatedDays       int    `json:"gated_days"`
	IntegrityIssues []int  `json:"integrity_issues,omitempty"`
}

func toImportCourseResponse(r *command.ImportCourseResult) ImportCourseResponse {
	return ImportCourseResponse{
		CourseID:        r.CourseID,
		Lessons:         r.Lessons,
		GatedDays:       r.GatedDays,
		IntegrityIssues: r.IntegrityIssues,
	}
}
