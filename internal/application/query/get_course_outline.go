package query

import (
	"context"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COURSE OUTLINE QUERY
// Per-day view of the course for one learner. Content of locked days is
// listed without URLs or questions.
// ══════════════════════════════════════════════════════════════════════════════

// GetCourseOutlineQuery содержит параметры запроса.
type GetCourseOutlineQuery struct {
	Actor    shared.Principal
	UserID   string
	CourseID string
}

// QuestionDTO never carries the correct option.
type QuestionDTO struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// LessonDTO - урок в контексте прогресса learner'а.
type LessonDTO struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Title      string        `json:"title"`
	ContentURL string        `json:"content_url,omitempty"`
	Questions  []QuestionDTO `json:"questions,omitempty"`

	VideoWatched bool     `json:"video_watched"`
	PDFViewed    bool     `json:"pdf_viewed"`
	QuizPassed   bool     `json:"quiz_passed"`
	QuizScore    *float64 `json:"quiz_score,omitempty"`
	QuizAttempts int      `json:"quiz_attempts"`
}

// DayDTO - один день курса.
type DayDTO struct {
	progress.DayState
	Lessons []LessonDTO `json:"lessons"`
}

// CourseOutlineDTO - результат запроса.
type CourseOutlineDTO struct {
	CourseID    string `json:"course_id"`
	CourseTitle string `json:"course_title"`
	TotalDays   int    `json:"total_days"`

	// Enrolled is false for visitors and dropped learners; they see no content.
	Enrolled         bool   `json:"enrolled"`
	EnrollmentStatus string `json:"enrollment_status,omitempty"`

	CurrentDay      int      `json:"current_day"`
	IntegrityIssues []int    `json:"integrity_issues,omitempty"`
	Days            []DayDTO `json:"days"`
}

// GetCourseOutlineHandler обрабатывает запрос.
type GetCourseOutlineHandler struct {
	store progress.Store
}

// NewGetCourseOutlineHandler создаёт новый обработчик.
func NewGetCourseOutlineHandler(store progress.Store) *GetCourseOutlineHandler {
	return &GetCourseOutlineHandler{store: store}
}

// Handle выполняет запрос.
func (h *GetCourseOutlineHandler) Handle(ctx context.Context, q GetCourseOutlineQuery) (*CourseOutlineDTO, error) {
	if err := requireCourse("GetCourseOutline", q.CourseID); err != nil {
		return nil, err
	}
	userID, err := subjectFor("GetCourseOutline", q.Actor, q.UserID)
	if err != nil {
		return nil, err
	}

	var (
		catalog  *course.Catalog
		outline  progress.Outline
		byLesson map[string]enrollment.LessonProgress
		status   enrollment.Status
	)
	snap, err := progress.LoadSnapshot(ctx, h.store, userID, q.CourseID, progress.LoadOptions{AllLessons: true})
	switch {
	case err == nil:
		catalog, outline, byLesson = snap.Catalog, snap.Outline, snap.ByLesson()
		status = snap.Enrollment.Status
	case shared.IsNotFound(err):
		catalog, err = h.store.Catalog().GetCatalog(ctx, q.CourseID)
		if err != nil {
			return nil, err
		}
		outline = progress.EvaluateUnlocks(catalog.Course.TotalDays, catalog.Gates(), nil)
	default:
		return nil, err
	}

	canView := status == enrollment.StatusEnrolled || status == enrollment.StatusCompleted
	out := &CourseOutlineDTO{
		CourseID:         catalog.Course.ID,
		CourseTitle:      catalog.Course.Title,
		TotalDays:        catalog.Course.TotalDays,
		Enrolled:         canView,
		EnrollmentStatus: string(status),
		CurrentDay:       outline.CurrentDay,
		IntegrityIssues:  outline.IntegrityIssues,
		Days:             make([]DayDTO, 0, len(outline.Days)),
	}
	for _, d := range outline.Days {
		day := DayDTO{DayState: d, Lessons: make([]LessonDTO, 0)}
		open := canView && d.Unlocked
		for _, l := range catalog.LessonsForDay(d.Day) {
			day.Lessons = append(day.Lessons, lessonDTO(l, byLesson[l.ID], open))
		}
		out.Days = append(out.Days, day)
	}
	return out, nil
}

func lessonDTO(l course.Lesson, p enrollment.LessonProgress, open bool) LessonDTO {
	dto := LessonDTO{
		ID:           l.ID,
		Type:         string(l.Type),
		Title:        l.Title,
		VideoWatched: p.VideoWatched,
		PDFViewed:    p.PDFViewed,
		QuizPassed:   p.QuizPassed,
		QuizScore:    p.QuizScore,
		QuizAttempts: p.QuizAttempts,
	}
	if !open {
		return dto
	}
	dto.ContentURL = l.ContentURL
	for _, q := range l.Questions {
		dto.Questions = append(dto.Questions, QuestionDTO{ID: q.ID, Prompt: q.Prompt, Options: q.Options})
	}
	return dto
}
