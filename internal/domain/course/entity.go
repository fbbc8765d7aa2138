// Package course содержит доменную модель каталога курса: курс, уроки по дням
// и квиз, который служит «воротами» дня.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package course

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет статус курса.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusArchived Status = "archived"
)

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

// LessonType представляет тип урока.
type LessonType string

const (
	LessonVideo LessonType = "video"
	LessonPDF   LessonType = "pdf"
	LessonQuiz  LessonType = "quiz"
)

// IsValid проверяет корректность типа урока.
func (t LessonType) IsValid() bool {
	switch t {
	case LessonVideo, LessonPDF, LessonQuiz:
		return true
	}
	return false
}

// DefaultPassingScore is used when a course does not configure its own threshold.
const DefaultPassingScore = 60.0

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Course - курс с фиксированной длительностью в днях.
type Course struct {
	ID           string
	Title        string
	Description  string
	TotalDays    int
	Status       Status
	PassingScore float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive проверяет, открыт ли курс для записи.
func (c *Course) IsActive() bool {
	return c.Status == StatusActive
}

// Threshold returns the configured passing score or the default one.
func (c *Course) Threshold() float64 {
	if c.PassingScore <= 0 {
		return DefaultPassingScore
	}
	return c.PassingScore
}

// Validate проверяет инварианты курса.
func (c *Course) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return shared.ValidationError("course", "Validate", shared.CodeValidation, "course id is required")
	}
	if strings.TrimSpace(c.Title) == "" {
		return shared.ValidationError("course", "Validate", shared.CodeValidation, "course title is required")
	}
	if c.TotalDays < shared.MinCourseDays || c.TotalDays > shared.MaxCourseDays {
		return shared.ValidationError("course", "Validate", shared.CodeInvalidDay,
			fmt.Sprintf("total days must be between %d and %d", shared.MinCourseDays, shared.MaxCourseDays))
	}
	if !c.Status.IsValid() {
		return shared.ValidationError("course", "Validate", shared.CodeInvalidStatus, "unknown course status")
	}
	if c.PassingScore < 0 || c.PassingScore > 100 {
		return shared.ValidationError("course", "Validate", shared.CodeValidation, "passing score must be within 0..100")
	}
	return nil
}

// QuizQuestion is a single-choice question. CorrectOption is never sent to learners.
type QuizQuestion struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectOption int      `json:"correct_option"`
}

// Lesson - единица контента внутри дня курса.
type Lesson struct {
	ID         string
	CourseID   string
	DayNumber  int
	Type       LessonType
	Title      string
	ContentURL string
	Position   int
	Questions  []QuizQuestion
}

// IsQuiz reports whether the lesson gates its day.
func (l *Lesson) IsQuiz() bool {
	return l.Type == LessonQuiz
}

// Validate проверяет урок относительно длительности курса.
func (l *Lesson) Validate(totalDays int) error {
	if strings.TrimSpace(l.ID) == "" {
		return shared.ValidationError("course", "ValidateLesson", shared.CodeValidation, "lesson id is required")
	}
	if !l.Type.IsValid() {
		return shared.ValidationError("course", "ValidateLesson", shared.CodeValidation,
			fmt.Sprintf("lesson %s has unknown type %q", l.ID, l.Type))
	}
	if _, err := shared.NewDayNumber(l.DayNumber, totalDays); err != nil {
		return err
	}
	if l.IsQuiz() {
		if len(l.Questions) == 0 {
			return shared.ValidationError("course", "ValidateLesson", shared.CodeValidation,
				fmt.Sprintf("quiz lesson %s has no questions", l.ID))
		}
		for _, q := range l.Questions {
			if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
				return shared.ValidationError("course", "ValidateLesson", shared.CodeValidation,
					fmt.Sprintf("question %s of lesson %s has no valid correct option", q.ID, l.ID))
			}
		}
	}
	return nil
}

// Score grades answers keyed by question id and returns a percentage with one decimal.
// Unanswered questions count as wrong.
func (l *Lesson) Score(answers map[string]int) (float64, error) {
	if !l.IsQuiz() {
		return 0, shared.ErrLessonNotQuiz
	}
	if len(l.Questions) == 0 {
		return 0, shared.ValidationError("course", "Score", shared.CodeCatalogIntegrity,
			fmt.Sprintf("quiz lesson %s has no questions", l.ID))
	}
	correct := 0
	for _, q := range l.Questions {
		if a, ok := answers[q.ID]; ok && a == q.CorrectOption {
			correct++
		}
	}
	return shared.RoundTo(100*float64(correct)/float64(len(l.Questions)), 1), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog is a course with all of its lessons.
type Catalog struct {
	Course  Course
	Lessons []Lesson
}

// Validate checks the catalog as a whole: lessons belong to the course,
// days are in range and each day has at most one quiz.
func (c *Catalog) Validate() error {
	if err := c.Course.Validate(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Lessons))
	gates := make(map[int]string)
	for i := range c.Lessons {
		l := &c.Lessons[i]
		if l.CourseID != "" && l.CourseID != c.Course.ID {
			return shared.ValidationError("course", "ValidateCatalog", shared.CodeCatalogIntegrity,
				fmt.Sprintf("lesson %s belongs to course %s", l.ID, l.CourseID))
		}
		if err := l.Validate(c.Course.TotalDays); err != nil {
			return err
		}
		if _, dup := seen[l.ID]; dup {
			return shared.ValidationError("course", "ValidateCatalog", shared.CodeCatalogIntegrity,
				fmt.Sprintf("duplicate lesson id %s", l.ID))
		}
		seen[l.ID] = struct{}{}
		if l.IsQuiz() {
			if other, ok := gates[l.DayNumber]; ok {
				return shared.ValidationError("course", "ValidateCatalog", shared.CodeCatalogIntegrity,
					fmt.Sprintf("day %d has two quizzes: %s and %s", l.DayNumber, other, l.ID))
			}
			gates[l.DayNumber] = l.ID
		}
	}
	return nil
}

// Gates maps day number to the id of that day's quiz lesson.
func (c *Catalog) Gates() map[int]string {
	gates := make(map[int]string)
	for _, l := range c.Lessons {
		if l.IsQuiz() {
			gates[l.DayNumber] = l.ID
		}
	}
	return gates
}

// QuizLessonIDs returns quiz lesson ids ordered by day.
func (c *Catalog) QuizLessonIDs() []string {
	quizzes := make([]Lesson, 0)
	for _, l := range c.Lessons {
		if l.IsQuiz() {
			quizzes = append(quizzes, l)
		}
	}
	sort.SliceStable(quizzes, func(i, j int) bool {
		return quizzes[i].DayNumber < quizzes[j].DayNumber
	})
	ids := make([]string, len(quizzes))
	for i, l := range quizzes {
		ids[i] = l.ID
	}
	return ids
}

// LessonsForDay returns the day's lessons ordered by position.
func (c *Catalog) LessonsForDay(day int) []Lesson {
	out := make([]Lesson, 0)
	for _, l := range c.Lessons {
		if l.DayNumber == day {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return typeOrder(out[i].Type) < typeOrder(out[j].Type)
	})
	return out
}

// Lesson finds a lesson by id.
func (c *Catalog) Lesson(id string) (*Lesson, bool) {
	for i := range c.Lessons {
		if c.Lessons[i].ID == id {
			return &c.Lessons[i], true
		}
	}
	return nil, false
}

// typeOrder keeps the informational video, pdf, quiz ordering inside a day.
func typeOrder(t LessonType) int {
	switch t {
	case LessonVideo:
		return 0
	case LessonPDF:
		return 1
	default:
		return 2
	}
}
