package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

func quiz(id string, day int) Lesson {
	return Lesson{
		ID:        id,
		DayNumber: day,
		Type:      LessonQuiz,
		Questions: []QuizQuestion{
			{ID: "a", Options: []string{"x", "y"}, CorrectOption: 0},
			{ID: "b", Options: []string{"x", "y"}, CorrectOption: 1},
			{ID: "c", Options: []string{"x", "y", "z"}, CorrectOption: 2},
		},
	}
}

func sampleCatalog() *Catalog {
	return &Catalog{
		Course: Course{ID: "c1", Title: "Intro", TotalDays: 7, Status: StatusActive},
		Lessons: []Lesson{
			quiz("q2", 2),
			{ID: "v1", DayNumber: 1, Type: LessonVideo, ContentURL: "https://cdn/v1"},
			quiz("q1", 1),
			{ID: "p1", DayNumber: 1, Type: LessonPDF},
		},
	}
}

func TestCatalog_ValidateAndGates(t *testing.T) {
	c := sampleCatalog()
	require.NoError(t, c.Validate())

	assert.Equal(t, []string{"q1", "q2"}, c.QuizLessonIDs())
	assert.Equal(t, map[int]string{1: "q1", 2: "q2"}, c.Gates())

	day1 := c.LessonsForDay(1)
	require.Len(t, day1, 3)
	assert.Equal(t, LessonVideo, day1[0].Type)
	assert.Equal(t, LessonPDF, day1[1].Type)
	assert.Equal(t, LessonQuiz, day1[2].Type)
}

func TestCatalog_RejectsTwoQuizzesOnOneDay(t *testing.T) {
	c := sampleCatalog()
	c.Lessons = append(c.Lessons, quiz("q1b", 1))

	err := c.Validate()
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestCatalog_RejectsDayOutOfRange(t *testing.T) {
	c := sampleCatalog()
	c.Lessons = append(c.Lessons, Lesson{ID: "v9", DayNumber: 8, Type: LessonVideo})
	assert.Error(t, c.Validate())
}

func TestCourse_ValidateLength(t *testing.T) {
	for _, days := range []int{6, 31} {
		c := Course{ID: "c", Title: "t", TotalDays: days, Status: StatusActive}
		assert.Error(t, c.Validate(), "days=%d", days)
	}
	c := Course{ID: "c", Title: "t", TotalDays: 30, Status: StatusActive}
	assert.NoError(t, c.Validate())
}

func TestCourse_Threshold(t *testing.T) {
	assert.Equal(t, DefaultPassingScore, (&Course{}).Threshold())
	assert.Equal(t, 75.0, (&Course{PassingScore: 75}).Threshold())
}

func TestLesson_Score(t *testing.T) {
	l := quiz("q1", 1)

	s, err := l.Score(map[string]int{"a": 0, "b": 1, "c": 2})
	require.NoError(t, err)
	assert.Equal(t, 100.0, s)

	s, err = l.Score(map[string]int{"a": 0, "b": 0})
	require.NoError(t, err)
	assert.Equal(t, 33.3, s)

	s, err = l.Score(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	v := Lesson{ID: "v1", Type: LessonVideo}
	_, err = v.Score(nil)
	assert.ErrorIs(t, err, shared.ErrLessonNotQuiz)
}
