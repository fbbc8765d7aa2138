package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
)

const userID = "6f1c2a9e-4b7d-4c1e-9a3f-2d5e8b7c6a01"

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.Students().Upsert(ctx, &student.Profile{ID: userID, Email: "a@b.c", Role: shared.RoleUser}))
	require.NoError(t, s.Catalog().SaveCatalog(ctx, &course.Catalog{
		Course: course.Course{ID: "c1", Title: "Go", TotalDays: 7, Status: course.StatusActive},
		Lessons: []course.Lesson{
			{ID: "q1", DayNumber: 1, Type: course.LessonQuiz},
			{ID: "v1", DayNumber: 1, Type: course.LessonVideo},
		},
	}))
	return s
}

func TestEnrollments_OneActivePerUserCourse(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	require.NoError(t, s.Enrollments().Create(ctx, enrollment.New("e1", userID, "c1", t0)))
	err := s.Enrollments().Create(ctx, enrollment.New("e2", userID, "c1", t0.Add(time.Hour)))
	assert.True(t, shared.IsAlreadyExists(err))

	_, err = s.Enrollments().Drop(ctx, "e1", t0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Enrollments().Create(ctx, enrollment.New("e2", userID, "c1", t0.Add(2*time.Hour))))

	cur, err := s.Enrollments().GetCurrent(ctx, userID, "c1")
	require.NoError(t, err)
	assert.Equal(t, "e2", cur.ID)
}

func TestEnrollments_SaveStateIsGuarded(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.Enrollments().Create(ctx, enrollment.New("e1", userID, "c1", t0)))

	e, err := s.Enrollments().GetByID(ctx, "e1")
	require.NoError(t, err)
	e.ApplyProgress(100, t0.Add(time.Hour))
	stored, err := s.Enrollments().SaveState(ctx, e)
	require.NoError(t, err)
	require.Equal(t, enrollment.StatusCompleted, stored.Status)
	firstCompletion := *stored.CompletedAt

	// A stale writer that still believes the row is enrolled.
	stale := enrollment.New("e1", userID, "c1", t0)
	stale.Progress = 67
	stale.UpdatedAt = t0.Add(2 * time.Hour)
	stored, err = s.Enrollments().SaveState(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, stored.Status)
	assert.Equal(t, firstCompletion, *stored.CompletedAt)

	_, err = s.Enrollments().Drop(ctx, "e1", t0)
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestLessonProgress_AttemptsAndStickyPass(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	_, err := s.LessonProgress().RecordQuizAttempt(ctx, userID, "q1", 80, true, t0)
	require.NoError(t, err)
	p, err := s.LessonProgress().RecordQuizAttempt(ctx, userID, "q1", 20, false, t0)
	require.NoError(t, err)

	assert.Equal(t, 2, p.QuizAttempts)
	assert.True(t, p.QuizPassed)
	assert.Equal(t, 20.0, *p.QuizScore)

	_, err = s.LessonProgress().RecordQuizAttempt(ctx, userID, "missing", 80, true, t0)
	assert.True(t, shared.IsNotFound(err))

	list, err := s.LessonProgress().List(ctx, userID, []string{"q1", "q1", "v1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestAttendance_UpsertAndEnsurePresent(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	rec := &attendance.Record{ID: "a1", UserID: userID, CourseID: "c1", DayNumber: 2, Status: attendance.StatusLate, Date: t0}
	_, created, err := s.Attendance().Upsert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)

	again := *rec
	again.ID = "a2"
	again.Status = attendance.StatusExcused
	stored, created, err := s.Attendance().Upsert(ctx, &again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "a1", stored.ID)
	assert.Equal(t, attendance.StatusExcused, stored.Status)

	present := &attendance.Record{ID: "a3", UserID: userID, CourseID: "c1", DayNumber: 2, Status: attendance.StatusPresent, Date: t0}
	created, err = s.Attendance().EnsurePresent(ctx, present)
	require.NoError(t, err)
	assert.False(t, created)

	list, err := s.Attendance().List(ctx, userID, "c1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, attendance.StatusExcused, list[0].Status)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx progress.Store) error {
		require.NoError(t, tx.Enrollments().Create(ctx, enrollment.New("e1", userID, "c1", t0)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Enrollments().GetByID(ctx, "e1")
	assert.True(t, shared.IsNotFound(err))
}

func TestFailOn_FailsOnce(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	s.FailOn("GetCatalog", shared.DependencyError("test", "GetCatalog", errors.New("down")))

	_, err := s.Catalog().GetCatalog(ctx, "c1")
	assert.True(t, shared.IsRetryable(err))

	cat, err := s.Catalog().GetCatalog(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, cat.QuizLessonIDs())
}

func TestSaveCatalog_RemovesMissingLessonsWithProgress(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	_, err := s.LessonProgress().MarkViewed(ctx, userID, "v1", enrollment.ComponentVideo, t0)
	require.NoError(t, err)

	require.NoError(t, s.Catalog().SaveCatalog(ctx, &course.Catalog{
		Course:  course.Course{ID: "c1", Title: "Go", TotalDays: 7, Status: course.StatusActive},
		Lessons: []course.Lesson{{ID: "q1", DayNumber: 1, Type: course.LessonQuiz}},
	}))

	_, err = s.Catalog().GetLesson(ctx, "v1")
	assert.True(t, shared.IsNotFound(err))
	list, err := s.LessonProgress().List(ctx, userID, []string{"v1"})
	require.NoError(t, err)
	assert.Empty(t, list)
}
