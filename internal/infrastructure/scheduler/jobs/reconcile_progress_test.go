package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/application/command"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/memory"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var users = []string{
	"0b8e4d2c-7a1f-4e3b-8c6d-5f9a1b2c3d04",
	"6f1c2a9e-4b7d-4c1e-9a3f-2d5e8b7c6a01",
	"a3d5f7b9-1c2e-4f6a-8b0d-9e7c5a3b1d02",
}

// seed creates a course gated by a single quiz and enrolls every user.
// The first user has a passing attempt stored while the row still says 0%.
func seed(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	s := memory.NewStore()

	require.NoError(t, s.Catalog().SaveCatalog(ctx, &course.Catalog{
		Course:  course.Course{ID: "c1", Title: "Go", TotalDays: 7, Status: course.StatusActive, PassingScore: 70},
		Lessons: []course.Lesson{{ID: "q1", DayNumber: 1, Type: course.LessonQuiz}},
	}))
	for i, u := range users {
		require.NoError(t, s.Students().Upsert(ctx, &student.Profile{ID: u, Email: u + "@example.com", Role: shared.RoleUser}))
		require.NoError(t, s.Enrollments().Create(ctx, enrollment.New(string(rune('a'+i))+"-enr", u, "c1", t0)))
	}
	_, err := s.LessonProgress().RecordQuizAttempt(ctx, users[0], "q1", 80, true, t0)
	require.NoError(t, err)
	return s
}

func TestReconcileProgress_RepairsStaleRows(t *testing.T) {
	s := seed(t)
	promoter := command.NewCompletionPromoter(s, nil, timeutil.NewFixedClock(t0.Add(time.Hour)), nil)
	job := NewReconcileProgressJob(s.Enrollments(), promoter, ReconcileProgressConfig{BatchSize: 1}, nil)

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastStats()
	assert.Equal(t, 3, stats.Scanned)
	assert.Equal(t, 1, stats.Changed)
	assert.Equal(t, 1, stats.Completed)
	assert.Zero(t, stats.Failed)

	e, err := s.Enrollments().GetCurrent(context.Background(), users[0], "c1")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, e.Status)
	assert.Equal(t, 100, e.Progress)
	require.NotNil(t, e.CompletedAt)

	// A second sweep finds nothing to do.
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, job.LastStats().Scanned)
	assert.Zero(t, job.LastStats().Changed)
}

type failingPromoter struct{ calls int }

func (f *failingPromoter) Promote(context.Context, string, string) (*command.PromotionResult, error) {
	f.calls++
	return nil, errors.New("database is gone")
}

func TestReconcileProgress_CountsFailuresAndAborts(t *testing.T) {
	s := seed(t)

	p := &failingPromoter{}
	job := NewReconcileProgressJob(s.Enrollments(), p, ReconcileProgressConfig{BatchSize: 10}, nil)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, job.LastStats().Failed)

	p = &failingPromoter{}
	job = NewReconcileProgressJob(s.Enrollments(), p, ReconcileProgressConfig{BatchSize: 10, MaxFailures: 2}, nil)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted after 2 failures")
	assert.Equal(t, 2, p.calls)
}

func TestReconcileProgress_ListError(t *testing.T) {
	s := seed(t)
	s.FailOn("ListEnrolled", errors.New("boom"))

	job := NewReconcileProgressJob(s.Enrollments(), &failingPromoter{}, DefaultReconcileProgressConfig(), nil)
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestReconcileProgress_StopsOnCancel(t *testing.T) {
	s := seed(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := NewReconcileProgressJob(s.Enrollments(), &failingPromoter{}, DefaultReconcileProgressConfig(), nil)
	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
}

func TestReconcileProgress_DefaultSweepsEveryRow(t *testing.T) {
	s := seed(t)
	p := &failingPromoter{}
	cfg := DefaultReconcileProgressConfig()
	cfg.BatchSize = 1
	job := NewReconcileProgressJob(s.Enrollments(), p, cfg, nil)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, 3, job.LastStats().Failed)
	assert.Equal(t, 3, job.LastStats().Scanned)
}

func TestReconcileProgress_LastStatsWhileRunning(t *testing.T) {
	s := seed(t)
	promoter := command.NewCompletionPromoter(s, nil, timeutil.NewFixedClock(t0), nil)
	job := NewReconcileProgressJob(s.Enrollments(), promoter, ReconcileProgressConfig{BatchSize: 1}, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			_ = job.Run(context.Background())
		}
	}()
	for {
		select {
		case <-done:
			// the first run completes one enrollment, later runs skip it
			assert.Equal(t, 2, job.LastStats().Scanned)
			return
		default:
			_ = job.LastStats()
		}
	}
}
