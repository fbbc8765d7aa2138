package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/infrastructure/persistence/memory"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

const (
	learnerID = "6f1c2a9e-4b7d-4c1e-9a3f-2d5e8b7c6a01"
	otherID   = "0b8e4d2c-7a1f-4e3b-8c6d-5f9a1b2c3d04"
	adminID   = "a3d5f7b9-1c2e-4f6a-8b0d-9e7c5a3b1d02"
)

var (
	learner = shared.Principal{ID: learnerID, Email: "learner@example.com", Name: "Aigerim", Role: shared.RoleUser}
	other   = shared.Principal{ID: otherID, Email: "other@example.com", Name: "Dana", Role: shared.RoleUser}
	admin   = shared.Principal{ID: adminID, Email: "admin@example.com", Name: "Admin", Role: shared.RoleAdmin}
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(e shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count(t shared.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// quiz builds a ten-question quiz where option 0 is always correct.
func quiz(id string, day int) course.Lesson {
	qs := make([]course.QuizQuestion, 10)
	for i := range qs {
		qs[i] = course.QuizQuestion{
			ID:            fmt.Sprintf("%s-%d", id, i),
			Prompt:        fmt.Sprintf("question %d", i),
			Options:       []string{"right", "wrong"},
			CorrectOption: 0,
		}
	}
	return course.Lesson{ID: id, DayNumber: day, Type: course.LessonQuiz, Title: "Quiz " + id, Questions: qs}
}

// answers answers the first `correct` questions of a quiz built by quiz().
func answers(lessonID string, correct int) map[string]int {
	out := make(map[string]int, 10)
	for i := 0; i < 10; i++ {
		opt := 1
		if i < correct {
			opt = 0
		}
		out[fmt.Sprintf("%s-%d", lessonID, i)] = opt
	}
	return out
}

// threeGateCatalog is a seven-day course with quizzes on days 1..3 only.
func threeGateCatalog() course.Catalog {
	return course.Catalog{
		Course: course.Course{ID: "go-basics", Title: "Go Basics", TotalDays: 7, Status: course.StatusActive},
		Lessons: []course.Lesson{
			{ID: "v1", DayNumber: 1, Type: course.LessonVideo, Title: "Intro", ContentURL: "https://cdn.example.com/v1.mp4"},
			quiz("q1", 1),
			{ID: "p2", DayNumber: 2, Type: course.LessonPDF, Title: "Types", ContentURL: "https://cdn.example.com/p2.pdf"},
			quiz("q2", 2),
			quiz("q3", 3),
		},
	}
}

type harness struct {
	store  *memory.Store
	events *recorder
	clock  *timeutil.FixedClock

	promoter  *CompletionPromoter
	submit    *SubmitQuizHandler
	mark      *MarkAttendanceHandler
	enroll    *EnrollHandler
	drop      *DropEnrollmentHandler
	view      *RecordLessonViewHandler
	recompute *RecomputeProgressHandler
	importer  *ImportCourseHandler
}

func newHarness(t *testing.T, autoAttendance FeatureGate) *harness {
	t.Helper()
	h := &harness{
		store:  memory.NewStore(),
		events: &recorder{},
		clock:  timeutil.NewFixedClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	}
	h.promoter = NewCompletionPromoter(h.store, h.events, h.clock, nil)
	h.submit = NewSubmitQuizHandler(SubmitQuizDeps{
		Store:          h.store,
		Promoter:       h.promoter,
		Events:         h.events,
		Clock:          h.clock,
		AutoAttendance: autoAttendance,
	})
	h.mark = NewMarkAttendanceHandler(h.store, h.promoter, h.events, h.clock, time.UTC, nil)
	h.enroll = NewEnrollHandler(h.store, h.events, h.clock, nil)
	h.drop = NewDropEnrollmentHandler(h.store, h.events, h.clock, nil)
	h.view = NewRecordLessonViewHandler(h.store, h.clock, nil)
	h.recompute = NewRecomputeProgressHandler(h.promoter, nil)
	h.importer = NewImportCourseHandler(h.store, h.events, h.clock, nil)

	_, err := h.importer.Handle(context.Background(), ImportCourseCommand{Actor: admin, Catalog: threeGateCatalog()})
	require.NoError(t, err)
	h.events.reset()
	return h
}

func (h *harness) enrolled(t *testing.T, who shared.Principal) enrollment.Enrollment {
	t.Helper()
	res, err := h.enroll.Handle(context.Background(), EnrollCommand{Actor: who, CourseID: "go-basics"})
	require.NoError(t, err)
	return res.Enrollment
}

func (h *harness) attempt(t *testing.T, lessonID string, correct int) *SubmitQuizResult {
	t.Helper()
	h.clock.Advance(time.Hour)
	res, err := h.submit.Handle(context.Background(), SubmitQuizCommand{
		Actor:    learner,
		LessonID: lessonID,
		Answers:  answers(lessonID, correct),
	})
	require.NoError(t, err)
	return res
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ
// ══════════════════════════════════════════════════════════════════════════════

func TestSubmitQuiz_ThreeDayCourseToCompletion(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)

	r := h.attempt(t, "q1", 8)
	assert.Equal(t, 80.0, r.Score)
	assert.True(t, r.Passed)
	assert.Equal(t, 33, r.Progress)
	assert.True(t, r.UnlockedNextDay)
	assert.Equal(t, 2, r.NextDay)

	r = h.attempt(t, "q2", 5)
	assert.Equal(t, 50.0, r.Score)
	assert.False(t, r.Passed)
	assert.Equal(t, 33, r.Progress)
	assert.False(t, r.UnlockedNextDay)
	assert.Zero(t, r.NextDay)

	r = h.attempt(t, "q2", 7)
	assert.True(t, r.Passed)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, 67, r.Progress)
	assert.Equal(t, enrollment.StatusEnrolled, r.Status)

	r = h.attempt(t, "q3", 9)
	assert.Equal(t, 100, r.Progress)
	assert.Equal(t, enrollment.StatusCompleted, r.Status)
	assert.True(t, r.UnlockedNextDay, "ungated days after the last quiz open up")

	e, err := h.store.Enrollments().GetCurrent(context.Background(), learnerID, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, e.Status)
	require.NotNil(t, e.CompletedAt)

	quizIDs := []string{"q1", "q2", "q3"}
	lps, err := h.store.LessonProgress().List(context.Background(), learnerID, quizIDs)
	require.NoError(t, err)
	byLesson := make(map[string]enrollment.LessonProgress, len(lps))
	for _, lp := range lps {
		byLesson[lp.LessonID] = lp
	}
	assert.Equal(t, 80.0, progress.QuizAverage(quizIDs, byLesson), "latest score of each quiz")

	assert.Equal(t, 4, h.events.count(shared.EventQuizAttempted))
	assert.Equal(t, 1, h.events.count(shared.EventEnrollmentCompleted))
	assert.Equal(t, 6, h.events.count(shared.EventDayUnlocked), "days 2, 3 and 4..7")
}

func TestSubmitQuiz_LockedDayIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)

	_, err := h.submit.Handle(context.Background(), SubmitQuizCommand{Actor: learner, LessonID: "q2", Answers: answers("q2", 10)})
	require.Error(t, err)
	assert.True(t, shared.IsForbidden(err))
	assert.Equal(t, shared.CodeDayLocked, shared.ReasonCodeOf(err))

	lps, err := h.store.LessonProgress().List(context.Background(), learnerID, []string{"q2"})
	require.NoError(t, err)
	assert.Empty(t, lps, "rejected attempts are not recorded")
}

func TestSubmitQuiz_RejectsNonQuizLesson(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)

	_, err := h.submit.Handle(context.Background(), SubmitQuizCommand{Actor: learner, LessonID: "v1"})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	assert.Equal(t, shared.CodeNotQuiz, shared.ReasonCodeOf(err))
}

func TestSubmitQuiz_RequiresActiveEnrollment(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.submit.Handle(context.Background(), SubmitQuizCommand{Actor: learner, LessonID: "q1", Answers: answers("q1", 10)})
	require.Error(t, err)
	assert.Equal(t, shared.CodeEnrollmentInactive, shared.ReasonCodeOf(err))

	h.enrolled(t, learner)
	_, err = h.drop.Handle(context.Background(), DropEnrollmentCommand{Actor: learner, CourseID: "go-basics"})
	require.NoError(t, err)

	_, err = h.submit.Handle(context.Background(), SubmitQuizCommand{Actor: learner, LessonID: "q1", Answers: answers("q1", 10)})
	require.Error(t, err)
	assert.Equal(t, shared.CodeEnrollmentInactive, shared.ReasonCodeOf(err))
}

func TestSubmitQuiz_RequiresAuthenticatedActor(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.submit.Handle(context.Background(), SubmitQuizCommand{LessonID: "q1"})
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestSubmitQuiz_FailedRetakeKeepsPass(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)

	h.attempt(t, "q1", 9)
	r := h.attempt(t, "q1", 2)
	assert.False(t, r.Passed)
	assert.Equal(t, 33, r.Progress)

	lps, err := h.store.LessonProgress().List(context.Background(), learnerID, []string{"q1"})
	require.NoError(t, err)
	require.Len(t, lps, 1)
	assert.True(t, lps[0].QuizPassed)
	require.NotNil(t, lps[0].QuizScore)
	assert.Equal(t, 20.0, *lps[0].QuizScore)
	assert.Equal(t, 2, lps[0].QuizAttempts)
}

func TestSubmitQuiz_ProgressStaleWhenPromotionFails(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)

	h.store.FailOn("SaveState", errors.New("connection reset"))
	res, err := h.submit.Handle(context.Background(), SubmitQuizCommand{Actor: learner, LessonID: "q1", Answers: answers("q1", 10)})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.ProgressStale)
	assert.True(t, res.Passed)
	assert.Equal(t, shared.CodeProgressStale, shared.ReasonCodeOf(err))
	assert.True(t, shared.IsRetryable(err))

	e, err := h.store.Enrollments().GetCurrent(context.Background(), learnerID, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 0, e.Progress, "enrollment was not updated")

	promo, err := h.recompute.Handle(context.Background(), RecomputeProgressCommand{Actor: admin, UserID: learnerID, CourseID: "go-basics"})
	require.NoError(t, err)
	assert.Equal(t, 33, promo.Progress, "progress converges on recompute")
	assert.True(t, promo.Changed)
}

func TestSubmitQuiz_AutoAttendanceOnPass(t *testing.T) {
	h := newHarness(t, AlwaysOn)
	h.enrolled(t, learner)

	r := h.attempt(t, "q1", 10)
	assert.True(t, r.AttendanceCreated)
	assert.Equal(t, 1, h.events.count(shared.EventAttendanceMarked))

	recs, err := h.store.Attendance().List(context.Background(), learnerID, "go-basics")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, attendance.StatusPresent, recs[0].Status)
	assert.Equal(t, 1, recs[0].DayNumber)

	// A staff mark for day 2 is never overwritten by the automatic one.
	_, err = h.mark.Handle(context.Background(), MarkAttendanceCommand{
		Actor: admin, UserID: learnerID, CourseID: "go-basics", DayNumber: 2, Status: "late",
	})
	require.NoError(t, err)
	r = h.attempt(t, "q2", 10)
	assert.False(t, r.AttendanceCreated)

	recs, err = h.store.Attendance().List(context.Background(), learnerID, "go-basics")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		if rec.DayNumber == 2 {
			assert.Equal(t, attendance.StatusLate, rec.Status)
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

func TestMarkAttendance_UpsertsOneRowPerDay(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	ctx := context.Background()

	res, err := h.mark.Handle(ctx, MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 1, Status: "present"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Empty(t, res.Record.MarkedBy)
	assert.Equal(t, enrollment.StatusEnrolled, res.Status)

	res, err = h.mark.Handle(ctx, MarkAttendanceCommand{Actor: admin, UserID: learnerID, CourseID: "go-basics", DayNumber: 1, Status: "EXCUSED"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, attendance.StatusExcused, res.Record.Status)
	assert.Equal(t, adminID, res.Record.MarkedBy)

	recs, err := h.store.Attendance().List(ctx, learnerID, "go-basics")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 2, h.events.count(shared.EventAttendanceMarked))
}

func TestMarkAttendance_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	ctx := context.Background()

	// other enrolls and drops; the dropped row stays closed to attendance
	h.enrolled(t, other)
	_, err := h.drop.Handle(ctx, DropEnrollmentCommand{Actor: other, CourseID: "go-basics"})
	require.NoError(t, err)

	tests := []struct {
		name string
		cmd  MarkAttendanceCommand
		code string
	}{
		{
			name: "learner for someone else",
			cmd:  MarkAttendanceCommand{Actor: other, UserID: learnerID, CourseID: "go-basics", DayNumber: 1, Status: "present"},
			code: shared.CodeNotOwner,
		},
		{
			name: "day beyond course",
			cmd:  MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 8, Status: "present"},
			code: shared.CodeInvalidDay,
		},
		{
			name: "day zero",
			cmd:  MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 0, Status: "present"},
			code: shared.CodeInvalidDay,
		},
		{
			name: "unknown status",
			cmd:  MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 1, Status: "sleeping"},
			code: shared.CodeInvalidStatus,
		},
		{
			name: "not enrolled",
			cmd:  MarkAttendanceCommand{Actor: admin, UserID: adminID, CourseID: "go-basics", DayNumber: 1, Status: "present"},
			code: shared.CodeEnrollmentInactive,
		},
		{
			name: "dropped enrollment",
			cmd:  MarkAttendanceCommand{Actor: admin, UserID: otherID, CourseID: "go-basics", DayNumber: 1, Status: "present"},
			code: shared.CodeEnrollmentInactive,
		},
		{
			name: "dropped learner for self",
			cmd:  MarkAttendanceCommand{Actor: other, CourseID: "go-basics", DayNumber: 1, Status: "late"},
			code: shared.CodeEnrollmentInactive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.mark.Handle(ctx, tt.cmd)
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.ReasonCodeOf(err))
		})
	}
}

func TestMarkAttendance_HealsStaleProgress(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	ctx := context.Background()

	h.store.FailOn("SaveState", errors.New("connection reset"))
	_, err := h.submit.Handle(ctx, SubmitQuizCommand{Actor: learner, LessonID: "q1", Answers: answers("q1", 10)})
	require.Error(t, err)

	res, err := h.mark.Handle(ctx, MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 1, Status: "present"})
	require.NoError(t, err)
	assert.False(t, res.ProgressStale)
	assert.Equal(t, 33, res.Progress, "attendance runs the promoter")

	e, err := h.store.Enrollments().GetCurrent(ctx, learnerID, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 33, e.Progress)
}

func TestMarkAttendance_ProgressStaleWhenPromotionFails(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	ctx := context.Background()

	// the pass is recorded but the enrollment still holds 0, so the
	// promoter run by attendance has a write to make
	h.store.FailOn("SaveState", errors.New("connection reset"))
	_, err := h.submit.Handle(ctx, SubmitQuizCommand{Actor: learner, LessonID: "q1", Answers: answers("q1", 10)})
	require.Error(t, err)

	h.store.FailOn("SaveState", errors.New("connection reset"))
	res, err := h.mark.Handle(ctx, MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 2, Status: "late"})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.ProgressStale)
	assert.True(t, res.Created)
	assert.Equal(t, shared.CodeProgressStale, shared.ReasonCodeOf(err))
	assert.True(t, shared.IsRetryable(err))

	recs, err := h.store.Attendance().List(ctx, learnerID, "go-basics")
	require.NoError(t, err)
	require.Len(t, recs, 1, "attendance stays recorded")
	assert.Equal(t, attendance.StatusLate, recs[0].Status)

	e, err := h.store.Enrollments().GetCurrent(ctx, learnerID, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 0, e.Progress)
}

func TestMarkAttendance_CompletedEnrollmentIsClosed(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	h.attempt(t, "q1", 10)
	h.attempt(t, "q2", 10)
	h.attempt(t, "q3", 10)

	_, err := h.mark.Handle(context.Background(), MarkAttendanceCommand{Actor: learner, CourseID: "go-basics", DayNumber: 3, Status: "present"})
	require.Error(t, err)
	assert.Equal(t, shared.CodeEnrollmentInactive, shared.ReasonCodeOf(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

func TestEnroll_IsIdempotentAndReenrollsAfterDrop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	first := h.enrolled(t, learner)
	assert.Equal(t, enrollment.StatusEnrolled, first.Status)
	assert.Equal(t, 0, first.Progress)

	again, err := h.enroll.Handle(ctx, EnrollCommand{Actor: learner, CourseID: "go-basics"})
	require.NoError(t, err)
	assert.True(t, again.AlreadyEnrolled)
	assert.Equal(t, first.ID, again.Enrollment.ID)
	assert.Equal(t, 1, h.events.count(shared.EventEnrolled))

	dropped, err := h.drop.Handle(ctx, DropEnrollmentCommand{Actor: learner, CourseID: "go-basics"})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusDropped, dropped.Enrollment.Status)

	twice, err := h.drop.Handle(ctx, DropEnrollmentCommand{Actor: learner, CourseID: "go-basics"})
	require.NoError(t, err)
	assert.True(t, twice.AlreadyDropped)
	assert.Equal(t, 1, h.events.count(shared.EventEnrollmentDropped))

	second := h.enrolled(t, learner)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, enrollment.StatusEnrolled, second.Status)
}

func TestEnroll_InactiveCourse(t *testing.T) {
	h := newHarness(t, nil)
	cat := threeGateCatalog()
	cat.Course.Status = course.StatusArchived
	_, err := h.importer.Handle(context.Background(), ImportCourseCommand{Actor: admin, Catalog: cat})
	require.NoError(t, err)

	_, err = h.enroll.Handle(context.Background(), EnrollCommand{Actor: learner, CourseID: "go-basics"})
	require.Error(t, err)
	assert.Equal(t, shared.CodeCourseNotActive, shared.ReasonCodeOf(err))

	_, err = h.enroll.Handle(context.Background(), EnrollCommand{Actor: learner, CourseID: "missing"})
	assert.True(t, shared.IsNotFound(err))
}

func TestDrop_CompletedEnrollmentCannotBeDropped(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	h.attempt(t, "q1", 10)
	h.attempt(t, "q2", 10)
	h.attempt(t, "q3", 10)

	_, err := h.drop.Handle(context.Background(), DropEnrollmentCommand{Actor: learner, CourseID: "go-basics"})
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = h.drop.Handle(context.Background(), DropEnrollmentCommand{Actor: other, UserID: learnerID, CourseID: "go-basics"})
	assert.Equal(t, shared.CodeNotOwner, shared.ReasonCodeOf(err))
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON VIEWS, RECOMPUTE, IMPORT
// ══════════════════════════════════════════════════════════════════════════════

func TestRecordLessonView(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	ctx := context.Background()

	lp, err := h.view.Handle(ctx, RecordLessonViewCommand{Actor: learner, LessonID: "v1"})
	require.NoError(t, err)
	assert.True(t, lp.VideoWatched)

	_, err = h.view.Handle(ctx, RecordLessonViewCommand{Actor: learner, LessonID: "p2"})
	assert.Equal(t, shared.CodeDayLocked, shared.ReasonCodeOf(err))

	_, err = h.view.Handle(ctx, RecordLessonViewCommand{Actor: learner, LessonID: "q1"})
	assert.True(t, shared.IsValidation(err))

	h.attempt(t, "q1", 10)
	lp, err = h.view.Handle(ctx, RecordLessonViewCommand{Actor: learner, LessonID: "p2"})
	require.NoError(t, err)
	assert.True(t, lp.PDFViewed)

	e, err := h.store.Enrollments().GetCurrent(ctx, learnerID, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 33, e.Progress, "views do not move progress")
}

func TestRecomputeProgress_RequiresAdmin(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)

	_, err := h.recompute.Handle(context.Background(), RecomputeProgressCommand{Actor: learner, UserID: learnerID, CourseID: "go-basics"})
	assert.ErrorIs(t, err, shared.ErrAdminOnly)

	res, err := h.recompute.Handle(context.Background(), RecomputeProgressCommand{Actor: admin, UserID: learnerID, CourseID: "go-basics"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 0, res.Progress)
}

func TestPromote_IsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.enrolled(t, learner)
	h.attempt(t, "q1", 10)
	h.attempt(t, "q2", 10)
	h.attempt(t, "q3", 10)
	h.events.reset()

	res, err := h.promoter.Promote(context.Background(), learnerID, "go-basics")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, enrollment.StatusCompleted, res.Status)
	assert.Zero(t, h.events.count(shared.EventEnrollmentCompleted))
}

func TestImportCourse(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.importer.Handle(ctx, ImportCourseCommand{Actor: learner, Catalog: threeGateCatalog()})
	assert.ErrorIs(t, err, shared.ErrAdminOnly)

	res, err := h.importer.Handle(ctx, ImportCourseCommand{Actor: admin, Catalog: threeGateCatalog()})
	require.NoError(t, err)
	assert.Equal(t, "go-basics", res.CourseID)
	assert.Equal(t, 5, res.Lessons)
	assert.Equal(t, 3, res.GatedDays)
	assert.Equal(t, []int{4, 5, 6, 7}, res.IntegrityIssues)
	assert.Equal(t, 1, h.events.count(shared.EventCatalogImported))

	_, err = h.importer.Handle(ctx, ImportCourseCommand{Actor: admin, Catalog: threeGateCatalog(), StrictIntegrity: true})
	assert.Equal(t, shared.CodeCatalogIntegrity, shared.ReasonCodeOf(err))

	foreign := threeGateCatalog()
	foreign.Lessons[0].CourseID = "rust-basics"
	_, err = h.importer.Handle(ctx, ImportCourseCommand{Actor: admin, Catalog: foreign})
	assert.Equal(t, shared.CodeCatalogIntegrity, shared.ReasonCodeOf(err))

	short := threeGateCatalog()
	short.Course.TotalDays = 5
	_, err = h.importer.Handle(ctx, ImportCourseCommand{Actor: admin, Catalog: short})
	assert.True(t, shared.IsValidation(err))
}

func TestImportCourse_DefaultPassingScore(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.importer.WithDefaultPassingScore(70)

	_, err := h.importer.Handle(ctx, ImportCourseCommand{Actor: admin, Catalog: threeGateCatalog()})
	require.NoError(t, err)
	stored, err := h.store.Catalog().GetCatalog(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 70.0, stored.Course.PassingScore)

	own := threeGateCatalog()
	own.Course.PassingScore = 85
	_, err = h.importer.Handle(ctx, ImportCourseCommand{Actor: admin, Catalog: own})
	require.NoError(t, err)
	stored, err = h.store.Catalog().GetCatalog(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, 85.0, stored.Course.PassingScore)
}
