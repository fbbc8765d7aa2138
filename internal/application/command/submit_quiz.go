package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT QUIZ ATTEMPT COMMAND
// Оценивает попытку, записывает LessonProgress и запускает пересчёт.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitQuizCommand contains one quiz attempt.
type SubmitQuizCommand struct {
	// Actor is the verified caller; attempts are always recorded for the actor.
	Actor shared.Principal

	LessonID string

	// Answers maps question id to the chosen option index.
	Answers map[string]int
}

// Validate validates the command.
func (c SubmitQuizCommand) Validate() error {
	if !c.Actor.ID.IsValid() {
		return shared.ErrUnauthenticated
	}
	if strings.TrimSpace(c.LessonID) == "" {
		return shared.ValidationError("progress", "SubmitQuiz", shared.CodeValidation, "lesson id is required")
	}
	for id, opt := range c.Answers {
		if opt < 0 {
			return shared.ValidationError("progress", "SubmitQuiz", shared.CodeValidation,
				fmt.Sprintf("answer for question %s must be a non-negative option index", id))
		}
	}
	return nil
}

// SubmitQuizResult is returned to the learner.
type SubmitQuizResult struct {
	LessonID  string
	CourseID  string
	DayNumber int

	Score    float64
	Passed   bool
	Attempts int

	Progress int
	Status   enrollment.Status

	// UnlockedNextDay is true when this attempt opened the following day.
	UnlockedNextDay bool
	NextDay         int

	AttendanceCreated bool

	// ProgressStale means the attempt is recorded but the recompute failed.
	ProgressStale bool
}

// SubmitQuizHandler handles SubmitQuizCommand.
type SubmitQuizHandler struct {
	store          progress.Store
	promoter       *CompletionPromoter
	events         shared.EventPublisher
	clock          timeutil.Clock
	loc            *time.Location
	newID          IDGenerator
	autoAttendance FeatureGate
	log            *logger.Logger
}

// SubmitQuizDeps groups the handler's collaborators.
type SubmitQuizDeps struct {
	Store    progress.Store
	Promoter *CompletionPromoter
	Events   shared.EventPublisher
	Clock    timeutil.Clock

	// Location decides the calendar date of automatic attendance.
	Location *time.Location

	IDs IDGenerator

	// AutoAttendance enables the present mark on a passing attempt.
	AutoAttendance FeatureGate

	Logger *logger.Logger
}

// NewSubmitQuizHandler creates a new SubmitQuizHandler.
func NewSubmitQuizHandler(d SubmitQuizDeps) *SubmitQuizHandler {
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.IDs == nil {
		d.IDs = NewID
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &SubmitQuizHandler{
		store:          d.Store,
		promoter:       d.Promoter,
		events:         d.Events,
		clock:          d.Clock,
		loc:            d.Location,
		newID:          d.IDs,
		autoAttendance: d.AutoAttendance,
		log:            d.Logger.With(logger.Component("submit_quiz")),
	}
}

// Handle records the attempt. When the recompute fails after the attempt is
// stored, the result is returned together with a progress_stale error.
func (h *SubmitQuizHandler) Handle(ctx context.Context, cmd SubmitQuizCommand) (*SubmitQuizResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	userID := cmd.Actor.ID.String()
	now := h.clock.Now().UTC()

	var (
		res          SubmitQuizResult
		attendanceID string
		newlyOpen    []int
	)

	err := h.store.WithinTx(ctx, func(tx progress.Store) error {
		lesson, err := tx.Catalog().GetLesson(ctx, cmd.LessonID)
		if err != nil {
			return err
		}
		if !lesson.IsQuiz() {
			return shared.ValidationError("progress", "SubmitQuiz", shared.CodeNotQuiz,
				fmt.Sprintf("lesson %s is a %s lesson, not a quiz", lesson.ID, lesson.Type))
		}

		snap, err := progress.LoadSnapshot(ctx, tx, userID, lesson.CourseID, progress.LoadOptions{})
		if err != nil {
			// The lesson exists, so the course does too.
			if shared.IsNotFound(err) {
				return enrollmentNotActive("SubmitQuiz", "")
			}
			return err
		}
		if !snap.Enrollment.IsActive() {
			return enrollmentNotActive("SubmitQuiz", string(snap.Enrollment.Status))
		}
		if !snap.Outline.IsUnlocked(lesson.DayNumber) {
			return shared.AuthorizationError("progress", "SubmitQuiz", shared.CodeDayLocked,
				fmt.Sprintf("day %d is locked", lesson.DayNumber))
		}
		score, err := lesson.Score(cmd.Answers)
		if err != nil {
			return err
		}
		passed := score >= snap.Catalog.Course.Threshold()

		lp, err := tx.LessonProgress().RecordQuizAttempt(ctx, userID, lesson.ID, score, passed, now)
		if err != nil {
			return err
		}

		res = SubmitQuizResult{
			LessonID:  lesson.ID,
			CourseID:  lesson.CourseID,
			DayNumber: lesson.DayNumber,
			Score:     score,
			Passed:    passed,
			Attempts:  lp.QuizAttempts,
			Progress:  snap.Enrollment.Progress,
			Status:    snap.Enrollment.Status,
		}

		if !lp.QuizPassed {
			return nil
		}

		if passed && h.autoAttendance.Enabled(userID) {
			id := h.newID()
			created, err := tx.Attendance().EnsurePresent(ctx, &attendance.Record{
				ID:        id,
				UserID:    userID,
				CourseID:  lesson.CourseID,
				DayNumber: lesson.DayNumber,
				Status:    attendance.StatusPresent,
				Date:      timeutil.StartOfDay(now, h.loc),
				CreatedAt: now,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			res.AttendanceCreated = created
			if created {
				attendanceID = id
			}
		}

		after := progress.EvaluateUnlocks(snap.Catalog.Course.TotalDays, snap.Catalog.Gates(), snap.WithPass(lesson.ID))
		newlyOpen = progress.NewlyUnlocked(snap.Outline, after)
		next := lesson.DayNumber + 1
		for _, d := range newlyOpen {
			if d == next {
				res.UnlockedNextDay = true
			}
		}
		if after.IsUnlocked(next) {
			res.NextDay = next
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := h.log.With(logger.UserID(userID), logger.LessonID(res.LessonID), logger.CourseID(res.CourseID))
	log.Info("quiz attempt recorded",
		logger.DayNumber(res.DayNumber),
		logger.Score(res.Score),
		logger.Bool("passed", res.Passed),
		logger.Int("attempts", res.Attempts),
	)

	h.publish(shared.NewQuizAttemptedEvent(userID, res.CourseID, res.LessonID, res.DayNumber, res.Score, res.Passed, res.Attempts))
	for _, d := range newlyOpen {
		h.publish(shared.NewDayUnlockedEvent(userID, res.CourseID, d))
	}
	if res.AttendanceCreated {
		h.publish(shared.NewAttendanceMarkedEvent(attendanceID, userID, res.CourseID, res.DayNumber, string(attendance.StatusPresent), true))
	}

	promo, err := h.promoter.Promote(ctx, userID, res.CourseID)
	if err != nil {
		res.ProgressStale = true
		log.Warn("attempt recorded with stale progress", logger.Err(err))
		return &res, err
	}
	res.Progress = promo.Progress
	res.Status = promo.Status
	return &res, nil
}

func (h *SubmitQuizHandler) publish(e shared.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(e); err != nil {
		h.log.Warn("event publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
	}
}
