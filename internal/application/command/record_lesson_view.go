package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// RecordLessonViewCommand marks a video or pdf lesson as viewed.
type RecordLessonViewCommand struct {
	Actor    shared.Principal
	LessonID string
}

// RecordLessonViewHandler handles RecordLessonViewCommand.
// Views are informational and never change progress.
type RecordLessonViewHandler struct {
	store progress.Store
	clock timeutil.Clock
	log   *logger.Logger
}

// NewRecordLessonViewHandler creates a new RecordLessonViewHandler.
func NewRecordLessonViewHandler(store progress.Store, clock timeutil.Clock, log *logger.Logger) *RecordLessonViewHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &RecordLessonViewHandler{store: store, clock: clock, log: log.With(logger.Component("lesson_view"))}
}

// Handle records the view when the lesson's day is unlocked.
func (h *RecordLessonViewHandler) Handle(ctx context.Context, cmd RecordLessonViewCommand) (*enrollment.LessonProgress, error) {
	if !cmd.Actor.ID.IsValid() {
		return nil, shared.ErrUnauthenticated
	}
	if strings.TrimSpace(cmd.LessonID) == "" {
		return nil, shared.ValidationError("progress", "RecordView", shared.CodeValidation, "lesson id is required")
	}
	userID := cmd.Actor.ID.String()

	lesson, err := h.store.Catalog().GetLesson(ctx, cmd.LessonID)
	if err != nil {
		return nil, err
	}

	var component enrollment.Component
	switch lesson.Type {
	case course.LessonVideo:
		component = enrollment.ComponentVideo
	case course.LessonPDF:
		component = enrollment.ComponentPDF
	default:
		return nil, shared.ValidationError("progress", "RecordView", shared.CodeValidation,
			fmt.Sprintf("lesson %s is a %s lesson; quizzes are submitted, not viewed", lesson.ID, lesson.Type))
	}

	snap, err := progress.LoadSnapshot(ctx, h.store, userID, lesson.CourseID, progress.LoadOptions{})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, enrollmentNotActive("RecordView", "")
		}
		return nil, err
	}
	if snap.Enrollment.Status == enrollment.StatusDropped {
		return nil, enrollmentNotActive("RecordView", string(snap.Enrollment.Status))
	}
	if !snap.Outline.IsUnlocked(lesson.DayNumber) {
		return nil, shared.AuthorizationError("progress", "RecordView", shared.CodeDayLocked,
			fmt.Sprintf("day %d is locked", lesson.DayNumber))
	}

	lp, err := h.store.LessonProgress().MarkViewed(ctx, userID, lesson.ID, component, h.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	h.log.Debug("lesson viewed", logger.UserID(userID), logger.LessonID(lesson.ID), logger.String("component", string(component)))
	return lp, nil
}
