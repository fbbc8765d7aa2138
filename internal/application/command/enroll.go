package command

import (
	"context"
	"strings"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand enrolls the actor into a course.
type EnrollCommand struct {
	Actor    shared.Principal
	CourseID string
}

// EnrollResult contains the enrollment the learner now has.
type EnrollResult struct {
	Enrollment enrollment.Enrollment

	// AlreadyEnrolled is true when an enrolled or completed row existed.
	AlreadyEnrolled bool
}

// EnrollHandler handles EnrollCommand.
type EnrollHandler struct {
	store  progress.Store
	events shared.EventPublisher
	clock  timeutil.Clock
	newID  IDGenerator
	log    *logger.Logger
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(store progress.Store, events shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *EnrollHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EnrollHandler{
		store:  store,
		events: events,
		clock:  clock,
		newID:  NewID,
		log:    log.With(logger.Component("enroll")),
	}
}

// Handle creates the enrollment or returns the existing one. A concurrent
// enroll that wins the unique index is resolved by reading its row back.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*EnrollResult, error) {
	if !cmd.Actor.ID.IsValid() {
		return nil, shared.ErrUnauthenticated
	}
	if strings.TrimSpace(cmd.CourseID) == "" {
		return nil, shared.ValidationError("enrollment", "Enroll", shared.CodeValidation, "course id is required")
	}
	userID := cmd.Actor.ID.String()
	now := h.clock.Now().UTC()

	var res EnrollResult
	err := h.store.WithinTx(ctx, func(tx progress.Store) error {
		catalog, err := tx.Catalog().GetCatalog(ctx, cmd.CourseID)
		if err != nil {
			return err
		}

		profile := student.FromPrincipal(cmd.Actor, now)
		if err := tx.Students().Upsert(ctx, profile); err != nil {
			return err
		}

		current, err := tx.Enrollments().GetCurrent(ctx, userID, cmd.CourseID)
		switch {
		case err == nil && current.Status != enrollment.StatusDropped:
			res = EnrollResult{Enrollment: *current, AlreadyEnrolled: true}
			return nil
		case err != nil && !shared.IsNotFound(err):
			return err
		}

		if !catalog.Course.IsActive() {
			return shared.ValidationError("course", "Enroll", shared.CodeCourseNotActive,
				"course "+cmd.CourseID+" is not open for enrollment")
		}

		e := enrollment.New(h.newID(), userID, cmd.CourseID, now)
		if err := tx.Enrollments().Create(ctx, e); err != nil {
			return err
		}
		res = EnrollResult{Enrollment: *e}
		return nil
	})

	if shared.IsAlreadyExists(err) {
		current, gerr := h.store.Enrollments().GetCurrent(ctx, userID, cmd.CourseID)
		if gerr == nil && current.Status != enrollment.StatusDropped {
			return &EnrollResult{Enrollment: *current, AlreadyEnrolled: true}, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if !res.AlreadyEnrolled {
		h.log.Info("learner enrolled",
			logger.UserID(userID),
			logger.CourseID(cmd.CourseID),
			logger.EnrollmentID(res.Enrollment.ID),
		)
		if h.events != nil {
			if err := h.events.Publish(shared.NewEnrolledEvent(res.Enrollment.ID, userID, cmd.CourseID)); err != nil {
				h.log.Warn("event publish failed", logger.Err(err))
			}
		}
	}
	return &res, nil
}
