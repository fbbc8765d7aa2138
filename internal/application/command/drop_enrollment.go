package command

import (
	"context"
	"strings"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// DropEnrollmentCommand drops the learner's current enrollment.
type DropEnrollmentCommand struct {
	Actor shared.Principal

	// UserID is the learner; empty means the actor.
	UserID   string
	CourseID string
}

// DropEnrollmentResult contains the enrollment after the drop.
type DropEnrollmentResult struct {
	Enrollment enrollment.Enrollment

	// AlreadyDropped is true when nothing changed.
	AlreadyDropped bool
}

// DropEnrollmentHandler handles DropEnrollmentCommand.
type DropEnrollmentHandler struct {
	store  progress.Store
	events shared.EventPublisher
	clock  timeutil.Clock
	log    *logger.Logger
}

// NewDropEnrollmentHandler creates a new DropEnrollmentHandler.
func NewDropEnrollmentHandler(store progress.Store, events shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *DropEnrollmentHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &DropEnrollmentHandler{
		store:  store,
		events: events,
		clock:  clock,
		log:    log.With(logger.Component("drop_enrollment")),
	}
}

// Handle moves enrolled to dropped. Dropping twice is a no-op; dropping a
// completed enrollment is an invalid transition.
func (h *DropEnrollmentHandler) Handle(ctx context.Context, cmd DropEnrollmentCommand) (*DropEnrollmentResult, error) {
	if strings.TrimSpace(cmd.CourseID) == "" {
		return nil, shared.ValidationError("enrollment", "Drop", shared.CodeValidation, "course id is required")
	}
	subject, err := resolveSubject("enrollment", "Drop", cmd.Actor, cmd.UserID)
	if err != nil {
		return nil, err
	}
	userID := subject.String()

	current, err := h.store.Enrollments().GetCurrent(ctx, userID, cmd.CourseID)
	if err != nil {
		return nil, err
	}
	if current.Status == enrollment.StatusDropped {
		return &DropEnrollmentResult{Enrollment: *current, AlreadyDropped: true}, nil
	}
	if current.Status == enrollment.StatusCompleted {
		return nil, shared.ErrInvalidTransition
	}

	stored, err := h.store.Enrollments().Drop(ctx, current.ID, h.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	h.log.Info("enrollment dropped",
		logger.UserID(userID),
		logger.CourseID(cmd.CourseID),
		logger.EnrollmentID(stored.ID),
		logger.Progress(stored.Progress),
	)
	if h.events != nil {
		if err := h.events.Publish(shared.NewEnrollmentDroppedEvent(stored.ID, userID, cmd.CourseID, stored.Progress)); err != nil {
			h.log.Warn("event publish failed", logger.Err(err))
		}
	}
	return &DropEnrollmentResult{Enrollment: *stored}, nil
}
