package command

import (
	"context"
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
// MARK ATTENDANCE COMMAND
// Отметка посещаемости за день курса. Повторная отметка обновляет запись.
// ══════════════════════════════════════════════════════════════════════════════

// MarkAttendanceCommand marks one course day for a learner.
type MarkAttendanceCommand struct {
	Actor shared.Principal

	// UserID is the learner; empty means the actor. Only admins may mark others.
	UserID string

	CourseID  string
	DayNumber int
	Status    string

	// Date is the calendar date of the session; zero means today.
	Date time.Time
}

// Validate checks fields that do not need the catalog.
func (c MarkAttendanceCommand) Validate() error {
	if strings.TrimSpace(c.CourseID) == "" {
		return shared.ValidationError("attendance", "Mark", shared.CodeValidation, "course id is required")
	}
	if c.DayNumber < 1 {
		return shared.ValidationError("attendance", "Mark", shared.CodeInvalidDay, "day number must be a positive integer")
	}
	if _, err := attendance.ParseStatus(c.Status); err != nil {
		return err
	}
	return nil
}

// MarkAttendanceResult is the stored mark plus the refreshed enrollment.
type MarkAttendanceResult struct {
	Record  attendance.Record
	Created bool

	Progress int
	Status   enrollment.Status

	ProgressStale bool
}

// MarkAttendanceHandler handles MarkAttendanceCommand.
type MarkAttendanceHandler struct {
	store    progress.Store
	promoter *CompletionPromoter
	events   shared.EventPublisher
	clock    timeutil.Clock
	loc      *time.Location
	newID    IDGenerator
	log      *logger.Logger
}

// NewMarkAttendanceHandler creates a new MarkAttendanceHandler.
func NewMarkAttendanceHandler(
	store progress.Store,
	promoter *CompletionPromoter,
	events shared.EventPublisher,
	clock timeutil.Clock,
	loc *time.Location,
	log *logger.Logger,
) *MarkAttendanceHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	return &MarkAttendanceHandler{
		store:    store,
		promoter: promoter,
		events:   events,
		clock:    clock,
		loc:      loc,
		newID:    NewID,
		log:      log.With(logger.Component("mark_attendance")),
	}
}

// Handle upserts the mark and runs the completion promoter. Notification
// fan-out happens through the AttendanceMarked event and never fails the call.
func (h *MarkAttendanceHandler) Handle(ctx context.Context, cmd MarkAttendanceCommand) (*MarkAttendanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	subject, err := resolveSubject("attendance", "Mark", cmd.Actor, cmd.UserID)
	if err != nil {
		return nil, err
	}
	userID := subject.String()
	status, _ := attendance.ParseStatus(cmd.Status)
	now := h.clock.Now().UTC()

	date := cmd.Date
	if date.IsZero() {
		date = now
	}
	date = timeutil.StartOfDay(date, h.loc)

	var res MarkAttendanceResult
	err = h.store.WithinTx(ctx, func(tx progress.Store) error {
		catalog, err := tx.Catalog().GetCatalog(ctx, cmd.CourseID)
		if err != nil {
			return err
		}

		rec := &attendance.Record{
			ID:        h.newID(),
			UserID:    userID,
			CourseID:  cmd.CourseID,
			DayNumber: cmd.DayNumber,
			Status:    status,
			Date:      date,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if userID != cmd.Actor.ID.String() {
			rec.MarkedBy = cmd.Actor.ID.String()
		}
		if err := rec.Validate(catalog.Course.TotalDays); err != nil {
			return err
		}

		e, err := tx.Enrollments().GetCurrent(ctx, userID, cmd.CourseID)
		if err != nil {
			if shared.IsNotFound(err) {
				return enrollmentNotActive("MarkAttendance", "")
			}
			return err
		}
		if !e.IsActive() {
			return enrollmentNotActive("MarkAttendance", string(e.Status))
		}

		stored, created, err := tx.Attendance().Upsert(ctx, rec)
		if err != nil {
			return err
		}
		res.Record = *stored
		res.Created = created
		res.Progress = e.Progress
		res.Status = e.Status
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := h.log.With(logger.UserID(userID), logger.CourseID(cmd.CourseID), logger.DayNumber(cmd.DayNumber))
	log.Info("attendance marked",
		logger.String("status", string(res.Record.Status)),
		logger.Bool("created", res.Created),
		logger.String("marked_by", res.Record.MarkedBy),
	)

	if h.events != nil {
		ev := shared.NewAttendanceMarkedEvent(res.Record.ID, userID, cmd.CourseID, cmd.DayNumber, string(res.Record.Status), res.Created)
		if err := h.events.Publish(ev); err != nil {
			log.Warn("event publish failed", logger.Err(err))
		}
	}

	promo, err := h.promoter.Promote(ctx, userID, cmd.CourseID)
	if err != nil {
		res.ProgressStale = true
		log.Warn("attendance recorded with stale progress", logger.Err(err))
		return &res, err
	}
	res.Progress = promo.Progress
	res.Status = promo.Status
	return &res, nil
}
