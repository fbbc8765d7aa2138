package command

import (
	"context"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION PROMOTER
// Пересчитывает прогресс записи по полному набору LessonProgress и
// переводит enrolled → completed при 100%. Идемпотентен.
// ══════════════════════════════════════════════════════════════════════════════

// PromotionResult is the enrollment state after a recompute.
type PromotionResult struct {
	EnrollmentID     string
	Progress         int
	PreviousProgress int
	Status           enrollment.Status
	PreviousStatus   enrollment.Status
	CompletedAt      *time.Time

	// Completed is true only for the call that moved enrolled to completed.
	Completed bool

	// Changed is false when the stored row already matched.
	Changed bool

	Outline progress.Outline
}

// CompletionPromoter recomputes and persists enrollment progress.
type CompletionPromoter struct {
	store  progress.Store
	events shared.EventPublisher
	clock  timeutil.Clock
	log    *logger.Logger
}

// NewCompletionPromoter creates a promoter. events may be nil.
func NewCompletionPromoter(store progress.Store, events shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *CompletionPromoter {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CompletionPromoter{
		store:  store,
		events: events,
		clock:  clock,
		log:    log.With(logger.Component("completion_promoter")),
	}
}

// Promote recomputes the learner's current enrollment in courseID.
//
// The enrollment row is locked for the whole recompute, so concurrent calls
// serialize and each one sees every pass committed before it. A completed or
// dropped enrollment keeps its status; only the percentage is refreshed.
func (p *CompletionPromoter) Promote(ctx context.Context, userID, courseID string) (*PromotionResult, error) {
	var res PromotionResult

	err := p.store.WithinTx(ctx, func(tx progress.Store) error {
		snap, err := progress.LoadSnapshot(ctx, tx, userID, courseID, progress.LoadOptions{ForUpdate: true})
		if err != nil {
			return err
		}
		if len(snap.Outline.IntegrityIssues) > 0 {
			p.log.Warn("course days without quiz gate",
				logger.CourseID(courseID),
				logger.Any("days", snap.Outline.IntegrityIssues),
			)
		}

		e := snap.Enrollment
		computed, ok := snap.Percentage()
		target := progress.Resolve(e.Progress, computed, ok)

		res.EnrollmentID = e.ID
		res.PreviousProgress = e.Progress
		res.PreviousStatus = e.Status
		res.Outline = snap.Outline

		t := e.ApplyProgress(target, p.clock.Now().UTC())
		if e.Progress == t.PreviousProgress && e.Status == t.PreviousStatus {
			res.Progress = e.Progress
			res.Status = e.Status
			res.CompletedAt = e.CompletedAt
			return nil
		}

		stored, err := tx.Enrollments().SaveState(ctx, e)
		if err != nil {
			return err
		}
		res.Changed = true
		res.Progress = stored.Progress
		res.Status = stored.Status
		res.CompletedAt = stored.CompletedAt
		res.Completed = t.Completed && stored.Status == enrollment.StatusCompleted
		return nil
	})
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, err
		}
		p.log.Error("progress recompute failed",
			logger.UserID(userID),
			logger.CourseID(courseID),
			logger.Err(err),
		)
		return nil, staleProgress("Promote", err)
	}

	if res.Changed {
		p.log.Info("progress recomputed",
			logger.UserID(userID),
			logger.CourseID(courseID),
			logger.EnrollmentID(res.EnrollmentID),
			logger.Progress(res.Progress),
			logger.String("status", string(res.Status)),
		)
	}
	if res.Completed {
		p.publish(shared.NewEnrollmentCompletedEvent(res.EnrollmentID, userID, courseID, *res.CompletedAt))
	}
	return &res, nil
}

func (p *CompletionPromoter) publish(e shared.Event) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(e); err != nil {
		p.log.Warn("event publish failed", logger.String("event_type", string(e.EventType())), logger.Err(err))
	}
}
