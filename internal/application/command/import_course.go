package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/timeutil"
)

// ImportCourseCommand replaces a course and its lessons as one document.
type ImportCourseCommand struct {
	Actor   shared.Principal
	Catalog course.Catalog

	// StrictIntegrity rejects catalogs where some day has no quiz gate.
	StrictIntegrity bool
}

// ImportCourseResult summarizes the stored catalog.
type ImportCourseResult struct {
	CourseID        string
	Lessons         int
	GatedDays       int
	IntegrityIssues []int
}

// ImportCourseHandler handles ImportCourseCommand.
type ImportCourseHandler struct {
	store  progress.Store
	events shared.EventPublisher
	clock  timeutil.Clock
	log    *logger.Logger

	defaultPassingScore float64
}

// NewImportCourseHandler creates a new ImportCourseHandler.
func NewImportCourseHandler(store progress.Store, events shared.EventPublisher, clock timeutil.Clock, log *logger.Logger) *ImportCourseHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ImportCourseHandler{store: store, events: events, clock: clock, log: log.With(logger.Component("import_course"))}
}

// WithDefaultPassingScore sets the threshold stored for courses that do not
// carry their own. Zero keeps course.DefaultPassingScore.
func (h *ImportCourseHandler) WithDefaultPassingScore(score float64) *ImportCourseHandler {
	h.defaultPassingScore = score
	return h
}

// Handle validates and stores the catalog. Lessons keep their course id from
// the document's course; a lesson that names another course is rejected.
func (h *ImportCourseHandler) Handle(ctx context.Context, cmd ImportCourseCommand) (*ImportCourseResult, error) {
	if err := requireAdmin(cmd.Actor); err != nil {
		return nil, err
	}

	catalog := cmd.Catalog
	catalog.Lessons = append([]course.Lesson(nil), cmd.Catalog.Lessons...)
	courseID := strings.TrimSpace(catalog.Course.ID)
	for i := range catalog.Lessons {
		l := &catalog.Lessons[i]
		switch l.CourseID {
		case "":
			l.CourseID = courseID
		case courseID:
		default:
			return nil, shared.ValidationError("course", "Import", shared.CodeCatalogIntegrity,
				fmt.Sprintf("lesson %s belongs to course %s", l.ID, l.CourseID))
		}
	}
	if catalog.Course.Status == "" {
		catalog.Course.Status = course.StatusActive
	}
	if catalog.Course.PassingScore <= 0 && h.defaultPassingScore > 0 {
		catalog.Course.PassingScore = h.defaultPassingScore
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}

	outline := progress.EvaluateUnlocks(catalog.Course.TotalDays, catalog.Gates(), nil)
	if cmd.StrictIntegrity && len(outline.IntegrityIssues) > 0 {
		return nil, shared.ValidationError("course", "Import", shared.CodeCatalogIntegrity,
			fmt.Sprintf("days without a quiz gate: %v", outline.IntegrityIssues))
	}

	now := h.clock.Now().UTC()
	if catalog.Course.CreatedAt.IsZero() {
		catalog.Course.CreatedAt = now
	}
	catalog.Course.UpdatedAt = now

	err := h.store.WithinTx(ctx, func(tx progress.Store) error {
		return tx.Catalog().SaveCatalog(ctx, &catalog)
	})
	if err != nil {
		return nil, err
	}

	res := &ImportCourseResult{
		CourseID:        courseID,
		Lessons:         len(catalog.Lessons),
		GatedDays:       outline.GatedDays(),
		IntegrityIssues: outline.IntegrityIssues,
	}
	log := h.log.With(logger.CourseID(courseID), logger.String("admin_id", cmd.Actor.ID.String()))
	log.Info("catalog imported", logger.Int("lessons", res.Lessons), logger.Int("gated_days", res.GatedDays))
	if len(res.IntegrityIssues) > 0 {
		log.Warn("catalog has days without quiz gate", logger.Any("days", res.IntegrityIssues))
	}
	if h.events != nil {
		if err := h.events.Publish(shared.NewCatalogImportedEvent(courseID, res.Lessons, catalog.Course.TotalDays)); err != nil {
			log.Warn("event publish failed", logger.Err(err))
		}
	}
	return res, nil
}
