package progress

import (
	"context"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// Snapshot is one learner's state in one course, loaded in a single pass.
type Snapshot struct {
	Catalog    *course.Catalog
	Enrollment *enrollment.Enrollment
	Progress   []enrollment.LessonProgress
	Passed     map[string]bool
	Outline    Outline
}

// LoadOptions selects how the enrollment row is read.
type LoadOptions struct {
	// ForUpdate locks the enrollment row. Only meaningful inside WithinTx.
	ForUpdate bool

	// AllLessons loads progress for every lesson, not only quiz gates.
	AllLessons bool
}

// LoadSnapshot reads catalog, current enrollment and lesson progress.
// Returns NotFound when the course or the enrollment does not exist.
func LoadSnapshot(ctx context.Context, s Store, userID, courseID string, opts LoadOptions) (*Snapshot, error) {
	catalog, err := s.Catalog().GetCatalog(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var e *enrollment.Enrollment
	if opts.ForUpdate {
		e, err = s.Enrollments().GetCurrentForUpdate(ctx, userID, courseID)
	} else {
		e, err = s.Enrollments().GetCurrent(ctx, userID, courseID)
	}
	if err != nil {
		return nil, err
	}

	ids := catalog.QuizLessonIDs()
	if opts.AllLessons {
		ids = make([]string, 0, len(catalog.Lessons))
		for _, l := range catalog.Lessons {
			ids = append(ids, l.ID)
		}
	}
	records, err := s.LessonProgress().List(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Catalog:    catalog,
		Enrollment: e,
		Progress:   records,
		Passed:     enrollment.PassedSet(records),
	}
	snap.Outline = EvaluateUnlocks(catalog.Course.TotalDays, catalog.Gates(), snap.Passed)
	return snap, nil
}

// Percentage recomputes progress from the loaded records.
func (s *Snapshot) Percentage() (shared.Percentage, bool) {
	return Calculate(s.Catalog.QuizLessonIDs(), s.Passed)
}

// ByLesson indexes the loaded progress by lesson id.
func (s *Snapshot) ByLesson() map[string]enrollment.LessonProgress {
	out := make(map[string]enrollment.LessonProgress, len(s.Progress))
	for _, p := range s.Progress {
		out[p.LessonID] = p
	}
	return out
}

// WithPass returns a copy of the pass set including lessonID.
func (s *Snapshot) WithPass(lessonID string) map[string]bool {
	out := make(map[string]bool, len(s.Passed)+1)
	for k, v := range s.Passed {
		out[k] = v
	}
	out[lessonID] = true
	return out
}
