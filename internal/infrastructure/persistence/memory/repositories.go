package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

type catalogRepo struct{ s *Store }

func (r *catalogRepo) GetCatalog(_ context.Context, courseID string) (*course.Catalog, error) {
	var out *course.Catalog
	err := r.s.do("GetCatalog", func(st *state) error {
		c, ok := st.courses[courseID]
		if !ok {
			return shared.NotFoundError("course", "GetCatalog", "course", courseID)
		}
		lessons := make([]course.Lesson, 0)
		for _, l := range st.lessons {
			if l.CourseID == courseID {
				lessons = append(lessons, l)
			}
		}
		sort.Slice(lessons, func(i, j int) bool {
			a, b := lessons[i], lessons[j]
			if a.DayNumber != b.DayNumber {
				return a.DayNumber < b.DayNumber
			}
			if a.Position != b.Position {
				return a.Position < b.Position
			}
			return a.ID < b.ID
		})
		out = &course.Catalog{Course: c, Lessons: lessons}
		return nil
	})
	return out, err
}

func (r *catalogRepo) GetLesson(_ context.Context, lessonID string) (*course.Lesson, error) {
	var out *course.Lesson
	err := r.s.do("GetLesson", func(st *state) error {
		l, ok := st.lessons[lessonID]
		if !ok {
			return shared.NotFoundError("course", "GetLesson", "lesson", lessonID)
		}
		out = &l
		return nil
	})
	return out, err
}

func (r *catalogRepo) SaveCatalog(_ context.Context, catalog *course.Catalog) error {
	return r.s.do("SaveCatalog", func(st *state) error {
		c := catalog.Course
		if prev, ok := st.courses[c.ID]; ok && !prev.CreatedAt.IsZero() {
			c.CreatedAt = prev.CreatedAt
		}

		keep := make(map[string]bool, len(catalog.Lessons))
		for _, l := range catalog.Lessons {
			if existing, ok := st.lessons[l.ID]; ok && existing.CourseID != c.ID {
				return shared.NewDomainError("course", "SaveCatalog", shared.ErrAlreadyExists,
					fmt.Sprintf("lesson %s belongs to another course", l.ID)).WithCode(shared.CodeConflict)
			}
			keep[l.ID] = true
		}

		st.courses[c.ID] = c
		for id, l := range st.lessons {
			if l.CourseID == c.ID && !keep[id] {
				delete(st.lessons, id)
				for k := range st.progress {
					if k.lessonID == id {
						delete(st.progress, k)
					}
				}
			}
		}
		for _, l := range catalog.Lessons {
			l.CourseID = c.ID
			st.lessons[l.ID] = l
		}
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentRepo struct{ s *Store }

func (r *enrollmentRepo) Create(_ context.Context, e *enrollment.Enrollment) error {
	return r.s.do("Create", func(st *state) error {
		if _, ok := st.profiles[e.UserID]; !ok {
			return shared.NotFoundError("enrollment", "Create", "user", e.UserID)
		}
		if _, ok := st.courses[e.CourseID]; !ok {
			return shared.NotFoundError("enrollment", "Create", "course", e.CourseID)
		}
		if _, ok := st.enrollments[e.ID]; ok {
			return conflict("enrollment", "Create", "enrollment "+e.ID+" already exists")
		}
		for _, other := range st.enrollments {
			if other.UserID == e.UserID && other.CourseID == e.CourseID && other.Status != enrollment.StatusDropped {
				return conflict("enrollment", "Create", "active enrollment already exists")
			}
		}
		st.enrollments[e.ID] = *e
		return nil
	})
}

func (r *enrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.s.do("GetByID", func(st *state) error {
		e, ok := st.enrollments[id]
		if !ok {
			return shared.NotFoundError("enrollment", "GetByID", "enrollment", id)
		}
		out = &e
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) GetCurrent(_ context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	return r.current("GetCurrent", userID, courseID)
}

// GetCurrentForUpdate needs no extra locking: transactions are serialized.
func (r *enrollmentRepo) GetCurrentForUpdate(_ context.Context, userID, courseID string) (*enrollment.Enrollment, error) {
	return r.current("GetCurrentForUpdate", userID, courseID)
}

func (r *enrollmentRepo) current(op, userID, courseID string) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.s.do(op, func(st *state) error {
		for _, e := range st.enrollments {
			if e.UserID != userID || e.CourseID != courseID {
				continue
			}
			if out == nil || better(e, *out) {
				e := e
				out = &e
			}
		}
		if out == nil {
			return shared.NotFoundError("enrollment", op, "enrollment for course", courseID)
		}
		return nil
	})
	return out, err
}

// better orders like the SQL: non-dropped first, then the latest.
func better(a, b enrollment.Enrollment) bool {
	aDropped, bDropped := a.Status == enrollment.StatusDropped, b.Status == enrollment.StatusDropped
	if aDropped != bDropped {
		return !aDropped
	}
	return a.EnrolledAt.After(b.EnrolledAt)
}

func (r *enrollmentRepo) SaveState(_ context.Context, e *enrollment.Enrollment) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.s.do("SaveState", func(st *state) error {
		cur, ok := st.enrollments[e.ID]
		if !ok {
			return shared.NotFoundError("enrollment", "SaveState", "enrollment", e.ID)
		}
		cur.Progress = e.Progress
		if cur.Status == enrollment.StatusEnrolled && e.Status == enrollment.StatusCompleted {
			cur.Status = enrollment.StatusCompleted
			if cur.CompletedAt == nil {
				cur.CompletedAt = copyTime(e.CompletedAt)
			}
		}
		cur.UpdatedAt = e.UpdatedAt
		st.enrollments[e.ID] = cur
		out = &cur
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) Drop(_ context.Context, id string, at time.Time) (*enrollment.Enrollment, error) {
	var out *enrollment.Enrollment
	err := r.s.do("Drop", func(st *state) error {
		cur, ok := st.enrollments[id]
		if !ok {
			return shared.NotFoundError("enrollment", "Drop", "enrollment", id)
		}
		if _, err := cur.Drop(at); err != nil {
			return err
		}
		st.enrollments[id] = cur
		out = &cur
		return nil
	})
	return out, err
}

func (r *enrollmentRepo) ListEnrolled(_ context.Context, afterID string, limit int) ([]enrollment.Enrollment, error) {
	var out []enrollment.Enrollment
	err := r.s.do("ListEnrolled", func(st *state) error {
		for _, e := range st.enrollments {
			if e.Status == enrollment.StatusEnrolled && e.ID > afterID {
				out = append(out, e)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

type lessonProgressRepo struct{ s *Store }

func (r *lessonProgressRepo) RecordQuizAttempt(_ context.Context, userID, lessonID string, score float64, passed bool, at time.Time) (*enrollment.LessonProgress, error) {
	var out *enrollment.LessonProgress
	err := r.s.do("RecordQuizAttempt", func(st *state) error {
		p, err := st.lessonProgress(userID, lessonID, at)
		if err != nil {
			return err
		}
		p.RecordAttempt(score, passed, at)
		st.progress[progressKey{userID, lessonID}] = *p
		out = p
		return nil
	})
	return out, err
}

func (r *lessonProgressRepo) MarkViewed(_ context.Context, userID, lessonID string, c enrollment.Component, at time.Time) (*enrollment.LessonProgress, error) {
	if c != enrollment.ComponentVideo && c != enrollment.ComponentPDF {
		return nil, shared.ValidationError("enrollment", "MarkViewed", shared.CodeValidation, "unknown lesson component")
	}
	var out *enrollment.LessonProgress
	err := r.s.do("MarkViewed", func(st *state) error {
		p, err := st.lessonProgress(userID, lessonID, at)
		if err != nil {
			return err
		}
		p.MarkViewed(c, at)
		st.progress[progressKey{userID, lessonID}] = *p
		out = p
		return nil
	})
	return out, err
}

func (r *lessonProgressRepo) List(_ context.Context, userID string, lessonIDs []string) ([]enrollment.LessonProgress, error) {
	result := make([]enrollment.LessonProgress, 0, len(lessonIDs))
	err := r.s.do("ListLessonProgress", func(st *state) error {
		seen := make(map[string]bool, len(lessonIDs))
		for _, id := range lessonIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			if p, ok := st.progress[progressKey{userID, id}]; ok {
				result = append(result, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LessonID < result[j].LessonID })
	return result, nil
}

// lessonProgress returns a copy of the row or a fresh one, checking the
// same references the postgres foreign keys do.
func (st *state) lessonProgress(userID, lessonID string, now time.Time) (*enrollment.LessonProgress, error) {
	if _, ok := st.profiles[userID]; !ok {
		return nil, shared.NotFoundError("enrollment", "LessonProgress", "user", userID)
	}
	if _, ok := st.lessons[lessonID]; !ok {
		return nil, shared.NotFoundError("enrollment", "LessonProgress", "lesson", lessonID)
	}
	if p, ok := st.progress[progressKey{userID, lessonID}]; ok {
		p.QuizScore = copyFloat(p.QuizScore)
		return &p, nil
	}
	return enrollment.NewLessonProgress(userID, lessonID, now), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

type attendanceRepo struct{ s *Store }

func (r *attendanceRepo) Upsert(_ context.Context, rec *attendance.Record) (*attendance.Record, bool, error) {
	var out *attendance.Record
	var created bool
	err := r.s.do("UpsertAttendance", func(st *state) error {
		if err := st.checkAttendanceRefs(rec); err != nil {
			return err
		}
		key := attendanceKey{rec.UserID, rec.CourseID, rec.DayNumber}
		stored, ok := st.attendance[key]
		if ok {
			stored.Status = rec.Status
			stored.Date = rec.Date
			stored.MarkedBy = rec.MarkedBy
			stored.UpdatedAt = rec.UpdatedAt
		} else {
			stored = *rec
			created = true
		}
		st.attendance[key] = stored
		out = &stored
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *attendanceRepo) EnsurePresent(_ context.Context, rec *attendance.Record) (bool, error) {
	var created bool
	err := r.s.do("EnsurePresent", func(st *state) error {
		if err := st.checkAttendanceRefs(rec); err != nil {
			return err
		}
		key := attendanceKey{rec.UserID, rec.CourseID, rec.DayNumber}
		if _, ok := st.attendance[key]; ok {
			return nil
		}
		st.attendance[key] = *rec
		created = true
		return nil
	})
	return created, err
}

func (r *attendanceRepo) List(_ context.Context, userID, courseID string) ([]attendance.Record, error) {
	result := make([]attendance.Record, 0)
	err := r.s.do("ListAttendance", func(st *state) error {
		for k, rec := range st.attendance {
			if k.userID == userID && k.courseID == courseID {
				result = append(result, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DayNumber < result[j].DayNumber })
	return result, nil
}

func (st *state) checkAttendanceRefs(rec *attendance.Record) error {
	if _, ok := st.profiles[rec.UserID]; !ok {
		return shared.NotFoundError("attendance", "Upsert", "user", rec.UserID)
	}
	if _, ok := st.courses[rec.CourseID]; !ok {
		return shared.NotFoundError("attendance", "Upsert", "course", rec.CourseID)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILES
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ s *Store }

func (r *studentRepo) Upsert(_ context.Context, p *student.Profile) error {
	return r.s.do("UpsertProfile", func(st *state) error {
		stored, ok := st.profiles[p.ID]
		if !ok {
			st.profiles[p.ID] = *p
			return nil
		}
		if p.Email != "" {
			stored.Email = p.Email
		}
		if p.FullName != "" {
			stored.FullName = p.FullName
		}
		stored.Role = p.Role
		stored.UpdatedAt = p.UpdatedAt
		st.profiles[p.ID] = stored
		return nil
	})
}

func (r *studentRepo) GetByID(_ context.Context, id string) (*student.Profile, error) {
	var out *student.Profile
	err := r.s.do("GetProfile", func(st *state) error {
		p, ok := st.profiles[id]
		if !ok {
			return shared.NotFoundError("student", "GetByID", "profile", id)
		}
		out = &p
		return nil
	})
	return out, err
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func conflict(domain, op, msg string) error {
	return shared.NewDomainError(domain, op, shared.ErrAlreadyExists, msg).WithCode(shared.CodeConflict)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
