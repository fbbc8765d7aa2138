// Package memory provides an in-memory progress store for tests and local
// runs without PostgreSQL. It keeps the same guarded-write semantics as the
// postgres package.
package memory

import (
	"context"
	"sync"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
)

var _ progress.Store = (*Store)(nil)

type progressKey struct {
	userID   string
	lessonID string
}

type attendanceKey struct {
	userID   string
	courseID string
	day      int
}

type state struct {
	courses     map[string]course.Course
	lessons     map[string]course.Lesson
	enrollments map[string]enrollment.Enrollment
	progress    map[progressKey]enrollment.LessonProgress
	attendance  map[attendanceKey]attendance.Record
	profiles    map[string]student.Profile
}

func newState() *state {
	return &state{
		courses:     make(map[string]course.Course),
		lessons:     make(map[string]course.Lesson),
		enrollments: make(map[string]enrollment.Enrollment),
		progress:    make(map[progressKey]enrollment.LessonProgress),
		attendance:  make(map[attendanceKey]attendance.Record),
		profiles:    make(map[string]student.Profile),
	}
}

// clone copies every table. Values are copied, pointers inside values are
// never mutated in place, so a shallow copy per row is enough.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.courses {
		c.courses[k] = v
	}
	for k, v := range st.lessons {
		c.lessons[k] = v
	}
	for k, v := range st.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range st.progress {
		c.progress[k] = v
	}
	for k, v := range st.attendance {
		c.attendance[k] = v
	}
	for k, v := range st.profiles {
		c.profiles[k] = v
	}
	return c
}

type root struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
}

// Store implements progress.Store over maps guarded by one mutex.
// WithinTx works on a copy of the data and swaps it in on success.
type Store struct {
	root *root
	tx   *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{root: &root{st: newState(), faults: make(map[string]error)}}
}

// FailOn makes the next call of the named operation return err.
// Operation names match the repository methods, e.g. "SaveState".
func (s *Store) FailOn(op string, err error) {
	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	s.root.faults[op] = err
}

// do runs fn against the current state: the transaction copy when inside
// WithinTx, the committed data otherwise.
func (s *Store) do(op string, fn func(st *state) error) error {
	if s.tx != nil {
		if err := s.root.takeFault(op); err != nil {
			return err
		}
		return fn(s.tx)
	}

	s.root.mu.Lock()
	defer s.root.mu.Unlock()
	if err := s.root.takeFault(op); err != nil {
		return err
	}
	return fn(s.root.st)
}

func (r *root) takeFault(op string) error {
	err, ok := r.faults[op]
	if !ok {
		return nil
	}
	delete(r.faults, op)
	return err
}

// Catalog returns the course catalog repository.
func (s *Store) Catalog() course.Repository { return &catalogRepo{s: s} }

// Enrollments returns the enrollment repository.
func (s *Store) Enrollments() enrollment.Repository { return &enrollmentRepo{s: s} }

// LessonProgress returns the lesson progress repository.
func (s *Store) LessonProgress() enrollment.ProgressRepository { return &lessonProgressRepo{s: s} }

// Attendance returns the attendance repository.
func (s *Store) Attendance() attendance.Repository { return &attendanceRepo{s: s} }

// Students returns the profile repository.
func (s *Store) Students() student.Repository { return &studentRepo{s: s} }

// WithinTx runs fn against a private copy of the data and commits it when
// fn returns nil. Transactions are serialized. Nested calls reuse the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(tx progress.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.root.mu.Lock()
	defer s.root.mu.Unlock()

	if err := s.root.takeFault("WithinTx"); err != nil {
		return err
	}

	work := s.root.st.clone()
	if err := fn(&Store{root: s.root, tx: work}); err != nil {
		return err
	}
	s.root.st = work
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
