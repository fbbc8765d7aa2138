package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/progress"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements progress.Store. Repositories handed out by a Store share
// its Querier: the pool outside a transaction, the pgx.Tx inside WithinTx.
type Store struct {
	conn *Connection
	q    Querier
	tx   bool
}

var _ progress.Store = (*Store)(nil)

// NewStore creates a pool-backed Store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, q: conn}
}

// Catalog returns the course catalog repository.
func (s *Store) Catalog() course.Repository {
	return &CatalogRepository{q: s.q}
}

// Enrollments returns the enrollment repository.
func (s *Store) Enrollments() enrollment.Repository {
	return &EnrollmentRepository{q: s.q}
}

// LessonProgress returns the lesson progress repository.
func (s *Store) LessonProgress() enrollment.ProgressRepository {
	return &LessonProgressRepository{q: s.q}
}

// Attendance returns the attendance repository.
func (s *Store) Attendance() attendance.Repository {
	return &AttendanceRepository{q: s.q}
}

// Students returns the profile repository.
func (s *Store) Students() student.Repository {
	return &StudentRepository{q: s.q}
}

// WithinTx runs fn in one READ COMMITTED transaction.
// Nested calls reuse the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx progress.Store) error) error {
	if s.tx {
		return fn(s)
	}

	err := s.conn.InTx(ctx, func(tx pgx.Tx) error {
		return fn(&Store{conn: s.conn, q: tx, tx: true})
	})
	return mapError("store", "WithinTx", "transaction", "", err)
}

// Ping checks the underlying pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}
