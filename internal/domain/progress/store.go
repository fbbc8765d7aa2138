package progress

import (
	"context"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/attendance"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/course"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/enrollment"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
)

// Store is the persistence facade used by the progression use cases.
// It carries no business rules; each accessor returns a repository bound
// to the same underlying session.
type Store interface {
	Catalog() course.Repository
	Enrollments() enrollment.Repository
	LessonProgress() enrollment.ProgressRepository
	Attendance() attendance.Repository
	Students() student.Repository

	// WithinTx runs fn against a Store bound to one transaction.
	// The transaction commits when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}
