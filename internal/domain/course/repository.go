package course

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Reader читает каталог курса.
type Reader interface {
	// GetCatalog возвращает курс со всеми уроками.
	// Возвращает NotFound, если курса нет.
	GetCatalog(ctx context.Context, courseID string) (*Catalog, error)

	// GetLesson возвращает урок по ID.
	// Возвращает NotFound, если урока нет.
	GetLesson(ctx context.Context, lessonID string) (*Lesson, error)
}

// Writer заменяет каталог курса целиком (импорт администратором).
type Writer interface {
	// SaveCatalog upserts the course and replaces its lesson set.
	// Lessons present in the import are updated in place, so their learner
	// progress survives; lessons missing from it are removed.
	SaveCatalog(ctx context.Context, catalog *Catalog) error
}

// Repository объединяет чтение и запись каталога.
type Repository interface {
	Reader
	Writer
}
