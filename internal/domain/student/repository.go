package student

import "context"

// Repository хранит профили обучающихся.
type Repository interface {
	// Upsert создаёт или обновляет профиль по ID.
	// Пустые email и имя не затирают сохранённые значения.
	Upsert(ctx context.Context, p *Profile) error

	// GetByID возвращает профиль по ID.
	// Возвращает NotFound, если профиля нет.
	GetByID(ctx context.Context, id string) (*Profile, error)
}
