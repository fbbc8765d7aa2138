package postgres

import (
	"context"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	q Querier
}

// Upsert creates or refreshes the profile mirror.
// Empty email and name keep the stored values.
func (r *StudentRepository) Upsert(ctx context.Context, p *student.Profile) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO user_profiles (id, email, full_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), user_profiles.email),
			full_name = COALESCE(NULLIF(EXCLUDED.full_name, ''), user_profiles.full_name),
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at
	`, p.ID, p.Email, p.FullName, string(p.Role), p.CreatedAt, p.UpdatedAt)
	return mapError("student", "Upsert", "profile", p.ID, err)
}

// GetByID returns a profile by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Profile, error) {
	var p student.Profile
	var role string
	err := r.q.QueryRow(ctx, `
		SELECT id, email, full_name, role, created_at, updated_at
		FROM user_profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Email, &p.FullName, &role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapError("student", "GetByID", "profile", id, err)
	}
	p.Role = shared.Role(role)
	return &p, nil
}
