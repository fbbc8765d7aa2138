package student

import (
	"strings"
	"time"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// Profile - профиль обучающегося.
type Profile struct {
	ID        string
	Email     string
	FullName  string
	Role      shared.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromPrincipal builds a profile mirror of the verified caller.
func FromPrincipal(p shared.Principal, now time.Time) *Profile {
	role := p.Role
	if !role.IsValid() {
		role = shared.RoleUser
	}
	return &Profile{
		ID:        p.ID.String(),
		Email:     strings.TrimSpace(p.Email),
		FullName:  strings.TrimSpace(p.Name),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DisplayName returns the full name, falling back to the email.
func (p *Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	if p.Email != "" {
		return p.Email
	}
	return p.ID
}

// Validate проверяет обязательные поля.
func (p *Profile) Validate() error {
	if _, err := shared.NewUserID(p.ID); err != nil {
		return err
	}
	if !p.Role.IsValid() {
		return shared.ValidationError("student", "Validate", shared.CodeValidation, "unknown role")
	}
	return nil
}
