// Package command contains write operations (CQRS - Commands) of the
// progression engine.
package command

import (
	"strings"

	"github.com/google/uuid"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// FeatureGate reports whether a feature is on for the given user.
type FeatureGate func(userID string) bool

// Enabled is nil-safe: a nil gate is off.
func (g FeatureGate) Enabled(userID string) bool {
	return g != nil && g(userID)
}

// AlwaysOn is a gate that is always enabled.
func AlwaysOn(string) bool { return true }

// IDGenerator produces new entity ids.
type IDGenerator func() string

// NewID is the default generator.
func NewID() string { return uuid.NewString() }

// resolveSubject returns the learner the actor is acting for. An empty target
// means the actor itself; only admins may name someone else.
func resolveSubject(domain, op string, actor shared.Principal, target string) (shared.UserID, error) {
	if !actor.ID.IsValid() {
		return "", shared.ErrUnauthenticated
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return actor.ID, nil
	}
	uid, err := shared.NewUserID(target)
	if err != nil {
		return "", err
	}
	if !actor.CanActFor(uid) {
		return "", shared.AuthorizationError(domain, op, shared.CodeNotOwner, "cannot act on behalf of another user")
	}
	return uid, nil
}

// requireAdmin rejects non-admin actors before any write.
func requireAdmin(actor shared.Principal) error {
	if !actor.ID.IsValid() {
		return shared.ErrUnauthenticated
	}
	if !actor.Role.IsAdmin() {
		return shared.ErrAdminOnly
	}
	return nil
}

// enrollmentNotActive builds the rejection for a missing or non-enrolled row.
func enrollmentNotActive(op string, status string) error {
	msg := "no active enrollment for this course"
	if status != "" {
		msg = "enrollment is " + status + ", not enrolled"
	}
	return shared.AuthorizationError("enrollment", op, shared.CodeEnrollmentInactive, msg)
}

// staleProgress wraps a promoter failure that happened after a fact was
// already recorded.
func staleProgress(op string, err error) error {
	return shared.WrapError("enrollment", op, shared.ErrServiceUnavailable,
		"recorded, but progress stale, re-check", err).WithCode(shared.CodeProgressStale)
}
