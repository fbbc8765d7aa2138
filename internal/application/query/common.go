// Package query contains read operations (CQRS - Queries).
package query

import (
	"strings"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
)

// subjectFor returns the learner a read is about. Learners read their own
// data; admins may name anyone.
func subjectFor(op string, actor shared.Principal, target string) (string, error) {
	if !actor.ID.IsValid() {
		return "", shared.ErrUnauthenticated
	}
	target = strings.TrimSpace(target)
	if target == "" {
		return actor.ID.String(), nil
	}
	uid, err := shared.NewUserID(target)
	if err != nil {
		return "", err
	}
	if !actor.CanActFor(uid) {
		return "", shared.AuthorizationError("query", op, shared.CodeNotOwner, "cannot read another user's progress")
	}
	return uid.String(), nil
}

func requireCourse(op, courseID string) error {
	if strings.TrimSpace(courseID) == "" {
		return shared.ValidationError("query", op, shared.CodeValidation, "course id is required")
	}
	return nil
}
