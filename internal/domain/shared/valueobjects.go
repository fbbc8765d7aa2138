// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsUUID reports whether s looks like a canonical UUID.
func IsUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// UserID is the subject id issued by the identity provider.
// Its format is owned by the provider, so only emptiness and length are checked.
type UserID string

// IsValid checks that the id is non-empty and reasonably short.
func (u UserID) IsValid() bool {
	s := strings.TrimSpace(string(u))
	return s != "" && len(s) <= 128
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// NewUserID creates a UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.TrimSpace(id))
	if !uid.IsValid() {
		return "", ValidationError("shared", "NewUserID", CodeValidation, "user id is required")
	}
	return uid, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Role
// ═══════════════════════════════════════════════════════════════════════════

// Role is the principal role attached to every request.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is known.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// IsAdmin reports whether the role may run admin operations.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// Principal is the verified caller identity.
type Principal struct {
	ID    UserID
	Email string
	Name  string
	Role  Role
}

// CanActFor reports whether the principal may act on the given user's data.
func (p Principal) CanActFor(userID UserID) bool {
	return p.Role.IsAdmin() || p.ID == userID
}

// ═══════════════════════════════════════════════════════════════════════════
// Day Number
// ═══════════════════════════════════════════════════════════════════════════

// Course length bounds.
const (
	MinCourseDays = 7
	MaxCourseDays = 30
)

// DayNumber is a 1-based day index within a course.
type DayNumber int

// IsValid checks the day against the course length.
func (d DayNumber) IsValid(totalDays int) bool {
	return d >= 1 && int(d) <= totalDays
}

// Int returns the underlying value.
func (d DayNumber) Int() int {
	return int(d)
}

// NewDayNumber validates a day number against the course length.
func NewDayNumber(day, totalDays int) (DayNumber, error) {
	if day < 1 {
		return 0, ValidationError("shared", "NewDayNumber", CodeInvalidDay, "day number must be a positive integer")
	}
	if day > totalDays {
		return 0, ValidationError("shared", "NewDayNumber", CodeInvalidDay,
			fmt.Sprintf("day number %d exceeds course length %d", day, totalDays))
	}
	return DayNumber(day), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage and Score
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is an integer completion value in [0,100].
type Percentage int

// IsValid checks the range.
func (p Percentage) IsValid() bool {
	return p >= 0 && p <= 100
}

// IsComplete reports whether the percentage is exactly 100.
func (p Percentage) IsComplete() bool {
	return p == 100
}

// Int returns the underlying value.
func (p Percentage) Int() int {
	return int(p)
}

// RoundHalfUp rounds half away from zero for non-negative values.
func RoundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// RoundTo rounds v to the given number of decimal places, half away from zero.
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
