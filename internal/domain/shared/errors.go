package shared

import (
	"errors"
	"fmt"
)

// Kinds. DomainError.Kind holds one of these; match with errors.Is.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// Reason codes returned to clients next to the human message.
const (
	CodeValidation         = "validation_failed"
	CodeInvalidDay         = "invalid_day_number"
	CodeInvalidStatus      = "invalid_status"
	CodeNotFound           = "not_found"
	CodeCourseNotActive    = "course_not_active"
	CodeNotQuiz            = "lesson_not_quiz"
	CodeEnrollmentInactive = "enrollment_not_active"
	CodeDayLocked          = "day_locked"
	CodeAdminOnly          = "admin_only"
	CodeNotOwner           = "not_owner"
	CodeUnauthenticated    = "unauthenticated"
	CodeConflict           = "conflict"
	CodeInvalidTransition  = "invalid_state_transition"
	CodeProgressStale      = "progress_stale"
	CodeDependency         = "dependency_unavailable"
	CodeCatalogIntegrity   = "catalog_integrity"
	CodeRateLimited        = "rate_limited"
)

// DomainError is the error every layer returns. The HTTP layer maps Kind
// to a status and sends Code and Message to the client.
type DomainError struct {
	Domain  string // "enrollment", "attendance", "course", ...
	Op      string
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap yields the cause, or Kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithCode returns a copy of the error carrying the given reason code.
func (e *DomainError) WithCode(code string) *DomainError {
	c := *e
	c.Code = code
	return &c
}

// ReasonCode returns the reason code, falling back to one derived from Kind.
func (e *DomainError) ReasonCode() string {
	if e.Code != "" {
		return e.Code
	}
	switch {
	case errors.Is(e.Kind, ErrNotFound):
		return CodeNotFound
	case errors.Is(e.Kind, ErrAlreadyExists):
		return CodeConflict
	case errors.Is(e.Kind, ErrStateTransition):
		return CodeInvalidTransition
	case errors.Is(e.Kind, ErrServiceUnavailable), errors.Is(e.Kind, ErrTimeout):
		return CodeDependency
	case errors.Is(e.Kind, ErrUnauthorized):
		return CodeUnauthenticated
	default:
		return CodeValidation
	}
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError keeps err as the cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// ValidationError builds a rejected-input error with a reason code.
func ValidationError(domain, op, code, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: ErrValidation, Code: code, Message: message}
}

// AuthorizationError builds a forbidden error with a reason code.
func AuthorizationError(domain, op, code, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: ErrForbidden, Code: code, Message: message}
}

// NotFoundError names the missing entity and its id.
func NotFoundError(domain, op, entity, id string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
	}
}

// DependencyError wraps a persistence or transport failure as retryable.
func DependencyError(domain, op string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrServiceUnavailable,
		Code:    CodeDependency,
		Message: "dependency unavailable, retry later",
		Err:     err,
	}
}

// Курс
var (
	ErrCourseNotActive = NewDomainError("course", "CheckStatus", ErrValidation, "course is not active").WithCode(CodeCourseNotActive)
	ErrLessonNotQuiz   = NewDomainError("course", "CheckLesson", ErrValidation, "lesson is not a quiz").WithCode(CodeNotQuiz)
	ErrInvalidCatalog  = NewDomainError("course", "Validate", ErrValidation, "invalid course catalog").WithCode(CodeCatalogIntegrity)
)

// Зачисление
var (
	ErrEnrollmentNotActive = NewDomainError("enrollment", "CheckStatus", ErrForbidden, "enrollment is not active").WithCode(CodeEnrollmentInactive)
	ErrDayLocked           = NewDomainError("enrollment", "CheckUnlock", ErrForbidden, "day is locked").WithCode(CodeDayLocked)
	ErrInvalidTransition   = NewDomainError("enrollment", "Transition", ErrStateTransition, "invalid enrollment status transition").WithCode(CodeInvalidTransition)
	ErrProgressStale       = NewDomainError("enrollment", "Promote", ErrServiceUnavailable, "recorded, but progress stale, re-check").WithCode(CodeProgressStale)
)

// Доступ
var (
	ErrAdminOnly       = NewDomainError("auth", "Authorize", ErrForbidden, "admin role required").WithCode(CodeAdminOnly)
	ErrNotOwner        = NewDomainError("auth", "Authorize", ErrForbidden, "cannot act on behalf of another user").WithCode(CodeNotOwner)
	ErrUnauthenticated = NewDomainError("auth", "Authenticate", ErrUnauthorized, "missing or invalid credentials").WithCode(CodeUnauthenticated)
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

func IsForbidden(err error) bool { return errors.Is(err, ErrForbidden) }

// IsValidation covers ErrValidation and the narrower input kinds.
func IsValidation(err error) bool {
	for _, k := range []error{ErrValidation, ErrInvalidID, ErrInvalidInput, ErrEmptyValue, ErrValueOutOfRange} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// IsRetryable: the caller may repeat the same request later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

// ReasonCodeOf extracts the reason code from any error chain.
func ReasonCodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.ReasonCode()
	}
	return CodeDependency
}
