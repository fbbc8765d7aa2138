package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Supriya-Al/LSM-learn-sub000/internal/domain/shared"
	"github.com/Supriya-Al/LSM-learn-sub000/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSE ENVELOPE
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse represents a standard JSON response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError represents an API error.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ResponseMeta contains response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp JSONResponse) {
	resp.Success = status >= 200 && status < 300
	resp.Meta = &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"}
	resp.RequestID = getRequestID(r.Context())

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a success response.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeEnvelope(w, r, status, JSONResponse{Data: data})
}

// writeJSONError writes an error response without data.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeEnvelope(w, r, status, JSONResponse{Error: &APIError{Code: code, Message: message}})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// statusForKind maps the error taxonomy to HTTP statuses.
func statusForKind(kind error) int {
	switch {
	case errors.Is(kind, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, shared.ErrAlreadyExists),
		errors.Is(kind, shared.ErrStateTransition),
		errors.Is(kind, shared.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(kind, shared.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(kind, shared.ErrServiceUnavailable),
		errors.Is(kind, shared.ErrTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(kind, shared.ErrValidation),
		errors.Is(kind, shared.ErrInvalidInput),
		errors.Is(kind, shared.ErrInvalidID),
		errors.Is(kind, shared.ErrEmptyValue),
		errors.Is(kind, shared.ErrValueOutOfRange):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeDomainError is the single place where errors become HTTP responses.
// data is included for partial successes such as progress_stale.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error, data interface{}) {
	var de *shared.DomainError
	apiErr := &APIError{}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &de):
		status = statusForKind(de.Kind)
		apiErr.Code = de.ReasonCode()
		apiErr.Message = de.Message
		apiErr.Retryable = shared.IsRetryable(de)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
		apiErr.Code = shared.CodeDependency
		apiErr.Message = "request deadline exceeded"
		apiErr.Retryable = true
	}
	if status == http.StatusInternalServerError {
		apiErr.Code = "internal_error"
		apiErr.Message = "An unexpected error occurred"
	}

	log := s.reqLog(r).With(
		logger.String("path", r.URL.Path),
		logger.ReasonCode(apiErr.Code),
		logger.Int("status", status),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
	} else {
		log.Debug("request rejected", logger.Err(err))
	}

	writeEnvelope(w, r, status, JSONResponse{Data: data, Error: apiErr})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DECODING
// ══════════════════════════════════════════════════════════════════════════════

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody decodes and validates a JSON body. An empty body decodes to the
// zero value so optional bodies work.
func (s *Server) decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return shared.ValidationError("http", "Decode", shared.CodeValidation, "malformed JSON body: "+err.Error())
	}
	if err := s.validate.Struct(dst); err != nil {
		return validationFailed(err)
	}
	return nil
}

// validationFailed flattens validator errors into one message, field by field.
func validationFailed(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return shared.ValidationError("http", "Validate", shared.CodeValidation, err.Error())
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		p := fe.Namespace()
		if i := strings.IndexByte(p, '.'); i >= 0 {
			p = p[i+1:]
		}
		parts = append(parts, p+": "+fe.Tag())
	}
	sort.Strings(parts)
	return shared.ValidationError("http", "Validate", shared.CodeValidation, "invalid request: "+strings.Join(parts, "; "))
}
