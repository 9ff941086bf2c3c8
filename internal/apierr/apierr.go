package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the API error taxonomy. Status drives the HTTP response code,
// Code is a stable machine-readable tag the UI can branch on.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// NotFound: a referenced job/experience/achievement/proposal/version is missing.
func NotFound(resource string, id interface{}) *Error {
	return New(http.StatusNotFound, "not_found", fmt.Errorf("%s %v not found", resource, id))
}

// Validation: malformed or type-mismatched input; the target row is left untouched.
func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusUnprocessableEntity, "validation", fmt.Errorf(format, args...))
}

// Locked: mutating documents of a job that has already been applied to.
func Locked(format string, args ...interface{}) *Error {
	return New(http.StatusForbidden, "job_locked", fmt.Errorf(format, args...))
}

// Conflict: re-resolving a proposal that is no longer pending.
func Conflict(format string, args ...interface{}) *Error {
	return New(http.StatusConflict, "conflict", fmt.Errorf(format, args...))
}

// Quota: the LLM provider reported rate/quota exhaustion.
func Quota(err error) *Error {
	return New(http.StatusTooManyRequests, "llm_quota", err)
}

// StatusOf maps any error to an HTTP status. Unknown errors are 500s.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}

// CodeOf returns the taxonomy code, or "internal" for untyped errors.
func CodeOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "internal"
}
