package domain

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the category of a domain error.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION_ERROR"
	CodeInvalidState       ErrorCode = "INVALID_STATE"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeConflict           ErrorCode = "CONFLICT"
	CodeForbidden          ErrorCode = "FORBIDDEN"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeAlreadyRated       ErrorCode = "ALREADY_RATED"
	CodeActiveReportExists ErrorCode = "ACTIVE_REPORT_EXISTS"
)

// Error is a typed domain error carrying a stable code for transport mapping.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError creates an error for a field-level contract violation.
func NewValidationError(message string) *Error {
	return &Error{Code: CodeValidation, Message: message}
}

// NewInvalidStateError creates an error for a disallowed status transition.
func NewInvalidStateError(from, to string) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// NewNotFoundError creates an error for a missing entity.
func NewNotFoundError(entity, id string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", entity, id),
	}
}

// NewConflictError creates an error for a lost optimistic-concurrency race.
func NewConflictError(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// NewForbiddenError creates an error for an action the actor may not perform.
func NewForbiddenError(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// NewUnauthorizedError creates an error for a missing or invalid identity.
func NewUnauthorizedError(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// NewAlreadyRatedError creates an error for a second rating attempt.
func NewAlreadyRatedError(requestID string) *Error {
	return &Error{
		Code:    CodeAlreadyRated,
		Message: fmt.Sprintf("request %s has already been rated", requestID),
	}
}

// NewActiveReportExistsError creates an error for reporting while a report is open.
func NewActiveReportExistsError(requestID string) *Error {
	return &Error{
		Code:    CodeActiveReportExists,
		Message: fmt.Sprintf("request %s already has an unresolved report", requestID),
	}
}

// CodeOf extracts the domain error code from err, or empty if err is not a domain error.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
