package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates that the backend rejected the session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoCredential indicates that no session token could be resolved.
	ErrNoCredential = errors.New("no session credential")

	// ErrUnexpectedStatus indicates a backend response with a status the caller does not handle.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrDecode indicates that a backend response body did not match the expected shape.
	ErrDecode = errors.New("response decode failed")

	// ErrTransport indicates that the backend call failed before a response was received.
	ErrTransport = errors.New("transport failure")

	// ErrRateLimited indicates that the request was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrCancelled indicates that an operation was cancelled.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError provides details about a rate limit error.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ExternalAPIError provides details about a backend response with an unhandled status.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the cause when present, otherwise ErrUnexpectedStatus.
func (e *ExternalAPIError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrUnexpectedStatus
}

// Is reports ErrUnexpectedStatus regardless of the wrapped cause.
func (e *ExternalAPIError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// DecodeError carries a human-readable report of why a payload was rejected.
type DecodeError struct {
	Source string
	Report string
	Cause  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s response rejected: %s", e.Source, e.Report)
}

// Unwrap returns the underlying cause error.
func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// Is reports ErrDecode regardless of the wrapped cause.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewUnexpectedStatusError builds the error reported for a status the workflow does not handle.
// The message always embeds the status code.
func NewUnexpectedStatusError(source string, statusCode int) *ExternalAPIError {
	return NewExternalAPIError(source, statusCode, fmt.Sprintf("response status %d", statusCode), nil)
}

// NewDecodeError creates a new DecodeError from a list of report lines.
func NewDecodeError(source string, lines []string, cause error) *DecodeError {
	report := strings.Join(lines, "; ")
	if report == "" && cause != nil {
		report = cause.Error()
	}
	return &DecodeError{
		Source: source,
		Report: report,
		Cause:  cause,
	}
}
