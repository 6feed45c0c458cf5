package utils

import (
	"errors"
	"fmt"
)

// ValidationError represents a request parameter that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError with a specific message.
func NewValidationError(message string) error {
	return &ValidationError{
		Message: message,
	}
}

// NewValidationErrorf creates a new ValidationError with a formatted message.
func NewValidationErrorf(format string, args ...interface{}) error {
	return &ValidationError{
		Message: fmt.Sprintf(format, args...),
	}
}

// NewFieldValidationError creates a ValidationError bound to a named parameter.
func NewFieldValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IngestionError means the raw dataset could not be turned into records at
// all. It is fatal for the request: no metric is attempted.
type IngestionError struct {
	Reason string
	Err    error
}

// Error returns the error message string.
func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingestion error: %s: %v", e.Reason, e.Err)
	}
	return "ingestion error: " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *IngestionError) Unwrap() error {
	return e.Err
}

// NewIngestionError creates an IngestionError with a reason.
func NewIngestionError(reason string) error {
	return &IngestionError{Reason: reason}
}

// WrapIngestionError wraps a parse failure as an IngestionError.
func WrapIngestionError(reason string, err error) error {
	return &IngestionError{Reason: reason, Err: err}
}

// IsIngestionError reports whether err is or wraps an IngestionError.
func IsIngestionError(err error) bool {
	var ie *IngestionError
	return errors.As(err, &ie)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
