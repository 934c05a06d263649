package errs

import (
	"errors"
	"fmt"
)

// Standard error types for the matching and extraction engine
var (
	ErrNotFound      = errors.New("resource not found")
	ErrValidation    = errors.New("validation failure")
	ErrCycleDetected = errors.New("inheritance cycle detected")
	ErrExtraction    = errors.New("extraction failure")
	ErrCancelled     = errors.New("operation cancelled")
)

// EngineError represents an engine error with context
type EngineError struct {
	Err     error             `json:"-"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *EngineError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to an EngineError
func (e *EngineError) WithDetails(details map[string]string) *EngineError {
	e.Details = details
	return e
}

// NotFound creates a not-found error for a named resource
func NotFound(resource, id string) *EngineError {
	return &EngineError{
		Err:     ErrNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// Validation creates a validation error
func Validation(message string) *EngineError {
	return &EngineError{
		Err:     ErrValidation,
		Code:    "VALIDATION_FAILURE",
		Message: message,
	}
}

// Validationf creates a formatted validation error
func Validationf(format string, args ...any) *EngineError {
	return Validation(fmt.Sprintf(format, args...))
}

// Cycle creates a cycle-detected error for an inheritance edge
func Cycle(childID, parentID string) *EngineError {
	return &EngineError{
		Err:     ErrCycleDetected,
		Code:    "CYCLE_DETECTED",
		Message: fmt.Sprintf("relationship %s -> %s would create a cycle", parentID, childID),
	}
}

// Extractionf creates a formatted extraction error
func Extractionf(format string, args ...any) *EngineError {
	return &EngineError{
		Err:     ErrExtraction,
		Code:    "EXTRACTION_FAILURE",
		Message: fmt.Sprintf(format, args...),
	}
}

// Cancelled converts a context error into the engine's cancellation error
func Cancelled(err error) *EngineError {
	return &EngineError{
		Err:     ErrCancelled,
		Code:    "CANCELLED",
		Message: fmt.Sprintf("operation cancelled: %v", err),
	}
}

// Wrap wraps an error with an engine code and message
func Wrap(err error, code, message string) *EngineError {
	return &EngineError{
		Err:     err,
		Code:    code,
		Message: message,
	}
}

// IsCancelled reports whether err is a caller-requested abort
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
