// Package errors defines the error codes shared by the histogram benchmark.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown       = "UNKNOWN_ERROR"
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeAllocation    = "ALLOCATION_ERROR"
	CodeWorkerFailure = "WORKER_FAILURE"
	CodeMismatch      = "MISMATCH"
	CodeStorageError  = "STORAGE_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Sentinel values for errors.Is checks. Only the code is compared.
var (
	ErrInvalidConfig = New(CodeInvalidConfig, "invalid configuration")
	ErrAllocation    = New(CodeAllocation, "allocation failed")
	ErrWorkerFailure = New(CodeWorkerFailure, "worker failed")
	ErrMismatch      = New(CodeMismatch, "histogram mismatch")
	ErrStorageError  = New(CodeStorageError, "storage error")
	ErrDatabaseError = New(CodeDatabaseError, "database error")
)

// InvalidConfig builds an INVALID_CONFIG error with a formatted message.
func InvalidConfig(format string, args ...interface{}) *AppError {
	return Newf(CodeInvalidConfig, format, args...)
}

// IsInvalidConfig checks if the error is an invalid configuration error.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsWorkerFailure checks if the error was raised by a failing worker.
func IsWorkerFailure(err error) bool {
	return errors.Is(err, ErrWorkerFailure)
}

// IsMismatch checks if the error reports a histogram mismatch.
func IsMismatch(err error) bool {
	return errors.Is(err, ErrMismatch)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
