package errors

import (
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// WrapCode wraps an error under a specific code.
func WrapCode(code string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes. These form the engine's error taxonomy: every
// fatal-for-cell condition maps to exactly one code.
const (
	CodeUnitsAmbiguous        = "UNITS_AMBIGUOUS"
	CodeUnitsResolutionFailed = "UNITS_RESOLUTION_FAILED"
	CodeSanityCheckFailure    = "SANITY_CHECK_FAILURE"
	CodeConfigInvalid         = "CONFIG_INVALID"
	CodeComputeTimeout        = "COMPUTE_TIMEOUT"
	CodeDatabaseError         = "DATABASE_ERROR"
	CodeLedgerConflict        = "LEDGER_CONFLICT"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeInternalError         = "INTERNAL_ERROR"
)

// Common error constructors
func UnitsAmbiguous(message string) *AppError {
	return New(CodeUnitsAmbiguous, message)
}

func UnitsResolutionFailed(message string) *AppError {
	return New(CodeUnitsResolutionFailed, message)
}

func SanityCheckFailure(message string) *AppError {
	return New(CodeSanityCheckFailure, message)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func ComputeTimeout(message string) *AppError {
	return New(CodeComputeTimeout, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func LedgerConflict(message string) *AppError {
	return New(CodeLedgerConflict, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
