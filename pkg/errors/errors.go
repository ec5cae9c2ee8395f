package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for the failure classes ozy distinguishes
const (
	// General errors
	ErrUnknown      ErrorCode = "UNKNOWN"
	ErrInternal     ErrorCode = "INTERNAL"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"

	// Configuration errors
	ErrSchema   ErrorCode = "SCHEMA"    // missing or mistyped config field
	ErrNotFound ErrorCode = "NOT_FOUND" // unknown app or template
	ErrParse    ErrorCode = "PARSE"     // document is not valid YAML

	// Runtime errors
	ErrIO       ErrorCode = "IO"
	ErrLock     ErrorCode = "LOCK"
	ErrDownload ErrorCode = "DOWNLOAD"
	ErrChecksum ErrorCode = "CHECKSUM"
	ErrInstall  ErrorCode = "INSTALL"
	ErrExec     ErrorCode = "EXEC"
)

// OzyError represents a structured error with code and details
type OzyError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error renders the message followed by the wrapped cause, so a chain of
// wrapped errors reads as "outer context: inner context: root cause".
func (e *OzyError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

// Unwrap implements the errors.Unwrap interface
func (e *OzyError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an OzyError carrying the same code.
func (e *OzyError) Is(target error) bool {
	var targetErr *OzyError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new OzyError with the given code and message
func New(code ErrorCode, message string) *OzyError {
	return &OzyError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new OzyError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *OzyError {
	return &OzyError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with an OzyError. A nil err yields nil.
func Wrap(err error, code ErrorCode, message string) *OzyError {
	if err == nil {
		return nil
	}
	return &OzyError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *OzyError {
	if err == nil {
		return nil
	}
	return &OzyError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *OzyError) WithDetail(key string, value interface{}) *OzyError {
	if e == nil {
		return nil
	}
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsErrorCode reports whether any OzyError in err's chain has the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	for err != nil {
		var ozyErr *OzyError
		if !errors.As(err, &ozyErr) {
			return false
		}
		if ozyErr.Code == code {
			return true
		}
		err = ozyErr.Wrapped
	}
	return false
}

// GetErrorCode returns the outermost error code, or ErrUnknown if err carries none
func GetErrorCode(err error) ErrorCode {
	var ozyErr *OzyError
	if errors.As(err, &ozyErr) {
		return ozyErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from the outermost OzyError, or nil
func GetErrorDetails(err error) map[string]interface{} {
	var ozyErr *OzyError
	if errors.As(err, &ozyErr) {
		return ozyErr.Details
	}
	return nil
}
