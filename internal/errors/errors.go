package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is a failure tagged with a stable code. The CLI and the viewer classify errors by
// code, never by message.
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

// Error codes
const (
	CodeConfigInvalid   = "CONFIG_INVALID"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeExternalService = "EXTERNAL_SERVICE_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeCalibration     = "CALIBRATION_FAILED"
	CodeDeadline        = "DEADLINE_EXCEEDED"
	CodeUnknown         = "UNKNOWN"
)

func newError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Wrap adds context to err. The code of an AppError anywhere in the chain is kept; anything
// else becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	code := CodeInternalError
	if IsAppError(err) {
		code = GetCode(err)
	}
	return newError(code, message, err)
}

// Wrapf is Wrap with a formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode reclassifies err under code, keeping its message and cause
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return newError(code, appErr.Message, appErr.Cause)
	}
	return newError(code, err.Error(), err)
}

// IsAppError reports whether err has an AppError in its chain
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in err's chain, or CodeUnknown
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HasCode reports whether err is classified under code
func HasCode(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

func ConfigInvalid(message string) *AppError {
	return newError(CodeConfigInvalid, message, nil)
}

// DatabaseError tags a storage failure with the operation that hit it
func DatabaseError(op string, cause error) *AppError {
	return newError(CodeDatabaseError, op, cause)
}

func NotFound(resource string) *AppError {
	return newError(CodeNotFound, resource+" not found", nil)
}

// ExternalServiceError wraps a failure to reach or use a remote service
func ExternalServiceError(service string, cause error) *AppError {
	return newError(CodeExternalService, service+" service error", cause)
}

func InvalidInput(message string) *AppError {
	return newError(CodeInvalidInput, message, nil)
}

func CalibrationFailed(message string) *AppError {
	return newError(CodeCalibration, message, nil)
}

// DeadlineExceeded reports work cut short by the campaign deadline
func DeadlineExceeded(format string, args ...interface{}) *AppError {
	return newError(CodeDeadline, fmt.Sprintf(format, args...), nil)
}
