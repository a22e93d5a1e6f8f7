package types

import "fmt"

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Argument and lookup error codes. Argument errors surface at the call that
// violates the precondition, never during turn execution.
const (
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	ErrDialogNotFound  ErrorCode = "DIALOG_NOT_FOUND"
	ErrOptionsType     ErrorCode = "OPTIONS_TYPE"
)

// Memory and state error codes.
const (
	ErrScopeNotFound   ErrorCode = "SCOPE_NOT_FOUND"
	ErrInvalidPath     ErrorCode = "INVALID_PATH"
	ErrStorageFailure  ErrorCode = "STORAGE_FAILURE"
	ErrStateNotLoaded  ErrorCode = "STATE_NOT_LOADED"
)

// Skill and token error codes.
const (
	ErrSkillRequest   ErrorCode = "SKILL_REQUEST_FAILED"
	ErrTokenExchange  ErrorCode = "TOKEN_EXCHANGE_FAILED"
	ErrConversationID ErrorCode = "CONVERSATION_ID_NOT_FOUND"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}

// IsArgumentError reports whether the error is a precondition violation.
func IsArgumentError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrInvalidArgument || code == ErrOptionsType
}
