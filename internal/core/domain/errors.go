package domain

import "fmt"

// ErrorCode is the machine-readable kind of a domain error. HTTP status
// mapping lives in the API layer and switches on the code, never on concrete
// error types.
type ErrorCode string

const (
	ErrCodeMalformedRequest   ErrorCode = "MALFORMED_REQUEST"
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	ErrCodeSessionExpired     ErrorCode = "SESSION_EXPIRED"
	ErrCodeTooManySessions    ErrorCode = "TOO_MANY_SESSIONS"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeUserExists         ErrorCode = "USER_EXISTS"
	ErrCodeRememberMeInvalid  ErrorCode = "REMEMBER_ME_INVALID"
	ErrCodeInternal           ErrorCode = "INTERNAL"
)

// Error is the single carrier for all domain failures: a code for dispatch,
// a human message, and an optional details map surfaced to the client.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	cause   error
}

// NewError builds an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithDetail attaches a key/value pair surfaced in the error envelope.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error for logging; the cause is never
// serialized to the client.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two domain errors by code so that errors.Is works against the
// exported sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks. Call sites that need details construct a
// fresh Error with the same code instead of mutating these.
var (
	ErrMalformedRequest   = NewError(ErrCodeMalformedRequest, "malformed request body")
	ErrInvalidCredentials = NewError(ErrCodeInvalidCredentials, "invalid credentials")
	ErrUnauthenticated    = NewError(ErrCodeUnauthenticated, "authentication required")
	ErrSessionExpired     = NewError(ErrCodeSessionExpired, "session is expired")
	ErrTooManySessions    = NewError(ErrCodeTooManySessions, "maximum concurrent sessions reached")
	ErrForbidden          = NewError(ErrCodeForbidden, "access forbidden")
	ErrUserNotFound       = NewError(ErrCodeUserNotFound, "user not found")
	ErrUserExists         = NewError(ErrCodeUserExists, "user already exists")
	ErrRememberMeInvalid  = NewError(ErrCodeRememberMeInvalid, "remember-me token rejected")
)

// SessionExpiredError returns a SESSION_EXPIRED error naming the session that
// was found expired, so clients can tell a forced logout apart from bad
// credentials.
func SessionExpiredError(sessionID string) *Error {
	return NewError(ErrCodeSessionExpired, "session is expired").
		WithDetail("sessionId", sessionID)
}
