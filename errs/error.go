package errs

import (
	"errors"
	"fmt"
)

// Application error codes. Each one maps to exactly one http status code.
const (
	EINVALID         = "invalid"
	ENOTFOUND        = "not_found"
	EUNAUTHORIZED    = "unauthorized"
	EUNAUTHENTICATED = "unauthenticated"
	EINTERNAL        = "internal"
)

// A Reason narrows an error code down to the social-graph rule that was violated.
// Clients receive it next to the human readable message, so they can react to
// e.g. a duplicate friend request without parsing text.
type Reason string

const (
	SelfTarget          Reason = "SELF_TARGET"
	AlreadyFriend       Reason = "ALREADY_FRIEND"
	DuplicateRequest    Reason = "DUPLICATE_REQUEST"
	RequestNotFound     Reason = "REQUEST_NOT_FOUND"
	TargetNotFound      Reason = "TARGET_NOT_FOUND"
	NotFriend           Reason = "NOT_FRIEND"
	AlreadyLiked        Reason = "ALREADY_LIKED"
	NotLiked            Reason = "NOT_LIKED"
	AuthorizationDenied Reason = "AUTHORIZATION_DENIED"
	CascadeIncomplete   Reason = "CASCADE_INCOMPLETE"
)

// Error is the error type used throughout the app. Code decides the http status,
// Message is safe to show to the end user, Reason is optional.
type Error struct {
	Code    string
	Reason  Reason
	Message string
}

// Error implements the error interface. Not used by the end user.
func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("error: code=%s reason=%s message=%s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("error: code=%s message=%s", e.Code, e.Message)
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Reasonf is like Errorf but also attaches a Reason.
func Reasonf(code string, reason Reason, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Reason:  reason,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorReason unwraps an application error and returns its reason, if any.
func ErrorReason(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error.".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}
