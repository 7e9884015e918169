package domain

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a failure so callers can decide whether the run survives it.
type ErrorCode string

const (
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"
	ErrCodeRemoteService ErrorCode = "REMOTE_SERVICE"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeLookup        ErrorCode = "LOOKUP"
	ErrCodeDeactivation  ErrorCode = "DEACTIVATION"
	ErrCodeInternal      ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches two domain errors by code and message, so sentinel values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

var (
	ErrUserNotFound     = NewError(ErrCodeNotFound, "user not found")
	ErrUnauthorized     = NewError(ErrCodeUnauthorized, "remote service rejected credentials")
	ErrInvalidTimestamp = NewError(ErrCodeLookup, "unrecognised last login timestamp")
	ErrInvalidMode      = NewError(ErrCodeConfiguration, "audit mode must be report or deactivate")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain, or INTERNAL.
func CodeOf(err error) ErrorCode {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code
	}
	return ErrCodeInternal
}

// IsFatal reports whether err compromises the whole batch.
// Lookup and deactivation failures are scoped to one account and are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrCodeLookup, ErrCodeDeactivation, ErrCodeNotFound:
		return false
	default:
		return true
	}
}
