// Package apperr is the storefront error taxonomy. Every failure a user action
// can hit is one of these kinds; the HTTP layer maps kinds to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how the caller should react to it. Validation
// and Credential errors are fixed by resubmitting; Locked means an in-flight
// step blocks the operation; NotConfigured means an integration credential is
// missing and the feature is disabled.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindCredential      Kind = "credential"
	KindUnauthenticated Kind = "unauthenticated"
	KindForbidden       Kind = "forbidden"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindLocked          Kind = "locked"
	KindNotConfigured   Kind = "not_configured"
	KindIntegration     Kind = "integration"
	KindInternal        Kind = "internal"
)

// Error is a classified error with a stable snake_case code.
type Error struct {
	Kind   Kind
	Code   string
	Msg    string
	Fields map[string]string // per-field messages for validation errors
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func newErr(k Kind, code, msg string) *Error { return &Error{Kind: k, Code: code, Msg: msg} }

func Validation(code, msg string) *Error { return newErr(KindValidation, code, msg) }
func Credential(code, msg string) *Error { return newErr(KindCredential, code, msg) }
func Unauthenticated(code, msg string) *Error { return newErr(KindUnauthenticated, code, msg) }
func Forbidden(code, msg string) *Error { return newErr(KindForbidden, code, msg) }
func NotFound(code, msg string) *Error { return newErr(KindNotFound, code, msg) }
func Conflict(code, msg string) *Error { return newErr(KindConflict, code, msg) }
func Locked(code, msg string) *Error { return newErr(KindLocked, code, msg) }
func NotConfigured(code, msg string) *Error { return newErr(KindNotConfigured, code, msg) }

// InvalidFields is a Validation error carrying per-field messages.
func InvalidFields(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "validation_failed", Msg: "some fields are missing or invalid", Fields: fields}
}

// Integration wraps a failed third-party call behind a generic user-facing message.
func Integration(code, msg string, err error) *Error {
	return &Error{Kind: KindIntegration, Code: code, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
