// Package apperr defines the error taxonomy shared by the store, cloner,
// remote client and sync session.
//
// Every error that crosses a package boundary is an *Error carrying a stable
// Code. Callers branch on the code with IsCode or the Is* helpers, which see
// through wrapping via errors.As.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies the error category.
type Code string

const (
	// CodeNotFound indicates a diagram or entity is absent.
	CodeNotFound Code = "not_found"

	// CodeSchemaMismatch indicates an expected collection is missing from the local store.
	CodeSchemaMismatch Code = "schema_mismatch"

	// CodeReferenceUnresolved indicates a clone could not remap a foreign reference.
	// The cloner reports it as a diagnostic and never returns it.
	CodeReferenceUnresolved Code = "reference_unresolved"

	// CodeTransactionFailure indicates a store write was aborted and rolled back.
	CodeTransactionFailure Code = "transaction_failure"

	// CodeUnauthorized indicates the remote rejected the session credentials.
	CodeUnauthorized Code = "unauthorized"

	// CodeNetworkFailure indicates a remote call could not complete.
	CodeNetworkFailure Code = "network_failure"

	// CodeMalformedPayload indicates input failed required-field validation.
	CodeMalformedPayload Code = "malformed_payload"

	// CodeInvalid indicates a bad argument from the caller.
	CodeInvalid Code = "invalid"

	// CodeInternal covers everything else.
	CodeInternal Code = "internal"
)

// Error is a structured error that carries a code, message, and optional metadata.
type Error struct {
	Code    Code
	Message string
	Err     error
	Meta    map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Err }

// WithMeta attaches metadata to the error.
func (e *Error) WithMeta(k string, v any) *Error {
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	e.Meta[k] = v
	return e
}

// New creates a new Error with code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with code and message.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost *Error in err's chain,
// or CodeInternal when there is none.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode checks if an error has the provided code (through unwrapping).
func IsCode(err error, code Code) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func IsNotFound(err error) bool { return IsCode(err, CodeNotFound) }
func IsSchemaMismatch(err error) bool { return IsCode(err, CodeSchemaMismatch) }
func IsTransactionFailure(err error) bool { return IsCode(err, CodeTransactionFailure) }
func IsUnauthorized(err error) bool { return IsCode(err, CodeUnauthorized) }
func IsNetworkFailure(err error) bool { return IsCode(err, CodeNetworkFailure) }
func IsMalformedPayload(err error) bool { return IsCode(err, CodeMalformedPayload) }
