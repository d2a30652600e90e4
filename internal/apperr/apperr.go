package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so outer layers can pick a user-facing response
// without inspecting error strings.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindAuth              Kind = "auth"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindGateway           Kind = "gateway"
	KindInternal          Kind = "internal"
)

// Error carries a Kind alongside an optional wrapped cause.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an Error without a cause. Package sentinels are built with it.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap attaches kind and reason to err.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Validation is shorthand for a KindValidation error.
func Validation(reason string) *Error {
	return New(KindValidation, reason)
}

// KindOf reports the Kind of the first *Error in err's chain. Errors that
// carry no Kind are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
