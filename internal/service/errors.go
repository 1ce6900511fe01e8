package service

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of a booking operation.  Handlers map kinds
// to HTTP status codes; the Reason is shown to the caller verbatim.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnavailable
	KindExternal
	KindNotFound
	KindUnauthorized
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnavailable:
		return "unavailable"
	case KindExternal:
		return "external"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by the service layer.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of err.  Errors that did not originate in the
// service layer are internal.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// ReasonOf returns the caller-facing reason for err.
func ReasonOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Reason
	}
	return "internal error"
}

func validation(reason string) error { return &Error{Kind: KindValidation, Reason: reason} }

func unavailable(reason string, err error) error {
	return &Error{Kind: KindUnavailable, Reason: reason, Err: err}
}

func external(reason string) error { return &Error{Kind: KindExternal, Reason: reason} }

func notFound(what string) error { return &Error{Kind: KindNotFound, Reason: what + " not found"} }

func unauthorized(reason string) error { return &Error{Kind: KindUnauthorized, Reason: reason} }

func conflict(reason string) error { return &Error{Kind: KindConflict, Reason: reason} }

func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Reason: "internal error", Err: fmt.Errorf("%s: %w", op, err)}
}
