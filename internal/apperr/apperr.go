// Package apperr is the closed error taxonomy shared by every service.
// Handlers classify failures once; the HTTP layer maps kinds to status
// codes and the bus adapter uses Retryable to decide between redelivery
// and the dead-letter topic.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Validation: bad input. Returned synchronously, never retried.
	Validation Kind = iota
	// NotFound: referenced entity absent.
	NotFound
	// Conflict: duplicate unique key or lost optimistic write.
	Conflict
	// Infrastructure: store/bus unavailable. Retried by the bus
	// backoff ladder, then dead-lettered.
	Infrastructure
	// BusinessRule: insufficient stock, illegal state transition.
	// Never retried; resolved via compensation.
	BusinessRule
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Infrastructure:
		return "infrastructure"
	case BusinessRule:
		return "business_rule"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Code string // stable machine-readable code, e.g. "order.invalid_status"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without losing it for errors.Is.
func Wrap(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: "wrapped", Err: err}
}

// KindOf returns the kind of err, or Infrastructure for unclassified
// errors: an unknown failure is assumed transient and left to the bus.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Infrastructure
}

// CodeOf returns the stable code, or "" for unclassified errors.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// Retryable reports whether the bus should redeliver after err.
// Only infrastructure failures qualify; validation and business rule
// violations are terminal facts answered with compensating events.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == Infrastructure
}
