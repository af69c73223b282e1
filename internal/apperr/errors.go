// Package apperr defines the failure kinds reported to the operator.
//
// Every component returns one of these as an ordinary error value; the
// dispatcher turns them into a human-readable report and keeps running.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindParseFailure        Kind = "parse_failure"
	KindUnknownDayReference Kind = "unknown_day_reference"
	KindMissingFields       Kind = "missing_fields"
	KindCollaboratorFailure Kind = "collaborator_failure"
)

// Error is a classified failure. Op names the component operation that
// produced it ("command.parse", "calendar.create_event", ...).
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Op + ": " + e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Op + ": " + e.Msg
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, &Error{Kind: k}) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrParseFailure        = &Error{Kind: KindParseFailure}
	ErrUnknownDayReference = &Error{Kind: KindUnknownDayReference}
	ErrMissingFields       = &Error{Kind: KindMissingFields}
	ErrCollaboratorFailure = &Error{Kind: KindCollaboratorFailure}
)

func ParseFailure(op, format string, args ...any) *Error {
	return &Error{Kind: KindParseFailure, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func UnknownDayReference(op, dayRef string) *Error {
	return &Error{Kind: KindUnknownDayReference, Op: op, Msg: fmt.Sprintf("could not resolve day %q", dayRef)}
}

func MissingFields(op string, fields ...string) *Error {
	return &Error{Kind: KindMissingFields, Op: op, Msg: fmt.Sprintf("missing required details %v", fields)}
}

func Collaborator(op string, err error) *Error {
	return &Error{Kind: KindCollaboratorFailure, Op: op, Err: err}
}

// Wrap attaches kind and op to an arbitrary error.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
