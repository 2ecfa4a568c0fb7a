package models

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindInsufficientPoints
	KindUnauthorized
	KindForbidden
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindInsufficientPoints:
		return "INSUFFICIENT_POINTS"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindForbidden:
		return "FORBIDDEN"
	case KindTransient:
		return "TRANSIENT"
	default:
		return "SERVER"
	}
}

// Error is the classified error shared by the ledger service, its HTTP
// layer and the client.
type Error struct {
	Kind    Kind
	Message string
	// Current is the balance observed when Kind is KindInsufficientPoints.
	Current *int64
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func NewNotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func NewConflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func NewUnauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func NewForbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func NewInsufficientPoints(current int64) *Error {
	return &Error{Kind: KindInsufficientPoints, Message: "Insufficient rewards points", Current: &current}
}

func NewServer(msg string, err error) *Error { return &Error{Kind: KindServer, Message: msg, Err: err} }

func NewTransient(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are KindServer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServer
}

func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
