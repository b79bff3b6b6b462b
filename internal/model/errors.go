package model

import (
	"errors"
	"sort"
	"strings"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindUnavailable  ErrorKind = "unavailable"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindInternal     ErrorKind = "internal"
)

type Error struct {
	Kind    ErrorKind
	Message string
	// Fields maps a request field to a human-readable message, set for validation errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrSlugTaken is the cause of a conflict on the unique slug constraint.
var ErrSlugTaken = errors.New("slug is already taken")

var (
	ErrPostNotFound  = &Error{Kind: KindNotFound, Message: "post not found"}
	ErrUserNotFound  = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrNoActivePost  = &Error{Kind: KindNotFound, Message: "No active post found for this user"}
	ErrConflict      = &Error{Kind: KindConflict, Message: "post was modified concurrently, please try again"}
	ErrPostNotActive = &Error{Kind: KindConflict, Message: "post is no longer active"}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized, Message: "user is not authorized"}
	ErrForbidden     = &Error{Kind: KindForbidden, Message: "no access"}
	ErrUnavailable   = &Error{Kind: KindUnavailable, Message: "store is unavailable"}
	ErrInternal      = &Error{Kind: KindInternal, Message: "Internal server error"}
)

func NewValidationError(fields map[string]string) *Error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}

	return &Error{
		Kind:    KindValidation,
		Message: strings.Join(parts, "; "),
		Fields:  fields,
	}
}

// Unavailable wraps a store failure that may not have committed.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: ErrUnavailable.Message, Err: err}
}

// Conflict wraps a constraint violation raised by a concurrent writer.
func Conflict(err error) *Error {
	return &Error{Kind: KindConflict, Message: ErrConflict.Message, Err: err}
}

// KindOf classifies err. Errors outside the taxonomy are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
