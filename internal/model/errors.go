package model

import "errors"

// Error kinds are surface-independent; internal/controlplane maps them to
// HTTP status codes (see controlplane/errors.go).
type ErrKind int

const (
	ErrKindValidation ErrKind = iota
	ErrKindNotFound
	ErrKindConflict
	ErrKindCrossEnvironment
	ErrKindIllegalTransition
	ErrKindPublish
	ErrKindConfigUnavailable
)

// Error is a typed, surface-independent error. The HTTP layer inspects Kind
// to pick a status code and never leaks internal causes onto the wire.
type Error struct {
	Kind    ErrKind
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newErr(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func NewValidationError(msg string) *Error { return newErr(ErrKindValidation, msg) }

func NewValidationErrorWithFields(msg string, fields map[string]string) *Error {
	e := newErr(ErrKindValidation, msg)
	e.Fields = fields
	return e
}

func NewNotFoundError(msg string) *Error { return newErr(ErrKindNotFound, msg) }

func NewConflictError(msg string) *Error { return newErr(ErrKindConflict, msg) }

func NewCrossEnvironmentError(msg string) *Error { return newErr(ErrKindCrossEnvironment, msg) }

func NewIllegalTransitionError(msg string) *Error { return newErr(ErrKindIllegalTransition, msg) }

func NewPublishError(msg string, cause error) *Error {
	e := newErr(ErrKindPublish, msg)
	e.cause = cause
	return e
}

func NewConfigUnavailableError(msg string) *Error { return newErr(ErrKindConfigUnavailable, msg) }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrKind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
