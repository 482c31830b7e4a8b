// Package apperr defines the error kinds the resume pipeline reports to clients.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindFileValidation Kind = "file_validation"
	KindValidation     Kind = "validation"
	KindExtraction     Kind = "extraction"
	KindStorage        Kind = "storage"
	KindPersistence    Kind = "persistence"
	KindNotFound       Kind = "not_found"
	KindUnauthorized   Kind = "unauthorized"
	KindConflict       Kind = "conflict"
)

// Error carries a client-safe message. Err is the underlying cause and is
// only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindFileValidation, KindValidation, KindExtraction:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func FileValidation(msg string) *Error {
	return &Error{Kind: KindFileValidation, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Extraction(msg string, err error) *Error {
	return &Error{Kind: KindExtraction, Message: msg, Err: err}
}

func Storage(msg string, err error) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
