// Package apperr is the error taxonomy shared by the repositories' callers
// and the HTTP layer. Each Kind maps to one HTTP status; the client-facing
// text is a message ID resolved by internal/i18n.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus returns the response status for the kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure. MessageID names the localized text shown to
// the client; Err, when set, is the underlying cause and is never shown
// outside development.
type Error struct {
	Kind      Kind
	MessageID string
	Data      map[string]any
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.MessageID, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.MessageID)
}

func (e *Error) Unwrap() error { return e.Err }

// WithData attaches template data for the localized message.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

func newError(k Kind, msgID string) *Error { return &Error{Kind: k, MessageID: msgID} }

func Validation(msgID string) *Error   { return newError(KindValidation, msgID) }
func Unauthorized(msgID string) *Error { return newError(KindUnauthorized, msgID) }
func Forbidden(msgID string) *Error    { return newError(KindForbidden, msgID) }
func NotFound(msgID string) *Error     { return newError(KindNotFound, msgID) }
func Conflict(msgID string) *Error     { return newError(KindConflict, msgID) }

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, MessageID: "common.internal_error", Err: err}
}

// From classifies any error. Unclassified errors become Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// KindOf reports the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	return From(err).Kind
}
