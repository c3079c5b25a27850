package bridge

import (
	"context"
	"errors"

	"github.com/and161185/pto-keeper/internal/errs"
)

// Code classifies a failed request for the UI.
type Code string

const (
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnavailable     Code = "UNAVAILABLE"
	CodeInternal        Code = "INTERNAL"
)

// ErrorFor maps err onto the error event sent to the UI. Internal failures get a
// generic message.
func ErrorFor(op string, err error) PtoError {
	e := PtoError{Op: op, Code: CodeInternal, Message: "internal error"}
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		e.Code, e.Message = CodeUnauthenticated, "sign in required"
	case errors.Is(err, errs.ErrNotFound):
		e.Code, e.Message = CodeNotFound, "record not found"
	case errors.Is(err, errs.ErrInvalidArgument):
		e.Code, e.Message = CodeInvalidArgument, err.Error()
	case errors.Is(err, errs.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		e.Code, e.Message, e.Retryable = CodeUnavailable, "backend unavailable", true
	}
	return e
}
