package shared

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure independently of the transport.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindConflict   Kind = "CONFLICT"
	KindNotFound   Kind = "NOT_FOUND"
	KindForbidden  Kind = "FORBIDDEN"
	KindIntegrity  Kind = "INTEGRITY"
)

// Error is a coded domain error. Package level sentinels are declared with
// NewError and matched with errors.Is; contextual copies keep the sentinel's code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

// NewError declares a sentinel error.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Code == e.Code
}

// Detailf returns a copy of e with a formatted message and contextual details.
func (e *Error) Detailf(details map[string]any, format string, args ...any) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}

// WithDetails returns a copy of e carrying details and the original message.
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Details: details}
}

// AsError extracts the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or the empty kind for unclassified errors.
func KindOf(err error) Kind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

var (
	// ErrInvalidInput is the generic validation failure used for request decoding.
	ErrInvalidInput = NewError(KindValidation, "INVALID_INPUT", "invalid input")
	// ErrCompanyNotFound indicates the company does not exist or belongs to another tenant.
	ErrCompanyNotFound = NewError(KindNotFound, "COMPANY_NOT_FOUND", "company not found")
	// ErrIdempotencyConflict indicates a duplicate idempotency key.
	ErrIdempotencyConflict = NewError(KindConflict, "IDEMPOTENCY_CONFLICT", "idempotent request already processed")
)
