// Package errs defines the engine's error taxonomy and the SQLSTATE codes
// the wire layer reports back to clients.
package errs

import "fmt"

// Kind classifies an engine error so callers can branch on it without
// parsing messages.
type Kind string

const (
	KindSyntax               Kind = "syntax"
	KindTypeMismatch         Kind = "type_mismatch"
	KindConstraintViolation  Kind = "constraint_violation"
	KindUndefinedObject      Kind = "undefined_object"
	KindInvalidTxnState      Kind = "invalid_transaction_state"
	KindFeatureNotSupported  Kind = "feature_not_supported"
	KindProtocolViolation    Kind = "protocol_violation"
	KindResourceExhausted    Kind = "resource_exhausted"
	KindInternalAssertion    Kind = "internal_assertion"
)

// sqlstate maps each Kind to its five-character SQLSTATE code, following
// the subset of codes PostgreSQL itself uses for the same conditions.
var sqlstate = map[Kind]string{
	KindSyntax:              "42601",
	KindTypeMismatch:        "42804",
	KindConstraintViolation: "23000",
	KindUndefinedObject:     "42883",
	KindInvalidTxnState:     "25000",
	KindFeatureNotSupported: "0A000",
	KindProtocolViolation:   "08P01",
	KindResourceExhausted:   "53200",
	KindInternalAssertion:   "XX000",
}

// Error is the engine-wide error type. It always carries a SQLSTATE code
// so the wire layer can build an ErrorResponse without re-classifying.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Detail   string
	Position int // 1-based byte offset into the query text, 0 if unknown
	cause    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Message, e.Detail, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: sqlstate[kind], Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind that wraps cause for errors.Is/As.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: sqlstate[kind], Message: fmt.Sprintf(format, args...), cause: cause}
}

// WithDetail attaches a detail string and returns the same error for chaining.
func (e *Error) WithDetail(format string, args ...any) *Error {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithPosition attaches a 1-based source position and returns the same error.
func (e *Error) WithPosition(pos int) *Error {
	e.Position = pos
	return e
}

// AsEngineError extracts *Error from any error, synthesizing an internal
// assertion error for anything the engine didn't classify itself.
func AsEngineError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if ok := asError(err, &e); ok {
		return e
	}
	return New(KindInternalAssertion, "%s", err.Error())
}

func asError(err error, target **Error) bool {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
