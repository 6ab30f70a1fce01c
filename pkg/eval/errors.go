package eval

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an expression-engine failure.
type ErrorKind string

const (
	// ErrorKindParse indicates a malformed expression. Nothing is
	// evaluated when parsing fails.
	ErrorKindParse ErrorKind = "parse"

	// ErrorKindEval indicates a failure raised while evaluating, such
	// as an unknown variable or a function rejecting its argument.
	ErrorKindEval ErrorKind = "eval"

	// ErrorKindInternal indicates a programming-invariant violation
	// inside the engine. It is never the result of bad input.
	ErrorKindInternal ErrorKind = "internal"
)

// Error is a classified expression-engine error.
//
// Missing keys, out-of-range indexes and mismatched-type accesses are
// not errors: they are routine outcomes of speculative path matching
// and simply drop the candidate. Error is reserved for parse failures,
// evaluation failures and internal contract violations.
type Error struct {
	// Kind is the error classification.
	Kind ErrorKind

	// Message is the human-readable error message.
	Message string

	// Expr is the expression source text, when known.
	Expr string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Expr != "" {
		msg = fmt.Sprintf("%s (expr: %q)", msg, e.Expr)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

func newParseError(expr, format string, args ...any) *Error {
	return &Error{Kind: ErrorKindParse, Message: fmt.Sprintf(format, args...), Expr: expr}
}

func newEvalError(format string, args ...any) *Error {
	return &Error{Kind: ErrorKindEval, Message: fmt.Sprintf(format, args...)}
}

func newInternalError(format string, args ...any) *Error {
	return &Error{Kind: ErrorKindInternal, Message: fmt.Sprintf(format, args...)}
}

// IsParseError reports whether err is an expression parse failure.
func IsParseError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorKindParse
}

// IsInternalError reports whether err is an engine invariant violation.
func IsInternalError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == ErrorKindInternal
}
