// Package errors classifies the sentinel failures raised by the native
// modules. Every failure aborts the enclosing operation; the class only tells
// the caller whether resubmitting can help.
package errors

import stderrors "errors"

// Kind is the failure class of an error.
type Kind uint8

const (
	// KindUnknown covers storage failures and anything not built with New.
	KindUnknown Kind = iota
	// KindAuthorization means the caller lacks the required role or
	// whitelist membership. Never retried.
	KindAuthorization
	// KindPrecondition means the inputs or protocol state are wrong for the
	// call; the caller must correct them and resubmit.
	KindPrecondition
	// KindEconomic means the call was well formed but the economics do not
	// allow it right now (slippage, liquidity, limits, lockups).
	KindEconomic
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindPrecondition:
		return "precondition"
	case KindEconomic:
		return "economic"
	default:
		return "unknown"
	}
}

// Error is a classified sentinel. Sentinels are compared by identity, so
// errors.Is keeps working through fmt.Errorf wrapping.
type Error struct {
	kind Kind
	msg  string
}

// New builds a classified sentinel.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the class of the sentinel.
func (e *Error) Kind() Kind { return e.kind }

// KindOf returns the class of the first classified error in err's chain.
func KindOf(err error) Kind {
	var classified *Error
	if stderrors.As(err, &classified) {
		return classified.kind
	}
	return KindUnknown
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As forwards to the standard library.
func As(err error, target any) bool { return stderrors.As(err, target) }
