package common

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline errors. Every stage returns errors tagged
// with exactly one kind so the orchestrator's sequencing logic can
// switch on the outcome instead of inspecting error text.
type Kind string

const (
	// KindInvalidRequest marks a malformed submission the backing
	// service rejected; retrying can never succeed.
	KindInvalidRequest Kind = "INVALID_REQUEST"
	// KindExternalService marks a failure or malformed response
	// reported by a backing service.
	KindExternalService Kind = "EXTERNAL_SERVICE"
	// KindNotFound marks a missing job, document, or prompt.
	KindNotFound Kind = "NOT_FOUND"
	// KindTimeout marks a polling loop that exhausted its deadline.
	KindTimeout Kind = "TIMEOUT"
	// KindIllegalTransition marks a job-status move that would violate
	// the monotonic-forward invariant.
	KindIllegalTransition Kind = "ILLEGAL_TRANSITION"
	// KindTransientNetwork marks a connectivity hiccup while polling.
	// It is retried internally and never escapes the poll loop.
	KindTransientNetwork Kind = "TRANSIENT_NETWORK"
)

// AppError is a kind-tagged application error wrapping an optional cause.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError builds a kind-tagged error around cause.
func NewAppError(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// Errorf builds a kind-tagged error with a formatted message and no cause.
func Errorf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first AppError in err's chain, or ""
// when the chain carries none.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an AppError of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// WrapError annotates err with message, preserving the chain.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
