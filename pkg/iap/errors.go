package iap

import (
	"errors"
	"fmt"
)

// FailureKind classifies verification failures so callers can decide between
// retrying, surfacing the reason to the user, or logging and dropping.
type FailureKind string

const (
	// FailureTransport covers network and platform-availability errors.
	// Retryable by the caller.
	FailureTransport FailureKind = "transport"
	// FailureVerification covers invalid signatures and unauthenticated
	// receipts. Not retryable; security relevant.
	FailureVerification FailureKind = "verification"
	// FailureBusiness covers structurally valid purchases that must not be
	// credited: canceled, pending, already expired.
	FailureBusiness FailureKind = "business"
	// FailureConfiguration covers missing shared secrets or credentials.
	FailureConfiguration FailureKind = "configuration"
	// FailureNotFound is returned when the platform has no record of the
	// purchase.
	FailureNotFound FailureKind = "not_found"
)

// Error is the typed failure returned by all verifiers.
type Error struct {
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("iap %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("iap %s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind FailureKind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func TransportError(reason string, err error) *Error {
	return newError(FailureTransport, reason, err)
}

func VerificationError(reason string, err error) *Error {
	return newError(FailureVerification, reason, err)
}

func BusinessError(reason string) *Error {
	return newError(FailureBusiness, reason, nil)
}

func ConfigurationError(reason string) *Error {
	return newError(FailureConfiguration, reason, nil)
}

func NotFoundError(reason string) *Error {
	return newError(FailureNotFound, reason, nil)
}

// KindOf extracts the failure kind from err, or "" when err is not an iap
// failure.
func KindOf(err error) FailureKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ReasonOf returns the user-displayable reason, falling back to err.Error().
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
