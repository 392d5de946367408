// Package domainerrors defines the coded error type shared by all services.
//
// Domain errors carry a stable machine-readable code so transports can map
// them to wire responses without string matching, and so tests can assert on
// the class of failure rather than on message text. Infrastructure facts
// (not found, expired, already used) live in pkg/platform/sentinel; stores
// return those and services translate them into domain errors here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput: malformed caller input; retry with corrected input.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnknownSubject: subject has no registration; precondition violation.
	CodeUnknownSubject Code = "unknown_subject"
	// CodeUnknownRemoteDomain: remote domain has no trust configuration.
	CodeUnknownRemoteDomain Code = "unknown_remote_domain"
	// CodeUntrustedSender: cross-domain message from an unrecognized authority.
	CodeUntrustedSender Code = "untrusted_sender"
	// CodeInsufficientStake: policy rejection, stake below the configured floor.
	CodeInsufficientStake Code = "insufficient_stake"
	// CodeInsufficientReputation: policy rejection, score below the floor.
	CodeInsufficientReputation Code = "insufficient_reputation"
	// CodeExcessiveRisk: behavioral risk above the hard block threshold.
	CodeExcessiveRisk Code = "excessive_risk"
	// CodeSessionInvalid: expired, revoked, exhausted, or tampered credential.
	CodeSessionInvalid Code = "session_invalid"
	// CodeUnauthorized: missing or invalid caller authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeInternal: unexpected fault; details are never surfaced to callers.
	CodeInternal Code = "internal_error"
)

// Error is the concrete coded error. Construct via New or Wrap.
type Error struct {
	Code    Code
	Message string
	err     error
}

// New builds a domain error with a code and a caller-safe message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted caller-safe message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is/As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors so unexpected faults never leak internals.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its transport status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnknownSubject, CodeUnknownRemoteDomain:
		return http.StatusNotFound
	case CodeUntrustedSender, CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeInsufficientStake, CodeInsufficientReputation, CodeExcessiveRisk:
		return http.StatusForbidden
	case CodeSessionInvalid:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
