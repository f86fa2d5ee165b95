package payjoin

import (
	"fmt"
	"time"
)

// ReplyableError is raised whenever the sender (or the proposal it submitted) is at fault. The
// receiver formats it as a JSON reply and delivers it through extract_err_req; it is the only
// error kind the sender ever sees.
type ReplyableError struct {
	Code    string
	Message string
	cause   error
}

func (e *ReplyableError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ReplyableError) Unwrap() error { return e.cause }

func newReplyableError(code, message string, cause error) *ReplyableError {
	return &ReplyableError{Code: code, Message: message, cause: cause}
}

// JSON error codes used by the core (spec.md section 6).
const (
	ErrorCodeOriginalPSBTRejected = "original-psbt-rejected"
	ErrorCodeUnavailable          = "unavailable"
	ErrorCodeNotEnoughMoney       = "not-enough-money"
	ErrorCodeVersionUnsupported   = "version-unsupported"
	ErrorCodeOriginalPSBTInvalid  = "original-psbt-invalid"
)

func errOriginalPSBTRejected(cause error) *ReplyableError {
	return newReplyableError(ErrorCodeOriginalPSBTRejected, "The original PSBT was rejected", cause)
}

func errUnavailable(cause error) *ReplyableError {
	return newReplyableError(ErrorCodeUnavailable, "Receiver error", cause)
}

func errNotEnoughMoney(cause error) *ReplyableError {
	return newReplyableError(ErrorCodeNotEnoughMoney, "Not enough money", cause)
}

func errVersionUnsupported(cause error) *ReplyableError {
	return newReplyableError(ErrorCodeVersionUnsupported, "This version of payjoin is not supported", cause)
}

func errOriginalPSBTInvalid(cause error) *ReplyableError {
	return newReplyableError(ErrorCodeOriginalPSBTInvalid, "The original PSBT is invalid", cause)
}

// SessionError means the v2 session itself is broken — not a sender fault, and never sent to the
// sender. It is surfaced to the operator (logged, and the caller decides whether to retry or
// abandon the session).
type SessionError struct {
	Kind  string
	cause error
}

func (e *SessionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("session error (%s): %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("session error (%s)", e.Kind)
}

func (e *SessionError) Unwrap() error { return e.cause }

const (
	SessionErrorExpired             = "expired"
	SessionErrorOhttpEncapsulation  = "ohttp-encapsulation"
	SessionErrorDirectoryResponse   = "directory-response"
	SessionErrorParseURL            = "parse-url"
)

// ErrExpired is returned (wrapped in a *SessionError) whenever a call is made against a session
// past its expiry.
func ErrExpired(expiry time.Time) *SessionError {
	return &SessionError{Kind: SessionErrorExpired, cause: fmt.Errorf("session expired at %s", expiry)}
}

func errOhttpEncapsulation(cause error) *SessionError {
	return &SessionError{Kind: SessionErrorOhttpEncapsulation, cause: cause}
}

func errDirectoryResponse(statusCode int) *SessionError {
	return &SessionError{Kind: SessionErrorDirectoryResponse, cause: fmt.Errorf("status %d", statusCode)}
}

func errParseURL(cause error) *SessionError {
	return &SessionError{Kind: SessionErrorParseURL, cause: cause}
}

// ImplementationError opaquely wraps a failure from a caller-supplied oracle or persister
// (node RPC, HSM, database). Its contents are never interpreted by the core.
type ImplementationError struct {
	cause error
}

func (e *ImplementationError) Error() string {
	return fmt.Sprintf("implementation error: %s", e.cause)
}

func (e *ImplementationError) Unwrap() error { return e.cause }

func newImplementationError(cause error) *ImplementationError {
	return &ImplementationError{cause: cause}
}

// NewImplementationError wraps cause as an *ImplementationError, for oracle implementations
// (CanBroadcast, IsOwned, IsKnown, IsReceiverOutput, WalletProcessPSBT) living outside this
// package that need to report their own failure (an RPC timeout, a storage error) without the
// core ever seeing or interpreting it directly.
func NewImplementationError(cause error) *ImplementationError {
	return newImplementationError(cause)
}

// AsReplyable wraps an ImplementationError as a ReplyableError so a failed oracle can still
// produce a JSON reply to the sender (spec.md S3: a failed can_broadcast oracle maps to
// "unavailable").
func (e *ImplementationError) AsReplyable() *ReplyableError {
	return errUnavailable(e)
}
