// Package domainerrors defines the coded error taxonomy shared by all
// services. Callers branch on codes, never on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a failure well enough for the caller to decide between
// retry, surface-to-user, and operator escalation.
type Code string

const (
	// CodeConfig is fatal at startup: missing or malformed configuration.
	CodeConfig Code = "config"

	// CodeUnknownIssuer means the caller named an issuer DID that is not
	// configured on this node.
	CodeUnknownIssuer Code = "unknown_issuer"

	// CodeUnsupportedNetwork means no RPC endpoint or state contract is
	// configured for the network an operation targets.
	CodeUnsupportedNetwork Code = "unsupported_network"

	// CodeSchema covers unreachable or unparseable credential schemas.
	CodeSchema Code = "schema"

	// CodeClaim covers malformed claim inputs and revocation-nonce
	// collisions detected before or during commitment.
	CodeClaim Code = "claim"

	// Chain interaction failures, split by stage so callers can tell a
	// rejected submission from a confirmation timeout from a revert.
	CodeChainSubmission Code = "chain_submission"
	CodeChainTimeout    Code = "chain_timeout"
	CodeChainRevert     Code = "chain_revert"

	// CodeStorage is a persistence failure. When it happens after a
	// confirmed publish it carries the tx hash for reconciliation.
	CodeStorage Code = "storage"

	CodeNotFound       Code = "not_found"
	CodeAlreadyRevoked Code = "already_revoked"
	CodeBadRequest     Code = "bad_request"
	CodeInternal       Code = "internal"
)

// Error is a classified failure. Fields carries structured context that is
// safe to log and to return to operators (never key material).
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err is
// already coded the original code is preserved unless overridden here on
// purpose; wrapping is explicit, never implicit.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithField returns a copy of the error carrying an extra context field.
func (e *Error) WithField(key, value string) *Error {
	fields := make(map[string]string, len(e.Fields)+1)
	for k, v := range e.Fields {
		fields[k] = v
	}
	fields[key] = value
	return &Error{Code: e.Code, Message: e.Message, Fields: fields, cause: e.cause}
}

// Field returns a context field previously attached with WithField.
func (e *Error) Field(key string) string {
	return e.Fields[key]
}

// ToHTTPStatus maps a code to the response status transport should use.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeClaim:
		return 400
	case CodeUnknownIssuer, CodeNotFound:
		return 404
	case CodeAlreadyRevoked, CodeChainRevert:
		return 409
	case CodeUnsupportedNetwork, CodeSchema:
		return 422
	case CodeChainSubmission:
		return 502
	case CodeChainTimeout:
		return 504
	default:
		return 500
	}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified failures so transport never leaks raw internals.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
