// Package domainerrors defines the coded error type returned by services.
//
// Services return *Error values (optionally wrapping an underlying cause) so
// transport layers can translate them into status codes and stable error
// identifiers without inspecting messages. Stores should return the sentinels
// in pkg/platform/sentinel instead; services translate those into codes here.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error identifier.
type Code string

// Generic codes.
const (
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Issuer codes.
const (
	CodeAddressFormat             Code = "address_format_error"
	CodeSignatureFormat           Code = "signature_format_error"
	CodeInvalidSignature          Code = "invalid_signature"
	CodeAlreadyLinked             Code = "already_linked"
	CodeNotLinkedToCaller         Code = "not_linked_to_caller"
	CodeUpstream                  Code = "upstream_error"
	CodeInvalidIDAlias            Code = "invalid_id_alias"
	CodeUnsupportedCredentialSpec Code = "unsupported_credential_spec"
	CodeUnsupportedLanguage       Code = "unsupported_language"
	CodeUnauthorizedSubject       Code = "unauthorized_subject"
	CodeSignatureNotFound         Code = "signature_not_found"
)

// Kind groups codes by how a caller is expected to react to them.
type Kind string

const (
	// KindFormat is malformed caller input; safe to retry after correcting it.
	KindFormat Kind = "FormatError"
	// KindAuthorization is an unlinked or unverified identity; never retried automatically.
	KindAuthorization Kind = "AuthorizationError"
	// KindConflict is a uniqueness violation; terminal for that input.
	KindConflict Kind = "ConflictError"
	// KindUpstream is an external dependency failure; retry with backoff.
	KindUpstream Kind = "UpstreamError"
	// KindProtocol means the caller must restart the issuance flow from prepare.
	KindProtocol Kind = "ProtocolError"
	KindInternal Kind = "InternalError"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the code of the outermost *Error in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// Category maps a code onto the caller-facing error taxonomy.
func Category(code Code) Kind {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput,
		CodeAddressFormat, CodeSignatureFormat, CodeUnsupportedCredentialSpec, CodeUnsupportedLanguage:
		return KindFormat
	case CodeUnauthorized, CodeForbidden, CodeInvalidSignature, CodeInvalidIDAlias,
		CodeUnauthorizedSubject, CodeNotLinkedToCaller, CodeNotFound:
		return KindAuthorization
	case CodeConflict, CodeAlreadyLinked:
		return KindConflict
	case CodeUpstream, CodeTimeout:
		return KindUpstream
	case CodeSignatureNotFound:
		return KindProtocol
	default:
		return KindInternal
	}
}

// ToHTTPStatus maps a code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput,
		CodeAddressFormat, CodeSignatureFormat, CodeUnsupportedCredentialSpec, CodeUnsupportedLanguage:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidIDAlias, CodeInvalidSignature:
		return http.StatusUnauthorized
	case CodeForbidden, CodeUnauthorizedSubject, CodeNotLinkedToCaller:
		return http.StatusForbidden
	case CodeNotFound, CodeSignatureNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyLinked:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
