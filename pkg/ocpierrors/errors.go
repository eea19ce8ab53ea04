// Package ocpierrors provides coded domain errors that carry both the OCPI
// numeric status code and the HTTP status used to report them on the wire.
// Services return these; the transport layer translates them exactly once.
package ocpierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is an OCPI status code. The numeric values are part of the protocol
// and must not change: clients switch on them.
type Code int

const (
	// CodeSuccess is returned in the envelope of every successful response.
	CodeSuccess Code = 1000

	// CodeClientError is the generic "the client did something wrong" code.
	CodeClientError Code = 2000
	// CodeInvalidParameters covers missing or malformed request parameters
	// and bodies.
	CodeInvalidParameters Code = 2001
	// CodeNotEnoughInformation signals a request that parsed but cannot be
	// acted upon.
	CodeNotEnoughInformation Code = 2002
	// CodeUnknownLocation and CodeUnknownToken are the not-found variants
	// used by the location and token endpoint families.
	CodeUnknownLocation Code = 2003
	CodeUnknownToken    Code = 2004

	// CodeServerError is the generic server-side failure code.
	CodeServerError Code = 3000
	// CodeUnableToUseClientAPI reports a failed outbound call to the
	// counterparty during registration.
	CodeUnableToUseClientAPI Code = 3001
	// CodeUnsupportedVersion reports that no mutually supported OCPI
	// version could be negotiated.
	CodeUnsupportedVersion Code = 3002
	// CodeNoMatchingEndpoints reports a version details document without
	// the endpoints registration needs.
	CodeNoMatchingEndpoints Code = 3003
)

// Error is a domain error with an OCPI status code, an HTTP status, and an
// optional wrapped cause.
type Error struct {
	Code       Code
	HTTPStatus int
	Message    string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with the default HTTP status for the code.
func New(code Code, message string) *Error {
	return &Error{Code: code, HTTPStatus: defaultHTTPStatus(code), Message: message}
}

// WithHTTPStatus overrides the HTTP status while keeping the OCPI code.
// Credentials endpoints use this to distinguish 403 from 405, both of which
// carry OCPI code 2000.
func (e *Error) WithHTTPStatus(status int) *Error {
	clone := *e
	clone.HTTPStatus = status
	return &clone
}

// Wrap attaches a cause to a new coded error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, HTTPStatus: defaultHTTPStatus(code), Message: message, cause: err}
}

// HasCode reports whether err is (or wraps) an Error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// From extracts the coded error from err, or builds a CodeServerError
// wrapper when err carries no code.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, CodeServerError, "internal error")
}

func defaultHTTPStatus(code Code) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeClientError:
		return http.StatusBadRequest
	case CodeInvalidParameters, CodeNotEnoughInformation:
		return http.StatusBadRequest
	case CodeUnknownLocation, CodeUnknownToken:
		return http.StatusNotFound
	case CodeUnableToUseClientAPI, CodeUnsupportedVersion, CodeNoMatchingEndpoints:
		return http.StatusFailedDependency
	default:
		return http.StatusInternalServerError
	}
}
