package pipeline

import (
	"errors"
	"fmt"
)

/**
 * Typed errors for the extraction pipeline.
 *
 * Every failure the pipeline can surface to a caller is one of these codes;
 * the HTTP layer maps the class to a status range. Messages are safe to
 * return to clients; the Cause is for server-side logs only.
 */

// Code identifies the failure variant.
type Code string

const (
	CodeUnsupportedMediaType Code = "UNSUPPORTED_MEDIA_TYPE"
	CodeInvalidPageRequest   Code = "INVALID_PAGE_REQUEST"
	CodeMalformedDocument    Code = "MALFORMED_DOCUMENT"
	CodeRasterizationFailed  Code = "RASTERIZATION_FAILED"
	CodeOCRBackendFailed     Code = "OCR_BACKEND_FAILED"
	CodeMissingDependency    Code = "MISSING_SYSTEM_DEPENDENCY"
)

// Class separates caller mistakes from environment and backend failures.
type Class int

const (
	// ClassClient covers errors the caller can fix by changing the request.
	ClassClient Class = iota
	// ClassBackend covers tooling and backend failures needing operator action.
	ClassBackend
)

// Error is a structured pipeline error.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Class returns the broad error class for status mapping.
func (e *Error) Class() Class {
	switch e.Code {
	case CodeUnsupportedMediaType, CodeInvalidPageRequest, CodeMalformedDocument:
		return ClassClient
	default:
		return ClassBackend
	}
}

// Factory functions for common errors

func NewUnsupportedMediaType(detail string) *Error {
	return &Error{
		Code:    CodeUnsupportedMediaType,
		Message: fmt.Sprintf("unsupported media type: %s", detail),
	}
}

func NewInvalidPageRequest(requested, totalPages int) *Error {
	return &Error{
		Code:    CodeInvalidPageRequest,
		Message: fmt.Sprintf("requested page %d is out of range, document has pages 1-%d", requested, totalPages),
	}
}

func NewMalformedDocument(cause error) *Error {
	return &Error{
		Code:    CodeMalformedDocument,
		Message: "document could not be parsed",
		Cause:   cause,
	}
}

func NewRasterizationFailed(detail string, cause error) *Error {
	msg := "page rasterization failed"
	if detail != "" {
		msg = fmt.Sprintf("page rasterization failed: %s", detail)
	}
	return &Error{
		Code:    CodeRasterizationFailed,
		Message: msg,
		Cause:   cause,
	}
}

func NewOCRBackendFailed(cause error) *Error {
	return &Error{
		Code:    CodeOCRBackendFailed,
		Message: "text recognition failed",
		Cause:   cause,
	}
}

func NewMissingDependency(tool string) *Error {
	return &Error{
		Code:    CodeMissingDependency,
		Message: fmt.Sprintf("required system tool %q is not installed", tool),
	}
}

// AsError extracts a pipeline *Error from an error chain, if present.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
