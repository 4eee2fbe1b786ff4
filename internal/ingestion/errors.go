package ingestion

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine-readable class of an ingest failure.
type Kind string

const (
	KindAuthentication   Kind = "authentication_error"
	KindAuthorization    Kind = "authorization_error"
	KindUnsupportedMedia Kind = "unsupported_media"
	KindMalformedInput   Kind = "malformed_input"
	KindPayloadTooLarge  Kind = "payload_too_large"
	KindStorageWrite     Kind = "storage_write_error"
	KindMetadataWrite    Kind = "metadata_write_error"
	KindConfiguration    Kind = "configuration_error"
)

// Error pairs a taxonomy kind with a human-readable message. Every rejected
// request maps to exactly one Error before it reaches the response writer.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// HTTPStatus maps the kind to its response code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case KindMalformedInput:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds an Error without an underlying cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError builds an Error around an underlying failure.
func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// AsError extracts the typed Error, falling back to an internal-class one so
// the response writer never leaks raw error strings to clients.
func AsError(err error) *Error {
	var ie *Error
	if errors.As(err, &ie) {
		return ie
	}
	return &Error{Kind: KindStorageWrite, Message: "ingest failed", cause: err}
}
