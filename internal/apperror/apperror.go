// Package apperror classifies the failures the engine surfaces to its callers.
//
// Every error produced by the gateway or rejected locally unwraps to one of the
// github.com/containerd/errdefs classes, so callers branch with
// errdefs.IsInvalidArgument, errdefs.IsNotFound and friends instead of string
// matching.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/containerd/errdefs"
)

var (
	ErrValidation = errdefs.ErrInvalidArgument
	ErrNotFound   = errdefs.ErrNotFound
	ErrConflict   = errdefs.ErrConflict
	ErrForbidden  = errdefs.ErrPermissionDenied
)

// AppError is a locally produced error, typically a rejected draft or payload.
type AppError struct {
	Err     error  // classification
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ValidationFailed reports malformed local state. It is returned before any
// network call is attempted.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// RemoteError is a non-success response from the snippet service.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Unwrap maps the status code onto an errdefs class.
func (e *RemoteError) Unwrap() error {
	return Classify(e.StatusCode)
}

// Classify returns the errdefs class for an HTTP status code.
func Classify(status int) error {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return errdefs.ErrInvalidArgument
	case status == http.StatusUnauthorized:
		return errdefs.ErrUnauthenticated
	case status == http.StatusForbidden:
		return errdefs.ErrPermissionDenied
	case status == http.StatusNotFound:
		return errdefs.ErrNotFound
	case status == http.StatusConflict:
		return errdefs.ErrConflict
	case status == http.StatusTooManyRequests:
		return errdefs.ErrResourceExhausted
	case status == http.StatusNotImplemented:
		return errdefs.ErrNotImplemented
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return errdefs.ErrUnavailable
	case status >= 500:
		return errdefs.ErrInternal
	default:
		return errdefs.ErrUnknown
	}
}

// IsValidation reports whether err is a validation rejection, local or remote.
func IsValidation(err error) bool {
	return errdefs.IsInvalidArgument(err)
}

// IsRemote reports whether err came back from the snippet service.
func IsRemote(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}

// StatusCode returns the remote status code carried by err, or 0.
func StatusCode(err error) int {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.StatusCode
	}
	return 0
}
