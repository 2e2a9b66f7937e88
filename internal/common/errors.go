package common

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind tags the outcome of a core operation. Handlers map it to an HTTP
// status in StatusFor and nowhere else.
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindSignature
	KindForbidden
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND"
	case KindConflict:
		return "CONFLICT"
	case KindSignature:
		return "SIGNATURE_ERROR"
	case KindForbidden:
		return "FORBIDDEN"
	default:
		return "SERVER_ERROR"
	}
}

// AppError is the error half of every core result.
type AppError struct {
	Kind    ErrorKind
	Message string
	Details string
	Checks  map[string]bool
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

func NewConflictError(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func NewSignatureError(err error) *AppError {
	return &AppError{Kind: KindSignature, Message: "invalid webhook signature", Err: err}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Message: message}
}

// NewTransientError wraps a store failure. The operation is safe to retry.
func NewTransientError(operation string, err error) *AppError {
	return &AppError{Kind: KindTransient, Message: "failed to " + operation, Err: err}
}

// KindOf reports the kind of err; untagged errors are transient.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindValidation, KindConflict, KindSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
