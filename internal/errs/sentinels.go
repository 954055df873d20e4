// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across api/service/cli layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the backend rejected the credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the session lacks the role an operation needs.
	ErrForbidden = errors.New("forbidden")

	// ErrNotAuthenticated indicates an operation needs a session and there is none.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrValidation indicates input rejected before (or by) the backend.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates the backend refused a state change (e.g. report already accepted).
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates a transient network or service failure; the action may be re-triggered.
	ErrUnavailable = errors.New("service unavailable")

	// ErrInvalidTransition indicates a status change other than the single canonical next step.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUploadFailed indicates one or more images of a batch failed to upload.
	ErrUploadFailed = errors.New("image upload failed")

	// ErrSealed indicates stored values could not be opened with the configured passphrase.
	ErrSealed = errors.New("storage sealed")
)

// FieldError is a validation error attached to a single input field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Reason) }

// Unwrap makes FieldError match ErrValidation.
func (e *FieldError) Unwrap() error { return ErrValidation }

// Field builds a FieldError.
func Field(field, reason string) error { return &FieldError{Field: field, Reason: reason} }
