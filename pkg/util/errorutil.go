package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

// NewConfigurationError flags invalid category or SLA configuration. It is
// fatal at submission-creation time and never silently defaulted.
func NewConfigurationError(message string, details map[string]any) error {
	return NewDomainError("CONFIGURATION_ERROR", message, http.StatusUnprocessableEntity, details)
}

// NewInvalidStateTransition signals a lifecycle move the status model
// forbids, including approval attempts on already-decided submissions.
func NewInvalidStateTransition(message string, details map[string]any) error {
	return NewDomainError("INVALID_STATE_TRANSITION", message, http.StatusConflict, details)
}

// NewConcurrencyConflict signals a version mismatch that persisted after
// the single internal retry.
func NewConcurrencyConflict(message string) error {
	return NewDomainError("CONCURRENCY_CONFLICT", message, http.StatusConflict, nil)
}

// NewNotificationError wraps a dispatch failure. Non-fatal: the state
// mutation it follows is already durable.
func NewNotificationError(err error) error {
	return &DomainError{
		Code:       "NOTIFICATION_FAILED",
		Message:    "notification dispatch failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewStoreUnavailable wraps a data-access failure that aborts the current
// scan or operation.
func NewStoreUnavailable(err error) error {
	return &DomainError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "submission store unreachable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
