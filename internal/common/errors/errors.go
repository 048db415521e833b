// Package errors provides standardized error handling for the notification
// core.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeRecipientUnresolved ErrorCode = "RECIPIENT_UNRESOLVED"
	ErrCodeRecipientAmbiguous  ErrorCode = "RECIPIENT_AMBIGUOUS"

	ErrCodeNotificationPersistFailed ErrorCode = "NOTIFICATION_PERSIST_FAILED"
	ErrCodeChannelSendFailed         ErrorCode = "CHANNEL_SEND_FAILED"
	ErrCodeChannelDisabled           ErrorCode = "CHANNEL_DISABLED"

	ErrCodeTemplateNotFound         ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateValidationFailed ErrorCode = "TEMPLATE_VALIDATION_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	ErrCodeAttendanceSweepFailed ErrorCode = "ATTENDANCE_SWEEP_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRecipientUnresolvedError marks a recipient reference that could not be
// mapped to any account. Not retryable; dispatch treats it as "no delivery
// possible", never as a caller-visible failure.
func NewRecipientUnresolvedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecipientUnresolved,
		Message:   "Recipient reference could not be resolved to an account",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistFailedError wraps a failed notification insert. This is the one
// failure class allowed to propagate out of dispatch.
func NewPersistFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationPersistFailed,
		Message:   "Failed to persist notification record",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewChannelSendError wraps a provider failure for one delivery attempt.
// Terminal for that attempt; there is no retry/backoff in this core.
func NewChannelSendError(channel string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelSendFailed,
		Message:   fmt.Sprintf("Delivery on channel %s failed", channel),
		Details:   cause.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewTemplateValidationError reports a message-template registry that failed
// schema validation at load time.
func NewTemplateValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateValidationFailed,
		Message:   "Template registry failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError reports a missing template category.
func NewTemplateNotFoundError(category string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   fmt.Sprintf("No template registered for category %q", category),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryFailedError wraps an unexpected database error during lookup.
func NewQueryFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query failed",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewSweepFailedError wraps a failure of the absence sweep batch itself (as
// opposed to per-student dispatch failures, which are counted, not raised).
func NewSweepFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAttendanceSweepFailed,
		Message:   "Absence sweep failed",
		Details:   cause.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 3. Inspection Helpers
// ==========================

// CodeOf extracts the ErrorCode from err, or "" if err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable StandardError.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
